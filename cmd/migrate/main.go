package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	migrations "freezefit/internal/migrations/postgres"
	"freezefit/pkg/config"
)

const JobName = "freezefit-migrate"

func usage() {
	fmt.Fprintf(os.Stderr, "usage: migrate <up | down N | version | force V | files>\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if args[0] == "files" {
		files, err := migrations.Files()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return
	}

	cfg := config.Load(JobName)
	cfg.SetPostgres()

	runner, err := migrations.NewRunner(cfg.DB.DB, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create migration runner", "error", err)
	}
	// Closing the runner also closes the connection pool.
	defer runner.Close()

	if err := run(runner, args); err != nil {
		cfg.Log.Error("Migration failed", "command", args[0], "error", err)
		runner.Close()
		os.Exit(1)
	}
}

func run(runner *migrations.Runner, args []string) error {
	switch args[0] {
	case "up":
		return runner.Up()

	case "down":
		steps, err := intArg(args, "down")
		if err != nil {
			return err
		}
		return runner.Down(steps)

	case "version":
		version, dirty, err := runner.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return nil

	case "force":
		version, err := intArg(args, "force")
		if err != nil {
			return err
		}
		return runner.Force(version)
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func intArg(args []string, command string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s requires a number", command)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", command, args[1])
	}
	return n, nil
}
