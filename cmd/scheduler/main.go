package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"freezefit/internal/jobs"
	"freezefit/internal/modules"
	"freezefit/pkg/app"
	"freezefit/pkg/config"
)

const ServiceName = "freezefit-scheduler"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetPostgres()
	defer cfg.GracefulShutdown()

	infra, err := modules.NewInfrastructure(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize infrastructure", "error", err)
	}
	defer infra.Close()

	services := modules.NewServices(cfg, infra)
	scheduler, err := jobs.NewScheduler(cfg, services.Appointments)
	if err != nil {
		cfg.Log.Fatal("Failed to create scheduler", "error", err)
	}

	ops := app.NewOpsServer(cfg)
	ops.Start()
	defer ops.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	cfg.Log.Info("Scheduler stopped")
}
