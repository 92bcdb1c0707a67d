package main

import (
	"freezefit/internal/modules"
	"freezefit/pkg/app"
	"freezefit/pkg/config"
	"freezefit/pkg/contracts"
)

const ServiceName = "freezefit-api"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetPostgres()
	cfg.Log.Info("Starting FreezeFit API")

	infra, err := modules.NewInfrastructure(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize infrastructure", "error", err)
	}

	services := modules.NewServices(cfg, infra)
	mods, err := modules.Build(cfg, services, cfg.Modules)
	if err != nil {
		cfg.Log.Fatal("Failed to build modules", "error", err, "modules", cfg.Modules)
	}

	handlers := make([]contracts.Handler, 0, len(mods))
	for _, m := range mods {
		cfg.Log.Info("Module enabled", "module", m.Name)
		handlers = append(handlers, m)
	}

	application := app.NewApplication(cfg)
	application.SetApp(infra.Cache, infra.Tokens, handlers...)
	application.OnShutdown(infra.Close)
	application.OnShutdown(cfg.GracefulShutdown)
	application.Run()
}
