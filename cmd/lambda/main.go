package main

import (
	"freezefit/internal/modules"
	"freezefit/pkg/app"
	"freezefit/pkg/config"
	"freezefit/pkg/contracts"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
)

const ServiceName = "freezefit-lambda"

// One deployment of this binary serves one API Gateway path prefix. Which
// handlers it mounts is selected by FREEZEFIT_MODULES, so each function only
// carries the routes of its prefix while sharing the middleware stack of
// cmd/api.
func main() {
	cfg := config.Load(ServiceName)
	cfg.SetPostgres()

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
		handlers = append(handlers, m)
	}

	application := app.NewApplication(cfg)
	application.SetApp(infra.Cache, infra.Tokens, handlers...)

	adapter := httpadapter.New(application.Handler())
	cfg.Log.Info("Lambda handler ready", "modules", cfg.Modules)
	lambda.Start(adapter.ProxyWithContext)
}
