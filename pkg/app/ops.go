package app

import (
	"context"
	"errors"
	"net/http"

	"freezefit/pkg/config"
	"freezefit/pkg/metrics"
	"freezefit/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

// OpsServer exposes /health, /ready and /metrics for the worker processes
// that have no public API.
type OpsServer struct {
	cfg    *config.Config
	server *http.Server
}

func NewOpsServer(cfg *config.Config) *OpsServer {
	router := httprouter.New()
	NewHealthHandler(cfg.DB, cfg.Log).RegisterRoutes(router)
	router.Handler(http.MethodGet, "/metrics", metrics.Handler())

	return &OpsServer{
		cfg: cfg,
		server: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      middleware.Recovery(cfg.Log)(router),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

func (o *OpsServer) Handler() http.Handler {
	return o.server.Handler
}

// Start serves in the background. Failures are logged; the worker keeps
// running without its ops endpoints.
func (o *OpsServer) Start() {
	go func() {
		o.cfg.Log.Info("Starting ops server", "address", o.server.Addr)
		if err := o.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.cfg.Log.Error("Ops server failed", "error", err)
		}
	}()
}

func (o *OpsServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ShutdownTimeout)
	defer cancel()
	if err := o.server.Shutdown(ctx); err != nil {
		o.cfg.Log.Error("Ops server shutdown failed", "error", err)
	}
}
