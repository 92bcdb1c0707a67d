package contracts

import "github.com/julienschmidt/httprouter"

// Handler mounts a module's routes.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Module is a named group of handlers that is enabled or disabled as a unit
// through FREEZEFIT_MODULES.
type Module struct {
	Name     string
	Handlers []Handler
}

func (m Module) RegisterRoutes(router *httprouter.Router) {
	for _, h := range m.Handlers {
		h.RegisterRoutes(router)
	}
}
