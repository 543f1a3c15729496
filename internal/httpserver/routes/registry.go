package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/pimon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pimon/internal/httpserver/mw"
)

// Scope decides which middleware chain a registrar is mounted behind.
type Scope int

const (
	// Open routes are read-only and reachable by anyone on the network.
	Open Scope = iota
	// Control routes change the host. They sit behind the CIDR allow-list
	// and share a single rate limiter.
	Control
)

type Registrar func(r chi.Router, d deps.Deps)

type entry struct {
	scope Scope
	reg   Registrar
}

var registry []entry

// Register queues a registrar for the given scope. Call it from init().
func Register(scope Scope, reg Registrar) {
	registry = append(registry, entry{scope: scope, reg: reg})
}

// RegisterAll mounts every registrar. Called once from NewRouter.
func RegisterAll(r chi.Router, d deps.Deps) {
	control := controlChain(d)
	for _, e := range registry {
		switch e.scope {
		case Control:
			r.Group(func(g chi.Router) {
				g.Use(control...)
				e.reg(g, d)
			})
		default:
			e.reg(r, d)
		}
	}
}

func controlChain(d deps.Deps) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.RateLimit(d.RateLimit),
	}
}
