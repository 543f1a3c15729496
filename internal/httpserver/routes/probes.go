package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/pimon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pimon/internal/httpserver/handlers"
)

func init() { Register(Open, registerProbes) }

func registerProbes(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.Get("/readyz", handlers.Readyz(d))
	if d.Metrics != nil {
		r.Method("GET", "/metrics", d.Metrics)
	}
}
