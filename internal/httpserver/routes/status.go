package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/pimon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pimon/internal/httpserver/handlers"
)

func init() { Register(Open, registerStatus) }

func registerStatus(r chi.Router, d deps.Deps) {
	r.Get("/status", handlers.Status(d))
	r.Get("/services", handlers.Services(d))
	r.Get("/alerts", handlers.Alerts(d))
	r.Get("/provisioning", handlers.Provisioning(d))
}
