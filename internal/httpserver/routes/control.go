package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/pimon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pimon/internal/httpserver/handlers"
)

func init() { Register(Control, registerControl) }

func registerControl(r chi.Router, d deps.Deps) {
	r.Post("/toggle_alerts", handlers.ToggleAlerts(d))
	r.Post("/service/{identifier}/{action}", handlers.ControlService(d))

	r.Route("/power", func(r chi.Router) {
		r.Post("/reboot", handlers.Reboot(d))
		r.Post("/shutdown", handlers.Shutdown(d))
		r.Post("/schedule_reboot/{minutes}", handlers.ScheduleReboot(d))
	})

	r.Post("/provision/{action}", handlers.Provision(d))
	r.Post("/3cx/{action}", handlers.Provision(d))
}
