package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/pimon/internal/httpserver/deps"
)

type alertsResponse struct {
	AlertsEnabled bool `json:"alerts_enabled"`
}

// Status returns a freshly collected snapshot. It blocks for the CPU
// sampling window.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Device.Snapshot(r.Context()))
	}
}

func Services(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Device.Services())
	}
}

func Alerts(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, alertsResponse{AlertsEnabled: d.Device.AlertsEnabled()})
	}
}

func Provisioning(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Device.ProvisioningInfo())
	}
}
