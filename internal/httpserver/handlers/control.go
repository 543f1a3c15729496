package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/pimon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pimon/internal/logger"
)

const maxBodyBytes = 4 << 10

type resultResponse struct {
	Result string `json:"result"`
}

type provisionRequest struct {
	FQDN   string `json:"fqdn"`
	AuthID string `json:"authid"`
}

func ToggleAlerts(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enabled := d.Device.ToggleAlerts(r.Context())
		writeJSON(w, http.StatusOK, alertsResponse{AlertsEnabled: enabled})
	}
}

// ControlService answers 200 with the result string even when the command
// failed; only validation problems produce 4xx.
func ControlService(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identifier := chi.URLParam(r, "identifier")
		action := chi.URLParam(r, "action")

		result, err := d.Device.ControlService(r.Context(), identifier, action)
		if err != nil {
			d.Logger.Info("service control rejected",
				logger.String("service", identifier),
				logger.String("action", action),
				logger.Error(err))
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resultResponse{Result: result})
	}
}

func Reboot(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Device.Reboot(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

func Shutdown(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Device.Shutdown(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

func ScheduleReboot(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "minutes")
		minutes, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "minutes must be an integer, got "+strconv.Quote(raw))
			return
		}
		if err := d.Device.ScheduleReboot(r.Context(), minutes); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Provision queues an installer run and answers 202 straight away; the
// outcome is visible later on GET /provisioning.
func Provision(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req provisionRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		action := chi.URLParam(r, "action")
		if err := d.Device.Provision(r.Context(), action, req.FQDN, req.AuthID); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "action": action})
	}
}
