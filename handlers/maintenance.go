package handlers

import (
	"errors"
	"net/http"

	"medialog/services/scheduler"
)

type maintenanceService interface {
	RunNow() error
	Status() (bool, *scheduler.RunResult)
}

var _ maintenanceService = (*scheduler.Service)(nil)

// MaintenanceHandler exposes the background refresh job to admins.
type MaintenanceHandler struct {
	Service maintenanceService
}

func NewMaintenanceHandler(service maintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{Service: service}
}

type maintenanceStatusResponse struct {
	Refreshing bool                 `json:"refreshing"`
	LastRun    *scheduler.RunResult `json:"lastRun,omitempty"`
}

func (h *MaintenanceHandler) Status(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	refreshing, last := h.Service.Status()
	writeJSON(w, http.StatusOK, maintenanceStatusResponse{Refreshing: refreshing, LastRun: last})
}

func (h *MaintenanceHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	if err := h.Service.RunNow(); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
