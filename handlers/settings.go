package handlers

import (
	"errors"
	"net/http"

	"medialog/config"
)

// SettingsHandler exposes the server configuration to admins.
type SettingsHandler struct {
	Manager *config.Manager
}

func NewSettingsHandler(m *config.Manager) *SettingsHandler {
	return &SettingsHandler{Manager: m}
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	user, ok := userFrom(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return false
	}
	if !user.IsAdmin {
		writeError(w, http.StatusForbidden, errors.New("admin access required"))
		return false
	}
	return true
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	settings, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	// The API key is write-only through this endpoint.
	if settings.Catalog.TMDBAPIKey != "" {
		settings.Catalog.TMDBAPIKey = "***"
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var incoming config.Settings
	if !decodeJSON(w, r, &incoming) {
		return
	}

	current, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	// A masked key in the payload means "keep the stored one".
	if incoming.Catalog.TMDBAPIKey == "***" {
		incoming.Catalog.TMDBAPIKey = current.Catalog.TMDBAPIKey
	}

	if err := h.Manager.Save(incoming); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if incoming.Catalog.TMDBAPIKey != "" {
		incoming.Catalog.TMDBAPIKey = "***"
	}
	writeJSON(w, http.StatusOK, incoming)
}
