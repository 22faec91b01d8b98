package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"medialog/models"
	"medialog/services/notes"
)

type notesService interface {
	List(ctx context.Context, userID, itemID string) ([]models.Note, error)
	Add(ctx context.Context, userID, itemID string, input models.NoteInput) (models.Note, error)
	Update(ctx context.Context, userID, itemID, noteID string, input models.NoteInput) (models.Note, error)
	Delete(ctx context.Context, userID, itemID, noteID string) error
}

var _ notesService = (*notes.Service)(nil)

// NotesHandler serves per-item note endpoints.
type NotesHandler struct {
	Service notesService
}

func NewNotesHandler(service notesService) *NotesHandler {
	return &NotesHandler{Service: service}
}

func notesStatus(err error) int {
	switch {
	case errors.Is(err, notes.ErrNotFound), errors.Is(err, notes.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, notes.ErrUserIDRequired), errors.Is(err, notes.ErrContentRequired):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *NotesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	items, err := h.Service.List(r.Context(), userID, mux.Vars(r)["itemID"])
	if err != nil {
		writeError(w, notesStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *NotesHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var input models.NoteInput
	if !decodeJSON(w, r, &input) {
		return
	}
	note, err := h.Service.Add(r.Context(), userID, mux.Vars(r)["itemID"], input)
	if err != nil {
		writeError(w, notesStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *NotesHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var input models.NoteInput
	if !decodeJSON(w, r, &input) {
		return
	}
	vars := mux.Vars(r)
	note, err := h.Service.Update(r.Context(), userID, vars["itemID"], vars["noteID"], input)
	if err != nil {
		writeError(w, notesStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NotesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := h.Service.Delete(r.Context(), userID, vars["itemID"], vars["noteID"]); err != nil {
		writeError(w, notesStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
