package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"medialog/models"
	"medialog/services/queue"
)

type queueService interface {
	List(ctx context.Context, userID string) ([]models.QueueItem, error)
	History(ctx context.Context, userID string) ([]models.QueueItem, error)
	Add(ctx context.Context, userID string, input models.QueueAddInput) (models.QueueItem, error)
	Remove(ctx context.Context, userID, itemID string) error
	Reorder(ctx context.Context, userID, itemID string, newPos int) error
	MarkWatched(ctx context.Context, userID, itemID string) error
	BulkMarkWatched(ctx context.Context, userID string, ids []string) (models.BulkQueueResult, error)
	BulkRemove(ctx context.Context, userID string, ids []string) (models.BulkQueueResult, error)
	BulkMoveToTop(ctx context.Context, userID string, ids []string) (models.BulkQueueResult, error)
	BulkMoveToBottom(ctx context.Context, userID string, ids []string) (models.BulkQueueResult, error)
	ClearWatched(ctx context.Context, userID string) (models.BulkQueueResult, error)
	Clear(ctx context.Context, userID string) (models.BulkQueueResult, error)
}

var _ queueService = (*queue.Service)(nil)

// QueueHandler serves the watch-queue endpoints.
type QueueHandler struct {
	Service queueService
}

func NewQueueHandler(service queueService) *QueueHandler {
	return &QueueHandler{Service: service}
}

func queueStatus(err error) int {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrNotOwned):
		return http.StatusForbidden
	case errors.Is(err, queue.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, queue.ErrUserIDRequired),
		errors.Is(err, queue.ErrTitleRequired),
		errors.Is(err, queue.ErrInvalidPosition),
		errors.Is(err, queue.ErrNoIDs):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	items, err := h.Service.List(r.Context(), userID)
	if err != nil {
		writeError(w, queueStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *QueueHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	items, err := h.Service.History(r.Context(), userID)
	if err != nil {
		writeError(w, queueStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *QueueHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var input models.QueueAddInput
	if !decodeJSON(w, r, &input) {
		return
	}
	item, err := h.Service.Add(r.Context(), userID, input)
	if err != nil {
		writeError(w, queueStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *QueueHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.Service.Remove(r.Context(), userID, mux.Vars(r)["itemID"]); err != nil {
		writeError(w, queueStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	Position int `json:"position"`
}

func (h *QueueHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Service.Reorder(r.Context(), userID, mux.Vars(r)["itemID"], req.Position); err != nil {
		writeError(w, queueStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QueueHandler) MarkWatched(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.Service.MarkWatched(r.Context(), userID, mux.Vars(r)["itemID"]); err != nil {
		writeError(w, queueStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkRequest struct {
	IDs []string `json:"ids"`
}

func (h *QueueHandler) bulk(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, userID string, ids []string) (models.BulkQueueResult, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := op(r.Context(), userID, req.IDs)
	if err != nil {
		writeError(w, queueStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *QueueHandler) BulkMarkWatched(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.Service.BulkMarkWatched)
}

func (h *QueueHandler) BulkRemove(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.Service.BulkRemove)
}

func (h *QueueHandler) BulkMoveToTop(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.Service.BulkMoveToTop)
}

func (h *QueueHandler) BulkMoveToBottom(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.Service.BulkMoveToBottom)
}

func (h *QueueHandler) ClearWatched(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	result, err := h.Service.ClearWatched(r.Context(), userID)
	if err != nil {
		writeError(w, queueStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	result, err := h.Service.Clear(r.Context(), userID)
	if err != nil {
		writeError(w, queueStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
