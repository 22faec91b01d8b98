package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"medialog/models"
	"medialog/services/library"
)

type libraryService interface {
	Add(ctx context.Context, userID string, input models.WatchedItemInput) (models.WatchedItem, error)
	Get(ctx context.Context, userID, itemID string) (models.WatchedItem, error)
	List(ctx context.Context, userID string) ([]models.WatchedItem, error)
	Episodes(ctx context.Context, userID, itemID string) ([]models.WatchedEpisode, error)
	Update(ctx context.Context, userID, itemID string, patch models.WatchedItemPatch) (models.WatchedItem, error)
	Delete(ctx context.Context, userID, itemID string) error
	SetEpisodeStatus(ctx context.Context, userID, itemID string, season, episode int, status models.EpisodeStatus) (models.WatchedItem, error)
	UpNext(ctx context.Context, userID, itemID string) (season, episode int, ok bool, err error)
	RefreshTotals(ctx context.Context, userID, itemID string) (models.WatchedItem, error)
	UpcomingReleases(ctx context.Context, userID string) ([]models.UpcomingEpisode, error)
}

var _ libraryService = (*library.Service)(nil)

// LibraryHandler serves the watched-item library endpoints.
type LibraryHandler struct {
	Service libraryService
}

func NewLibraryHandler(service libraryService) *LibraryHandler {
	return &LibraryHandler{Service: service}
}

func libraryStatus(err error) int {
	switch {
	case errors.Is(err, library.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrDuplicateItem):
		return http.StatusConflict
	case errors.Is(err, library.ErrUserIDRequired),
		errors.Is(err, library.ErrTitleRequired),
		errors.Is(err, library.ErrInvalidType),
		errors.Is(err, library.ErrInvalidStatus),
		errors.Is(err, library.ErrInvalidRating),
		errors.Is(err, library.ErrInvalidEpisode):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	items, err := h.Service.List(r.Context(), userID)
	if err != nil {
		writeError(w, libraryStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *LibraryHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var input models.WatchedItemInput
	if !decodeJSON(w, r, &input) {
		return
	}
	item, err := h.Service.Add(r.Context(), userID, input)
	if err != nil {
		writeError(w, libraryStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *LibraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	item, err := h.Service.Get(r.Context(), userID, mux.Vars(r)["itemID"])
	if err != nil {
		writeError(w, libraryStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *LibraryHandler) Episodes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	episodes, err := h.Service.Episodes(r.Context(), userID, mux.Vars(r)["itemID"])
	if err != nil {
		writeError(w, libraryStatus(err), err)
		return
	}
	if episodes == nil {
		episodes = []models.WatchedEpisode{}
	}
	writeJSON(w, http.StatusOK, episodes)
}

func (h *LibraryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var patch models.WatchedItemPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	item, err := h.Service.Update(r.Context(), userID, mux.Vars(r)["itemID"], patch)
	if err != nil {
		writeError(w, libraryStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *LibraryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), userID, mux.Vars(r)["itemID"]); err != nil {
		writeError(w, libraryStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type episodeStatusRequest struct {
	Status models.EpisodeStatus `json:"status"`
}

// SetEpisode updates a single episode's watch status.
func (h *LibraryHandler) SetEpisode(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	season, err := strconv.Atoi(vars["season"])
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid season number"))
		return
	}
	episode, err := strconv.Atoi(vars["episode"])
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid episode number"))
		return
	}

	var req episodeStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.Service.SetEpisodeStatus(r.Context(), userID, vars["itemID"], season, episode, req.Status)
	if err != nil {
		writeError(w, libraryStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type upNextResponse struct {
	SeasonNumber  int  `json:"seasonNumber,omitempty"`
	EpisodeNumber int  `json:"episodeNumber,omitempty"`
	Found         bool `json:"found"`
}

// UpNext returns the first unaccounted-for episode of a show.
func (h *LibraryHandler) UpNext(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	season, episode, found, err := h.Service.UpNext(r.Context(), userID, mux.Vars(r)["itemID"])
	if err != nil {
		writeError(w, libraryStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, upNextResponse{SeasonNumber: season, EpisodeNumber: episode, Found: found})
}

// Refresh re-fetches catalog totals for a show.
func (h *LibraryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	item, err := h.Service.RefreshTotals(r.Context(), userID, mux.Vars(r)["itemID"])
	if err != nil {
		writeError(w, libraryStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Upcoming lists future episode air dates across tracked shows.
func (h *LibraryHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	upcoming, err := h.Service.UpcomingReleases(r.Context(), userID)
	if err != nil {
		writeError(w, libraryStatus(err), err)
		return
	}
	if upcoming == nil {
		upcoming = []models.UpcomingEpisode{}
	}
	writeJSON(w, http.StatusOK, upcoming)
}
