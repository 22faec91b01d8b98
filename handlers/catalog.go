package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"medialog/models"
	"medialog/services/catalog"
)

type catalogService interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
	ShowDetails(ctx context.Context, tmdbID int64) (*models.ShowDetails, error)
	SeasonDetails(ctx context.Context, tmdbID int64, season int) (*models.SeasonDetails, error)
}

var _ catalogService = (*catalog.Service)(nil)

// CatalogHandler proxies search and metadata lookups to the external catalog.
type CatalogHandler struct {
	Service catalogService
}

func NewCatalogHandler(service catalogService) *CatalogHandler {
	return &CatalogHandler{Service: service}
}

func catalogStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, catalog.ErrUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	results, err := h.Service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, catalogStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *CatalogHandler) Show(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	tmdbID, err := strconv.ParseInt(mux.Vars(r)["tmdbID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid show id"))
		return
	}
	details, err := h.Service.ShowDetails(r.Context(), tmdbID)
	if err != nil {
		writeError(w, catalogStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *CatalogHandler) Season(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	vars := mux.Vars(r)
	tmdbID, err := strconv.ParseInt(vars["tmdbID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid show id"))
		return
	}
	season, err := strconv.Atoi(vars["season"])
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid season number"))
		return
	}
	details, err := h.Service.SeasonDetails(r.Context(), tmdbID, season)
	if err != nil {
		writeError(w, catalogStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}
