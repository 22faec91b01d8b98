package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"medialog/handlers"
	"medialog/models"
	"medialog/services/library"
)

type fakeLibraryService struct {
	item     models.WatchedItem
	items    []models.WatchedItem
	episodes []models.WatchedEpisode
	upcoming []models.UpcomingEpisode
	err      error

	lastPatch   models.WatchedItemPatch
	lastSeason  int
	lastEpisode int
	lastStatus  models.EpisodeStatus
}

func (f *fakeLibraryService) Add(ctx context.Context, userID string, input models.WatchedItemInput) (models.WatchedItem, error) {
	return f.item, f.err
}

func (f *fakeLibraryService) Get(ctx context.Context, userID, itemID string) (models.WatchedItem, error) {
	return f.item, f.err
}

func (f *fakeLibraryService) List(ctx context.Context, userID string) ([]models.WatchedItem, error) {
	return f.items, f.err
}

func (f *fakeLibraryService) Episodes(ctx context.Context, userID, itemID string) ([]models.WatchedEpisode, error) {
	return f.episodes, f.err
}

func (f *fakeLibraryService) Update(ctx context.Context, userID, itemID string, patch models.WatchedItemPatch) (models.WatchedItem, error) {
	f.lastPatch = patch
	return f.item, f.err
}

func (f *fakeLibraryService) Delete(ctx context.Context, userID, itemID string) error {
	return f.err
}

func (f *fakeLibraryService) SetEpisodeStatus(ctx context.Context, userID, itemID string, season, episode int, status models.EpisodeStatus) (models.WatchedItem, error) {
	f.lastSeason, f.lastEpisode, f.lastStatus = season, episode, status
	return f.item, f.err
}

func (f *fakeLibraryService) UpNext(ctx context.Context, userID, itemID string) (int, int, bool, error) {
	return 2, 3, true, f.err
}

func (f *fakeLibraryService) RefreshTotals(ctx context.Context, userID, itemID string) (models.WatchedItem, error) {
	return f.item, f.err
}

func (f *fakeLibraryService) UpcomingReleases(ctx context.Context, userID string) ([]models.UpcomingEpisode, error) {
	return f.upcoming, f.err
}

func testUser() models.User {
	return models.User{ID: "user-1", Name: "tester"}
}

func libraryRouter(h *handlers.LibraryHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/library", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/library", h.Add).Methods(http.MethodPost)
	r.HandleFunc("/api/library/{itemID}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/library/{itemID}", h.Update).Methods(http.MethodPatch)
	r.HandleFunc("/api/library/{itemID}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/library/{itemID}/episodes/{season}/{episode}", h.SetEpisode).Methods(http.MethodPut)
	r.HandleFunc("/api/library/{itemID}/next", h.UpNext).Methods(http.MethodGet)
	return r
}

func TestLibraryListRequiresUser(t *testing.T) {
	h := handlers.NewLibraryHandler(&fakeLibraryService{})
	req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
	rec := httptest.NewRecorder()

	libraryRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLibraryList(t *testing.T) {
	svc := &fakeLibraryService{items: []models.WatchedItem{{ID: "w1", Title: "Show"}}}
	h := handlers.NewLibraryHandler(svc)

	req := handlers.WithUser(httptest.NewRequest(http.MethodGet, "/api/library", nil), testUser())
	rec := httptest.NewRecorder()
	libraryRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var items []models.WatchedItem
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].ID != "w1" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestLibraryErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", library.ErrNotFound, http.StatusNotFound},
		{"duplicate", library.ErrDuplicateItem, http.StatusConflict},
		{"bad rating", library.ErrInvalidRating, http.StatusBadRequest},
		{"bad status", library.ErrInvalidStatus, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewLibraryHandler(&fakeLibraryService{err: tt.err})
			req := handlers.WithUser(
				httptest.NewRequest(http.MethodGet, "/api/library/w1", nil), testUser())
			rec := httptest.NewRecorder()
			libraryRouter(h).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestLibrarySetEpisodeParsesVars(t *testing.T) {
	svc := &fakeLibraryService{item: models.WatchedItem{ID: "w1"}}
	h := handlers.NewLibraryHandler(svc)

	body := bytes.NewBufferString(`{"status":"watched"}`)
	req := handlers.WithUser(
		httptest.NewRequest(http.MethodPut, "/api/library/w1/episodes/2/5", body), testUser())
	rec := httptest.NewRecorder()
	libraryRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if svc.lastSeason != 2 || svc.lastEpisode != 5 || svc.lastStatus != models.EpisodeWatched {
		t.Fatalf("service got s%de%d %q", svc.lastSeason, svc.lastEpisode, svc.lastStatus)
	}
}

func TestLibrarySetEpisodeRejectsBadNumbers(t *testing.T) {
	h := handlers.NewLibraryHandler(&fakeLibraryService{})
	body := bytes.NewBufferString(`{"status":"watched"}`)
	req := handlers.WithUser(
		httptest.NewRequest(http.MethodPut, "/api/library/w1/episodes/two/5", body), testUser())
	rec := httptest.NewRecorder()
	libraryRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLibraryUpdatePassesPatch(t *testing.T) {
	svc := &fakeLibraryService{item: models.WatchedItem{ID: "w1"}}
	h := handlers.NewLibraryHandler(svc)

	body := bytes.NewBufferString(`{"rating":8,"watchedEpisodes":[{"seasonNumber":1,"episodeNumber":2,"status":"watched"}]}`)
	req := handlers.WithUser(
		httptest.NewRequest(http.MethodPatch, "/api/library/w1", body), testUser())
	rec := httptest.NewRecorder()
	libraryRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastPatch.Rating == nil || *svc.lastPatch.Rating != 8 {
		t.Fatalf("rating not forwarded: %+v", svc.lastPatch)
	}
	if len(svc.lastPatch.WatchedEpisodes) != 1 {
		t.Fatalf("episodes not forwarded: %+v", svc.lastPatch)
	}
}

func TestLibraryUpNext(t *testing.T) {
	h := handlers.NewLibraryHandler(&fakeLibraryService{})
	req := handlers.WithUser(
		httptest.NewRequest(http.MethodGet, "/api/library/w1/next", nil), testUser())
	rec := httptest.NewRecorder()
	libraryRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		SeasonNumber  int  `json:"seasonNumber"`
		EpisodeNumber int  `json:"episodeNumber"`
		Found         bool `json:"found"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Found || resp.SeasonNumber != 2 || resp.EpisodeNumber != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestLibraryDelete(t *testing.T) {
	h := handlers.NewLibraryHandler(&fakeLibraryService{})
	req := handlers.WithUser(
		httptest.NewRequest(http.MethodDelete, "/api/library/w1", nil), testUser())
	rec := httptest.NewRecorder()
	libraryRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}
