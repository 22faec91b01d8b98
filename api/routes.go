package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"medialog/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	authHandler *handlers.AuthHandler,
	libraryHandler *handlers.LibraryHandler,
	queueHandler *handlers.QueueHandler,
	catalogHandler *handlers.CatalogHandler,
	notesHandler *handlers.NotesHandler,
	statsHandler *handlers.StatsHandler,
	imageHandler *handlers.ImageHandler,
	settingsHandler *handlers.SettingsHandler,
	maintenanceHandler *handlers.MaintenanceHandler,
	sessions handlers.SessionResolver,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	// Auth routes (no authentication required)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost, http.MethodOptions)

	// Image proxy (public, image tags cannot send auth headers)
	if imageHandler != nil {
		api.HandleFunc("/images/poster", imageHandler.Poster).Methods(http.MethodGet, http.MethodHead, http.MethodOptions)
	}

	// Protected routes - require a valid session
	protected := api.PathPrefix("").Subrouter()
	protected.Use(handlers.RequireAuth(sessions))

	protected.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost, http.MethodOptions)

	// Library
	protected.HandleFunc("/library", libraryHandler.List).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/library", libraryHandler.Add).Methods(http.MethodPost)
	protected.HandleFunc("/library/upcoming", libraryHandler.Upcoming).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/library/{itemID}", libraryHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/library/{itemID}", libraryHandler.Update).Methods(http.MethodPatch)
	protected.HandleFunc("/library/{itemID}", libraryHandler.Delete).Methods(http.MethodDelete)
	protected.HandleFunc("/library/{itemID}/episodes", libraryHandler.Episodes).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/library/{itemID}/episodes/{season}/{episode}", libraryHandler.SetEpisode).Methods(http.MethodPut, http.MethodOptions)
	protected.HandleFunc("/library/{itemID}/next", libraryHandler.UpNext).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/library/{itemID}/refresh", libraryHandler.Refresh).Methods(http.MethodPost, http.MethodOptions)

	// Notes are scoped under their library item
	protected.HandleFunc("/library/{itemID}/notes", notesHandler.List).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/library/{itemID}/notes", notesHandler.Add).Methods(http.MethodPost)
	protected.HandleFunc("/library/{itemID}/notes/{noteID}", notesHandler.Update).Methods(http.MethodPut, http.MethodOptions)
	protected.HandleFunc("/library/{itemID}/notes/{noteID}", notesHandler.Delete).Methods(http.MethodDelete)

	// Queue
	protected.HandleFunc("/queue", queueHandler.List).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/queue", queueHandler.Add).Methods(http.MethodPost)
	protected.HandleFunc("/queue", queueHandler.Clear).Methods(http.MethodDelete)
	protected.HandleFunc("/queue/history", queueHandler.History).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/queue/watched", queueHandler.ClearWatched).Methods(http.MethodDelete, http.MethodOptions)
	protected.HandleFunc("/queue/bulk/watched", queueHandler.BulkMarkWatched).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/queue/bulk/remove", queueHandler.BulkRemove).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/queue/bulk/top", queueHandler.BulkMoveToTop).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/queue/bulk/bottom", queueHandler.BulkMoveToBottom).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/queue/{itemID}", queueHandler.Remove).Methods(http.MethodDelete, http.MethodOptions)
	protected.HandleFunc("/queue/{itemID}/position", queueHandler.Reorder).Methods(http.MethodPut, http.MethodOptions)
	protected.HandleFunc("/queue/{itemID}/watched", queueHandler.MarkWatched).Methods(http.MethodPost, http.MethodOptions)

	// Catalog
	protected.HandleFunc("/catalog/search", catalogHandler.Search).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/catalog/shows/{tmdbID}", catalogHandler.Show).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/catalog/shows/{tmdbID}/seasons/{season}", catalogHandler.Season).Methods(http.MethodGet, http.MethodOptions)

	// Stats
	protected.HandleFunc("/stats", statsHandler.Overview).Methods(http.MethodGet, http.MethodOptions)

	// Admin (handlers enforce the admin check themselves)
	protected.HandleFunc("/admin/settings", settingsHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/admin/settings", settingsHandler.Put).Methods(http.MethodPut)
	protected.HandleFunc("/admin/maintenance", maintenanceHandler.Status).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/admin/maintenance/refresh", maintenanceHandler.Refresh).Methods(http.MethodPost, http.MethodOptions)
}
