// Package library manages WatchedItem records: the per-user tracking rows for
// movies and shows, their per-episode watch records, and the derived progress
// percentage. Every mutation runs inside a single transaction so the episode
// set, the legacy season/episode cursor, and the stored percentage can never
// drift apart.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"medialog/internal/database"
	"medialog/models"
	"medialog/services/progress"
)

var (
	ErrNotFound        = errors.New("watched item not found")
	ErrUserIDRequired  = errors.New("user id is required")
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidType     = errors.New("media type must be movie or tv")
	ErrInvalidStatus   = errors.New("invalid watch status")
	ErrInvalidRating   = errors.New("rating must be between 1 and 10")
	ErrInvalidEpisode  = errors.New("season and episode numbers must be positive")
	ErrDuplicateItem   = errors.New("title is already in the library")
)

// Catalog is the subset of the external catalog client the library needs.
// Failures are treated as non-fatal for already-tracked items.
type Catalog interface {
	ShowDetails(ctx context.Context, tmdbID int64) (*models.ShowDetails, error)
	MovieDetails(ctx context.Context, tmdbID int64) (*models.MovieDetails, error)
	SeasonDetails(ctx context.Context, tmdbID int64, season int) (*models.SeasonDetails, error)
}

// Service manages the watched-item library.
type Service struct {
	db      *database.DB
	catalog Catalog
}

// NewService creates a library service on top of the shared database. catalog
// may be nil, in which case metadata enrichment is skipped entirely.
func NewService(db *database.DB, catalog Catalog) *Service {
	return &Service{db: db, catalog: catalog}
}

// Add creates a tracking record for a title. Status defaults to planned.
// Catalog enrichment (totals, runtime) is best effort: a catalog failure
// leaves the totals unset and is only logged.
func (s *Service) Add(ctx context.Context, userID string, input models.WatchedItemInput) (models.WatchedItem, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.WatchedItem{}, ErrUserIDRequired
	}
	if strings.TrimSpace(input.Title) == "" {
		return models.WatchedItem{}, ErrTitleRequired
	}
	if input.MediaType != models.MediaTypeMovie && input.MediaType != models.MediaTypeTV {
		return models.WatchedItem{}, ErrInvalidType
	}

	if _, err := findItemByContent(ctx, s.db.SQL(), userID, input.TMDBID, input.MediaType); err == nil {
		return models.WatchedItem{}, ErrDuplicateItem
	} else if !errors.Is(err, ErrNotFound) {
		return models.WatchedItem{}, err
	}

	now := time.Now().UTC()
	item := models.WatchedItem{
		ID:          newRowID(),
		UserID:      userID,
		TMDBID:      input.TMDBID,
		MediaType:   input.MediaType,
		Title:       strings.TrimSpace(input.Title),
		Poster:      input.Poster,
		ReleaseDate: input.ReleaseDate,
		Status:      models.StatusPlanned,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.enrich(ctx, &item)

	if err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return insertItem(ctx, tx, item)
	}); err != nil {
		return models.WatchedItem{}, err
	}
	return item, nil
}

// enrich fills totals from the catalog, keeping whatever is already set when
// the lookup fails.
func (s *Service) enrich(ctx context.Context, item *models.WatchedItem) {
	if s.catalog == nil {
		return
	}
	switch item.MediaType {
	case models.MediaTypeTV:
		details, err := s.catalog.ShowDetails(ctx, item.TMDBID)
		if err != nil {
			log.Printf("[library] show details lookup failed for tmdb %d: %v", item.TMDBID, err)
			return
		}
		item.TotalSeasons = &details.NumberOfSeasons
		item.TotalEpisodes = &details.NumberOfEpisodes
		if item.Poster == "" {
			item.Poster = details.Poster
		}
	case models.MediaTypeMovie:
		details, err := s.catalog.MovieDetails(ctx, item.TMDBID)
		if err != nil {
			log.Printf("[library] movie details lookup failed for tmdb %d: %v", item.TMDBID, err)
			return
		}
		if details.Runtime > 0 {
			item.TotalRuntime = &details.Runtime
		}
		if item.Poster == "" {
			item.Poster = details.Poster
		}
	}
}

// Get returns one tracked item owned by the user.
func (s *Service) Get(ctx context.Context, userID, itemID string) (models.WatchedItem, error) {
	if strings.TrimSpace(userID) == "" {
		return models.WatchedItem{}, ErrUserIDRequired
	}
	return getItem(ctx, s.db.SQL(), userID, itemID)
}

// List returns all of a user's tracked items, most recently updated first.
func (s *Service) List(ctx context.Context, userID string) ([]models.WatchedItem, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT `+itemColumns+` FROM watched_items WHERE user_id = ? ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list watched items: %w", err)
	}
	defer rows.Close()

	items := make([]models.WatchedItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watched item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Episodes returns the persisted episode records for one item.
func (s *Service) Episodes(ctx context.Context, userID, itemID string) ([]models.WatchedEpisode, error) {
	if _, err := s.Get(ctx, userID, itemID); err != nil {
		return nil, err
	}
	return listEpisodes(ctx, s.db.SQL(), itemID)
}

// Delete removes a tracked item; episode records and notes cascade.
func (s *Service) Delete(ctx context.Context, userID, itemID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM watched_items WHERE id = ? AND user_id = ?`, itemID, userID)
		if err != nil {
			return fmt.Errorf("delete watched item: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Update applies a partial update to an item. When the patch carries a
// WatchedEpisodes batch the full-replace episode path runs first, then the
// remaining fields, status side effects, and the recomputed progress are
// persisted — all in one transaction.
func (s *Service) Update(ctx context.Context, userID, itemID string, patch models.WatchedItemPatch) (models.WatchedItem, error) {
	if strings.TrimSpace(userID) == "" {
		return models.WatchedItem{}, ErrUserIDRequired
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return models.WatchedItem{}, ErrInvalidStatus
	}
	if patch.Rating != nil && (*patch.Rating < 1 || *patch.Rating > 10) {
		return models.WatchedItem{}, ErrInvalidRating
	}
	for _, ep := range patch.WatchedEpisodes {
		if ep.SeasonNumber < 1 || ep.EpisodeNumber < 1 {
			return models.WatchedItem{}, ErrInvalidEpisode
		}
		if !ep.Status.Valid() {
			return models.WatchedItem{}, fmt.Errorf("%w: %q", ErrInvalidStatus, ep.Status)
		}
	}

	// The pointer fallback needs per-season episode counts, which only the
	// catalog knows. Fetch them outside the transaction; a failure just means
	// the fallback reports 0 until totals are refreshed.
	var seasons []progress.SeasonEpisodes
	if s.catalog != nil {
		if existing, err := s.Get(ctx, userID, itemID); err == nil && existing.MediaType == models.MediaTypeTV {
			if details, err := s.catalog.ShowDetails(ctx, existing.TMDBID); err == nil {
				seasons = seasonEpisodes(details)
			}
		}
	}

	var updated models.WatchedItem
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		item, err := getItem(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		applyPatchFields(&item, patch)
		if patch.Status != nil {
			applyStatusSideEffects(&item, *patch.Status, now)
		}

		episodes, err := listEpisodes(ctx, tx, itemID)
		if err != nil {
			return err
		}

		if patch.WatchedEpisodes != nil {
			// Merge starts from the persisted set so episodes absent from
			// this batch carry forward unchanged.
			episodes = mergeEpisodes(itemID, episodes, patch.WatchedEpisodes, now)
			if err := replaceEpisodes(ctx, tx, itemID, episodes); err != nil {
				return err
			}
			advancePointer(&item, patch.WatchedEpisodes)
		}

		item.Progress = progress.ItemProgress(item, episodes, seasons)
		item.UpdatedAt = now
		if err := updateItem(ctx, tx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return models.WatchedItem{}, err
	}
	return updated, nil
}

func applyPatchFields(item *models.WatchedItem, patch models.WatchedItemPatch) {
	if patch.Rating != nil {
		item.Rating = patch.Rating
	}
	if patch.CurrentSeason != nil {
		item.CurrentSeason = patch.CurrentSeason
	}
	if patch.CurrentEpisode != nil {
		item.CurrentEpisode = patch.CurrentEpisode
	}
	if patch.CurrentRuntime != nil {
		item.CurrentRuntime = patch.CurrentRuntime
	}
	if patch.TotalRuntime != nil {
		item.TotalRuntime = patch.TotalRuntime
	}
	if patch.TotalSeasons != nil {
		item.TotalSeasons = patch.TotalSeasons
	}
	if patch.TotalEpisodes != nil {
		item.TotalEpisodes = patch.TotalEpisodes
	}
	if patch.StartDate != nil {
		item.StartDate = patch.StartDate
	}
	if patch.FinishDate != nil {
		item.FinishDate = patch.FinishDate
	}
}

// applyStatusSideEffects sets the transition dates: moving to watching stamps
// the start date once, moving to completed always stamps the finish date.
func applyStatusSideEffects(item *models.WatchedItem, status models.WatchStatus, now time.Time) {
	if status == models.StatusWatching && item.Status != models.StatusWatching && item.StartDate == nil {
		item.StartDate = &now
	}
	if status == models.StatusCompleted && item.Status != models.StatusCompleted {
		item.FinishDate = &now
	}
	item.Status = status
}

// RefreshTotals re-fetches season/episode totals from the catalog. Existing
// totals are kept when the catalog is unavailable.
func (s *Service) RefreshTotals(ctx context.Context, userID, itemID string) (models.WatchedItem, error) {
	item, err := s.Get(ctx, userID, itemID)
	if err != nil {
		return models.WatchedItem{}, err
	}
	if s.catalog == nil || item.MediaType != models.MediaTypeTV {
		return item, nil
	}

	details, err := s.catalog.ShowDetails(ctx, item.TMDBID)
	if err != nil {
		log.Printf("[library] totals refresh failed for tmdb %d: %v", item.TMDBID, err)
		return item, nil
	}

	var updated models.WatchedItem
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := getItem(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		current.TotalSeasons = &details.NumberOfSeasons
		current.TotalEpisodes = &details.NumberOfEpisodes

		episodes, err := listEpisodes(ctx, tx, itemID)
		if err != nil {
			return err
		}
		current.Progress = progress.ItemProgress(current, episodes, seasonEpisodes(details))
		current.UpdatedAt = time.Now().UTC()
		if err := updateItem(ctx, tx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return models.WatchedItem{}, err
	}
	return updated, nil
}

func seasonEpisodes(details *models.ShowDetails) []progress.SeasonEpisodes {
	if details == nil {
		return nil
	}
	seasons := make([]progress.SeasonEpisodes, 0, len(details.Seasons))
	for _, s := range details.Seasons {
		seasons = append(seasons, progress.SeasonEpisodes{
			SeasonNumber: s.SeasonNumber,
			EpisodeCount: s.EpisodeCount,
		})
	}
	return seasons
}
