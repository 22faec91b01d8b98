package library

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"medialog/models"
	"medialog/services/progress"
)

// mergeEpisodes applies a batch of status updates over the persisted episode
// set. Later entries in the batch override earlier ones for the same
// (season, episode) key, and entries that end up UNWATCHED are dropped: an
// explicit UNWATCHED record is equivalent to no record at all.
func mergeEpisodes(itemID string, current []models.WatchedEpisode, updates []models.EpisodeUpdate, now time.Time) []models.WatchedEpisode {
	type key struct{ season, episode int }

	merged := make(map[key]models.WatchedEpisode, len(current)+len(updates))
	order := make([]key, 0, len(current)+len(updates))
	for _, ep := range current {
		k := key{ep.SeasonNumber, ep.EpisodeNumber}
		merged[k] = ep
		order = append(order, k)
	}

	for _, upd := range updates {
		k := key{upd.SeasonNumber, upd.EpisodeNumber}
		ep, exists := merged[k]
		if !exists {
			ep = models.WatchedEpisode{
				ID:            newRowID(),
				WatchedItemID: itemID,
				SeasonNumber:  upd.SeasonNumber,
				EpisodeNumber: upd.EpisodeNumber,
				CreatedAt:     now,
			}
			order = append(order, k)
		}
		ep.Status = upd.Status
		ep.UpdatedAt = now
		if upd.Status == models.EpisodeWatched {
			t := now
			ep.WatchedAt = &t
		} else {
			ep.WatchedAt = nil
		}
		merged[k] = ep
	}

	result := make([]models.WatchedEpisode, 0, len(merged))
	for _, k := range order {
		ep, ok := merged[k]
		if !ok || ep.Status == models.EpisodeUnwatched {
			delete(merged, k)
			continue
		}
		result = append(result, ep)
		delete(merged, k)
	}
	return result
}

// advancePointer moves the legacy cursor to the last episode touched by the
// batch. Display paths still read the cursor, so it is kept in sync even
// though the episode set is the source of truth.
func advancePointer(item *models.WatchedItem, updates []models.EpisodeUpdate) {
	if len(updates) == 0 {
		return
	}
	last := updates[len(updates)-1]
	season, episode := last.SeasonNumber, last.EpisodeNumber
	item.CurrentSeason = &season
	item.CurrentEpisode = &episode
}

// SetEpisodeStatus applies a watch-status change to a single episode: upsert
// the record (absence is treated as a virtual UNWATCHED row), advance the
// cursor, and recompute progress, all in one transaction.
func (s *Service) SetEpisodeStatus(ctx context.Context, userID, itemID string, season, episode int, status models.EpisodeStatus) (models.WatchedItem, error) {
	if strings.TrimSpace(userID) == "" {
		return models.WatchedItem{}, ErrUserIDRequired
	}
	if season < 1 || episode < 1 {
		return models.WatchedItem{}, ErrInvalidEpisode
	}
	if !status.Valid() {
		return models.WatchedItem{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var updated models.WatchedItem
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		item, err := getItem(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		if err := applyEpisodeStatus(ctx, tx, itemID, season, episode, status, now); err != nil {
			return err
		}

		episodes, err := listEpisodes(ctx, tx, itemID)
		if err != nil {
			return err
		}

		item.CurrentSeason = &season
		item.CurrentEpisode = &episode
		item.Progress = progress.ShowProgress(episodes, item.TotalEpisodes).Percent
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

// applyEpisodeStatus upserts one episode record inside tx. Setting UNWATCHED
// deletes the row instead, keeping absence and explicit UNWATCHED identical.
func applyEpisodeStatus(ctx context.Context, tx *sql.Tx, itemID string, season, episode int, status models.EpisodeStatus, now time.Time) error {
	if status == models.EpisodeUnwatched {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM watched_episodes WHERE watched_item_id = ? AND season_number = ? AND episode_number = ?`,
			itemID, season, episode)
		if err != nil {
			return fmt.Errorf("delete episode: %w", err)
		}
		return nil
	}

	ep := models.WatchedEpisode{
		ID:            newRowID(),
		WatchedItemID: itemID,
		SeasonNumber:  season,
		EpisodeNumber: episode,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == models.EpisodeWatched {
		t := now
		ep.WatchedAt = &t
	}
	return upsertEpisode(ctx, tx, ep)
}

// MarkContentWatchedTx synchronises the library when the queue marks an item
// watched. It runs inside the queue's transaction so the queue mutation and
// the library mutation commit or roll back together. The WatchedItem is
// created on the fly when the user never tracked the title.
func (s *Service) MarkContentWatchedTx(ctx context.Context, tx *sql.Tx, userID string, q models.QueueItem) error {
	now := time.Now().UTC()

	item, err := findItemByContent(ctx, tx, userID, q.TMDBID, q.ContentType)
	if err != nil {
		if err != ErrNotFound {
			return err
		}
		item = models.WatchedItem{
			ID:          newRowID(),
			UserID:      userID,
			TMDBID:      q.TMDBID,
			MediaType:   q.ContentType,
			Title:       q.Title,
			Poster:      q.Poster,
			ReleaseDate: q.ReleaseDate,
			Status:      models.StatusPlanned,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := insertItem(ctx, tx, item); err != nil {
			return err
		}
	}

	if q.ContentType == models.MediaTypeTV && q.SeasonNumber != nil && q.EpisodeNumber != nil {
		season, episode := *q.SeasonNumber, *q.EpisodeNumber
		if err := applyEpisodeStatus(ctx, tx, item.ID, season, episode, models.EpisodeWatched, now); err != nil {
			return err
		}
		episodes, err := listEpisodes(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		item.CurrentSeason = &season
		item.CurrentEpisode = &episode
		if item.Status == models.StatusPlanned {
			applyStatusSideEffects(&item, models.StatusWatching, now)
		}
		item.Progress = progress.ShowProgress(episodes, item.TotalEpisodes).Percent
	} else {
		applyStatusSideEffects(&item, models.StatusCompleted, now)
		item.Progress = 100
	}

	item.UpdatedAt = now
	return updateItem(ctx, tx, item)
}

// UpNext returns the first episode with no WATCHED or SKIPPED record, scanning
// seasons then episodes in ascending order. ok is false when the catalog has
// no season data or everything is accounted for.
func (s *Service) UpNext(ctx context.Context, userID, itemID string) (season, episode int, ok bool, err error) {
	item, err := s.Get(ctx, userID, itemID)
	if err != nil {
		return 0, 0, false, err
	}
	if item.MediaType != models.MediaTypeTV || s.catalog == nil {
		return 0, 0, false, nil
	}

	details, err := s.catalog.ShowDetails(ctx, item.TMDBID)
	if err != nil {
		return 0, 0, false, nil // catalog failure is non-fatal here
	}
	episodes, err := listEpisodes(ctx, s.db.SQL(), itemID)
	if err != nil {
		return 0, 0, false, err
	}

	season, episode, ok = progress.NextUnwatched(episodes, seasonEpisodes(details))
	return season, episode, ok, nil
}
