// Package queue manages the per-user watch queue: a strictly ordered list of
// movies and episodes. Positions are 1-based and kept contiguous across a
// user's unwatched items by every mutating operation; watched rows keep their
// last position and are never renumbered. All mutations run inside a single
// transaction so partial renumbering is never observable.
package queue

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
)

var (
	ErrNotFound        = errors.New("queue item not found")
	ErrNotOwned        = errors.New("queue item does not belong to the user")
	ErrDuplicate       = errors.New("item is already queued")
	ErrUserIDRequired  = errors.New("user id is required")
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidPosition = errors.New("position out of range")
	ErrNoIDs           = errors.New("at least one id is required")
)

// WatchedSync is implemented by the library service. It runs inside the
// queue's transaction so queue and library mutations commit together.
type WatchedSync interface {
	MarkContentWatchedTx(ctx context.Context, tx *sql.Tx, userID string, item models.QueueItem) error
}

// EpisodeNamer resolves episode names from the external catalog for queue
// display. Lookups are best effort.
type EpisodeNamer interface {
	SeasonDetails(ctx context.Context, tmdbID int64, season int) (*models.SeasonDetails, error)
}

// Service manages queue items.
type Service struct {
	db      *database.DB
	library WatchedSync
	catalog EpisodeNamer
}

// NewService creates a queue service. library must not be nil; catalog may be
// nil, disabling episode-name enrichment.
func NewService(db *database.DB, library WatchedSync, catalog EpisodeNamer) *Service {
	return &Service{db: db, library: library, catalog: catalog}
}

// List returns the user's unwatched queue in position order.
func (s *Service) List(ctx context.Context, userID string) ([]models.QueueItem, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	return s.listWhere(ctx, userID, `watched = 0 ORDER BY position`)
}

// History returns the user's watched queue rows, most recently updated first.
func (s *Service) History(ctx context.Context, userID string) ([]models.QueueItem, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	return s.listWhere(ctx, userID, `watched = 1 ORDER BY updated_at DESC`)
}

// Add appends an item to the end of the unwatched queue. Queueing the same
// (content, season, episode) twice is a conflict, whether or not the earlier
// row has been watched.
func (s *Service) Add(ctx context.Context, userID string, input models.QueueAddInput) (models.QueueItem, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.QueueItem{}, ErrUserIDRequired
	}
	if strings.TrimSpace(input.Title) == "" {
		return models.QueueItem{}, ErrTitleRequired
	}

	s.enrichEpisodeName(ctx, &input)

	now := time.Now().UTC()
	item := models.QueueItem{
		ID:            newRowID(),
		UserID:        userID,
		ContentID:     input.ContentID,
		ContentType:   input.ContentType,
		Title:         strings.TrimSpace(input.Title),
		Poster:        input.Poster,
		ReleaseDate:   input.ReleaseDate,
		TMDBID:        input.TMDBID,
		SeasonNumber:  input.SeasonNumber,
		EpisodeNumber: input.EpisodeNumber,
		EpisodeName:   input.EpisodeName,
		AddedAt:       now,
		UpdatedAt:     now,
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM queue_items
			 WHERE user_id = ? AND content_id = ? AND season_number IS ? AND episode_number IS ?`,
			userID, input.ContentID, input.SeasonNumber, input.EpisodeNumber).Scan(&count)
		if err != nil {
			return fmt.Errorf("check duplicate: %w", err)
		}
		if count > 0 {
			return ErrDuplicate
		}

		var maxPos int
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), 0) FROM queue_items WHERE user_id = ? AND watched = 0`,
			userID).Scan(&maxPos)
		if err != nil {
			return fmt.Errorf("max position: %w", err)
		}
		item.Position = maxPos + 1

		_, err = tx.ExecContext(ctx,
			`INSERT INTO queue_items (id, user_id, content_id, content_type, title, poster, release_date,
			 tmdb_id, season_number, episode_number, episode_name, position, watched, added_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			item.ID, item.UserID, item.ContentID, item.ContentType, item.Title, item.Poster,
			item.ReleaseDate, item.TMDBID, item.SeasonNumber, item.EpisodeNumber,
			item.EpisodeName, item.Position, item.AddedAt, item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert queue item: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.QueueItem{}, err
	}
	return item, nil
}

// enrichEpisodeName fills in the episode name from the catalog when missing.
// A catalog failure degrades to an empty name, never an error.
func (s *Service) enrichEpisodeName(ctx context.Context, input *models.QueueAddInput) {
	if s.catalog == nil || input.EpisodeName != "" {
		return
	}
	if input.ContentType != models.MediaTypeTV || input.SeasonNumber == nil || input.EpisodeNumber == nil {
		return
	}
	season, err := s.catalog.SeasonDetails(ctx, input.TMDBID, *input.SeasonNumber)
	if err != nil {
		log.Printf("[queue] episode name lookup failed for tmdb %d s%d: %v", input.TMDBID, *input.SeasonNumber, err)
		return
	}
	for _, ep := range season.Episodes {
		if ep.EpisodeNumber == *input.EpisodeNumber {
			input.EpisodeName = ep.Name
			return
		}
	}
}

// Remove deletes a queue row and closes the gap among the remaining unwatched
// items. Watched rows keep their positions.
func (s *Service) Remove(ctx context.Context, userID, itemID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		item, err := getOwned(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, item.ID); err != nil {
			return fmt.Errorf("delete queue item: %w", err)
		}
		if !item.Watched {
			return shiftDown(ctx, tx, userID, item.Position)
		}
		return nil
	})
}

// Reorder moves an unwatched item to newPos, shifting every item in between
// by one so positions stay contiguous with no duplicates.
func (s *Service) Reorder(ctx context.Context, userID, itemID string, newPos int) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		item, err := getOwned(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		if item.Watched {
			return ErrNotFound
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM queue_items WHERE user_id = ? AND watched = 0`, userID).Scan(&count); err != nil {
			return fmt.Errorf("count queue: %w", err)
		}
		if newPos < 1 || newPos > count {
			return ErrInvalidPosition
		}
		if newPos == item.Position {
			return nil
		}

		if newPos > item.Position {
			// Moving toward the tail: pull the in-between rows forward.
			_, err = tx.ExecContext(ctx,
				`UPDATE queue_items SET position = position - 1
				 WHERE user_id = ? AND watched = 0 AND position > ? AND position <= ?`,
				userID, item.Position, newPos)
		} else {
			// Moving toward the head: push the in-between rows back.
			_, err = tx.ExecContext(ctx,
				`UPDATE queue_items SET position = position + 1
				 WHERE user_id = ? AND watched = 0 AND position >= ? AND position < ?`,
				userID, newPos, item.Position)
		}
		if err != nil {
			return fmt.Errorf("shift positions: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE queue_items SET position = ?, updated_at = ? WHERE id = ?`,
			newPos, time.Now().UTC(), item.ID)
		if err != nil {
			return fmt.Errorf("set position: %w", err)
		}
		return nil
	})
}

// MarkWatched flags a queue row as watched, closes the gap in the unwatched
// range, and synchronises the library (episode record or completed movie) in
// the same transaction.
func (s *Service) MarkWatched(ctx context.Context, userID, itemID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		item, err := getOwned(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		if item.Watched {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE queue_items SET watched = 1, updated_at = ? WHERE id = ?`,
			time.Now().UTC(), item.ID)
		if err != nil {
			return fmt.Errorf("mark watched: %w", err)
		}
		if err := shiftDown(ctx, tx, userID, item.Position); err != nil {
			return err
		}
		return s.library.MarkContentWatchedTx(ctx, tx, userID, item)
	})
}

// ClearWatched deletes all watched rows.
func (s *Service) ClearWatched(ctx context.Context, userID string) (models.BulkQueueResult, error) {
	return s.clearWhere(ctx, userID, 1)
}

// Clear deletes all unwatched rows. No renumbering is needed since the whole
// contiguous range goes away together.
func (s *Service) Clear(ctx context.Context, userID string) (models.BulkQueueResult, error) {
	return s.clearWhere(ctx, userID, 0)
}

func (s *Service) clearWhere(ctx context.Context, userID string, watched int) (models.BulkQueueResult, error) {
	if strings.TrimSpace(userID) == "" {
		return models.BulkQueueResult{}, ErrUserIDRequired
	}
	var result models.BulkQueueResult
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM queue_items WHERE user_id = ? AND watched = ?`, userID, watched)
		if err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}
		n, _ := res.RowsAffected()
		result.DeletedCount = int(n)
		return nil
	})
	return result, err
}

func (s *Service) listWhere(ctx context.Context, userID, where string) ([]models.QueueItem, error) {
	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT id, user_id, content_id, content_type, title, poster, release_date, tmdb_id,
		 season_number, episode_number, episode_name, position, watched, added_at, updated_at
		 FROM queue_items WHERE user_id = ? AND `+where, userID)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	items := make([]models.QueueItem, 0)
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanQueueItem(row interface{ Scan(...any) error }) (models.QueueItem, error) {
	var (
		item            models.QueueItem
		season, episode sql.NullInt64
	)
	err := row.Scan(&item.ID, &item.UserID, &item.ContentID, &item.ContentType, &item.Title,
		&item.Poster, &item.ReleaseDate, &item.TMDBID, &season, &episode, &item.EpisodeName,
		&item.Position, &item.Watched, &item.AddedAt, &item.UpdatedAt)
	if err != nil {
		return models.QueueItem{}, fmt.Errorf("scan queue item: %w", err)
	}
	if season.Valid {
		n := int(season.Int64)
		item.SeasonNumber = &n
	}
	if episode.Valid {
		n := int(episode.Int64)
		item.EpisodeNumber = &n
	}
	return item, nil
}

// getOwned loads a queue row by id, distinguishing missing rows from rows
// owned by someone else.
func getOwned(ctx context.Context, tx *sql.Tx, userID, itemID string) (models.QueueItem, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, user_id, content_id, content_type, title, poster, release_date, tmdb_id,
		 season_number, episode_number, episode_name, position, watched, added_at, updated_at
		 FROM queue_items WHERE id = ?`, itemID)
	item, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.QueueItem{}, ErrNotFound
	}
	if err != nil {
		return models.QueueItem{}, err
	}
	if item.UserID != userID {
		return models.QueueItem{}, ErrNotOwned
	}
	return item, nil
}

// shiftDown closes the gap left at position among a user's unwatched rows.
func shiftDown(ctx context.Context, tx *sql.Tx, userID string, position int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE queue_items SET position = position - 1
		 WHERE user_id = ? AND watched = 0 AND position > ?`, userID, position)
	if err != nil {
		return fmt.Errorf("shift positions: %w", err)
	}
	return nil
}
