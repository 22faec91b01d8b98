// Package notes manages user-authored notes attached to watched items.
// Ownership is always checked through the parent item; plain CRUD otherwise.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"medialog/internal/database"
	"medialog/models"
)

var (
	ErrNotFound        = errors.New("note not found")
	ErrItemNotFound    = errors.New("watched item not found")
	ErrUserIDRequired  = errors.New("user id is required")
	ErrContentRequired = errors.New("note content is required")
)

// Service manages notes.
type Service struct {
	db *database.DB
}

// NewService creates a notes service on top of the shared database.
func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// List returns an item's notes, newest first.
func (s *Service) List(ctx context.Context, userID, itemID string) ([]models.Note, error) {
	if err := s.checkItem(ctx, userID, itemID); err != nil {
		return nil, err
	}

	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT id, watched_item_id, content, season_number, episode_number, created_at, updated_at
		 FROM notes WHERE watched_item_id = ? ORDER BY created_at DESC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		var (
			note            models.Note
			season, episode sql.NullInt64
		)
		if err := rows.Scan(&note.ID, &note.WatchedItemID, &note.Content, &season, &episode,
			&note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		if season.Valid {
			n := int(season.Int64)
			note.SeasonNumber = &n
		}
		if episode.Valid {
			n := int(episode.Int64)
			note.EpisodeNumber = &n
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// Add creates a note on an item the user owns.
func (s *Service) Add(ctx context.Context, userID, itemID string, input models.NoteInput) (models.Note, error) {
	if strings.TrimSpace(input.Content) == "" {
		return models.Note{}, ErrContentRequired
	}
	if err := s.checkItem(ctx, userID, itemID); err != nil {
		return models.Note{}, err
	}

	now := time.Now().UTC()
	note := models.Note{
		ID:            uuid.NewString(),
		WatchedItemID: itemID,
		Content:       strings.TrimSpace(input.Content),
		SeasonNumber:  input.SeasonNumber,
		EpisodeNumber: input.EpisodeNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := s.db.SQL().ExecContext(ctx,
		`INSERT INTO notes (id, watched_item_id, content, season_number, episode_number, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.WatchedItemID, note.Content, note.SeasonNumber, note.EpisodeNumber,
		note.CreatedAt, note.UpdatedAt)
	if err != nil {
		return models.Note{}, fmt.Errorf("insert note: %w", err)
	}
	return note, nil
}

// Update rewrites a note's content and anchor.
func (s *Service) Update(ctx context.Context, userID, itemID, noteID string, input models.NoteInput) (models.Note, error) {
	if strings.TrimSpace(input.Content) == "" {
		return models.Note{}, ErrContentRequired
	}
	if err := s.checkItem(ctx, userID, itemID); err != nil {
		return models.Note{}, err
	}

	now := time.Now().UTC()
	res, err := s.db.SQL().ExecContext(ctx,
		`UPDATE notes SET content = ?, season_number = ?, episode_number = ?, updated_at = ?
		 WHERE id = ? AND watched_item_id = ?`,
		strings.TrimSpace(input.Content), input.SeasonNumber, input.EpisodeNumber, now, noteID, itemID)
	if err != nil {
		return models.Note{}, fmt.Errorf("update note: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Note{}, ErrNotFound
	}

	notes, err := s.List(ctx, userID, itemID)
	if err != nil {
		return models.Note{}, err
	}
	for _, note := range notes {
		if note.ID == noteID {
			return note, nil
		}
	}
	return models.Note{}, ErrNotFound
}

// Delete removes a note.
func (s *Service) Delete(ctx context.Context, userID, itemID, noteID string) error {
	if err := s.checkItem(ctx, userID, itemID); err != nil {
		return err
	}
	res, err := s.db.SQL().ExecContext(ctx,
		`DELETE FROM notes WHERE id = ? AND watched_item_id = ?`, noteID, itemID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) checkItem(ctx context.Context, userID, itemID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	var count int
	err := s.db.SQL().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM watched_items WHERE id = ? AND user_id = ?`,
		itemID, userID).Scan(&count)
	if err != nil {
		return fmt.Errorf("check item: %w", err)
	}
	if count == 0 {
		return ErrItemNotFound
	}
	return nil
}
