package queue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"medialog/models"
)

func newRowID() string {
	return uuid.NewString()
}

// BulkMarkWatched flags every listed row as watched, renumbers the surviving
// unwatched range once, and performs the library synchronisation for each
// item — all inside one transaction. Ownership of every id is verified before
// any row is touched.
func (s *Service) BulkMarkWatched(ctx context.Context, userID string, ids []string) (models.BulkQueueResult, error) {
	var result models.BulkQueueResult
	err := s.bulk(ctx, userID, ids, func(tx *sql.Tx, items []models.QueueItem) error {
		now := time.Now().UTC()
		updated := 0
		for _, item := range items {
			if item.Watched {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE queue_items SET watched = 1, updated_at = ? WHERE id = ?`,
				now, item.ID); err != nil {
				return fmt.Errorf("mark watched: %w", err)
			}
			if err := s.library.MarkContentWatchedTx(ctx, tx, userID, item); err != nil {
				return err
			}
			updated++
		}
		result.UpdatedCount = updated
		return renumber(ctx, tx, userID)
	})
	return result, err
}

// BulkRemove deletes every listed row and renumbers the remaining unwatched
// range once.
func (s *Service) BulkRemove(ctx context.Context, userID string, ids []string) (models.BulkQueueResult, error) {
	var result models.BulkQueueResult
	err := s.bulk(ctx, userID, ids, func(tx *sql.Tx, items []models.QueueItem) error {
		for _, item := range items {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM queue_items WHERE id = ?`, item.ID); err != nil {
				return fmt.Errorf("delete queue item: %w", err)
			}
		}
		result.DeletedCount = len(items)
		return renumber(ctx, tx, userID)
	})
	return result, err
}

// BulkMoveToTop moves the listed unwatched rows to the head of the queue,
// preserving their relative order, and renumbers everything in one pass.
func (s *Service) BulkMoveToTop(ctx context.Context, userID string, ids []string) (models.BulkQueueResult, error) {
	return s.bulkMove(ctx, userID, ids, true)
}

// BulkMoveToBottom moves the listed unwatched rows to the tail of the queue,
// preserving their relative order.
func (s *Service) BulkMoveToBottom(ctx context.Context, userID string, ids []string) (models.BulkQueueResult, error) {
	return s.bulkMove(ctx, userID, ids, false)
}

func (s *Service) bulkMove(ctx context.Context, userID string, ids []string, toTop bool) (models.BulkQueueResult, error) {
	var result models.BulkQueueResult
	err := s.bulk(ctx, userID, ids, func(tx *sql.Tx, items []models.QueueItem) error {
		selected := make(map[string]bool, len(items))
		for _, item := range items {
			if !item.Watched {
				selected[item.ID] = true
			}
		}

		ordered, err := unwatchedIDs(ctx, tx, userID)
		if err != nil {
			return err
		}

		picked := make([]string, 0, len(selected))
		rest := make([]string, 0, len(ordered))
		for _, id := range ordered {
			if selected[id] {
				picked = append(picked, id)
			} else {
				rest = append(rest, id)
			}
		}

		var sequence []string
		if toTop {
			sequence = append(picked, rest...)
		} else {
			sequence = append(rest, picked...)
		}

		now := time.Now().UTC()
		for i, id := range sequence {
			if _, err := tx.ExecContext(ctx,
				`UPDATE queue_items SET position = ?, updated_at = ? WHERE id = ?`,
				i+1, now, id); err != nil {
				return fmt.Errorf("set position: %w", err)
			}
		}
		result.UpdatedCount = len(picked)
		return nil
	})
	return result, err
}

// bulk verifies ownership of every id up front — any missing or foreign row
// aborts with zero writes — then hands the loaded rows to fn inside one
// transaction.
func (s *Service) bulk(ctx context.Context, userID string, ids []string, fn func(tx *sql.Tx, items []models.QueueItem) error) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	if len(ids) == 0 {
		return ErrNoIDs
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		items := make([]models.QueueItem, 0, len(ids))
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			item, err := getOwned(ctx, tx, userID, id)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return fn(tx, items)
	})
}

// renumber reassigns 1..N to a user's unwatched rows in their current order.
// Bulk operations use this single pass instead of repeating the single-item
// gap shift per row.
func renumber(ctx context.Context, tx *sql.Tx, userID string) error {
	ids, err := unwatchedIDs(ctx, tx, userID)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE queue_items SET position = ? WHERE id = ?`, i+1, id); err != nil {
			return fmt.Errorf("renumber queue: %w", err)
		}
	}
	return nil
}

func unwatchedIDs(ctx context.Context, tx *sql.Tx, userID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM queue_items WHERE user_id = ? AND watched = 0 ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("load queue order: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan queue id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
