package library

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"medialog/models"
)

type trackedShow struct {
	userID string
	itemID string
	title  string
}

// RefreshActiveShows re-fetches catalog totals for every planned or
// in-progress show across all users, a few at a time. It returns the number
// of shows refreshed; per-show failures are logged and skipped.
func (s *Service) RefreshActiveShows(ctx context.Context) (int, error) {
	if s.catalog == nil {
		return 0, nil
	}

	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT user_id, id, title FROM watched_items
		 WHERE media_type = ? AND status IN (?, ?)`,
		models.MediaTypeTV, models.StatusPlanned, models.StatusWatching)
	if err != nil {
		return 0, fmt.Errorf("list active shows: %w", err)
	}
	defer rows.Close()

	var shows []trackedShow
	for rows.Next() {
		var show trackedShow
		if err := rows.Scan(&show.userID, &show.itemID, &show.title); err != nil {
			return 0, fmt.Errorf("scan active show: %w", err)
		}
		shows = append(shows, show)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var refreshed atomic.Int64
	p := pool.New().WithMaxGoroutines(4).WithContext(ctx)
	for _, show := range shows {
		show := show
		p.Go(func(ctx context.Context) error {
			if _, err := s.RefreshTotals(ctx, show.userID, show.itemID); err != nil {
				log.Printf("[library] background refresh failed for %q: %v", show.title, err)
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return int(refreshed.Load()), err
	}
	return int(refreshed.Load()), nil
}
