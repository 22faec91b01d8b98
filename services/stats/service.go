// Package stats computes per-user aggregate statistics over the library and
// episode records with plain SQL aggregates.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"medialog/internal/database"
	"medialog/models"
)

var ErrUserIDRequired = errors.New("user id is required")

// Overview is the aggregate view returned to the stats page.
type Overview struct {
	TotalItems      int            `json:"totalItems"`
	ByStatus        map[string]int `json:"byStatus"`
	ByMediaType     map[string]int `json:"byMediaType"`
	EpisodesWatched int            `json:"episodesWatched"`
	EpisodesSkipped int            `json:"episodesSkipped"`
	MinutesWatched  int            `json:"minutesWatched"`
	AverageRating   float64        `json:"averageRating"`
	RatedItems      int            `json:"ratedItems"`
	RecentFinishes  []Finish       `json:"recentFinishes"`
}

// Finish is one recently completed title.
type Finish struct {
	ItemID     string           `json:"itemId"`
	Title      string           `json:"title"`
	MediaType  models.MediaType `json:"mediaType"`
	FinishDate time.Time        `json:"finishDate"`
}

// Service computes statistics.
type Service struct {
	db *database.DB
}

// NewService creates a stats service on top of the shared database.
func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// Overview aggregates the user's library into one response.
func (s *Service) Overview(ctx context.Context, userID string) (Overview, error) {
	if strings.TrimSpace(userID) == "" {
		return Overview{}, ErrUserIDRequired
	}

	overview := Overview{
		ByStatus:    make(map[string]int),
		ByMediaType: make(map[string]int),
	}

	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT status, media_type, COUNT(*) FROM watched_items WHERE user_id = ? GROUP BY status, media_type`,
		userID)
	if err != nil {
		return Overview{}, fmt.Errorf("count items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status, mediaType string
		var count int
		if err := rows.Scan(&status, &mediaType, &count); err != nil {
			return Overview{}, fmt.Errorf("scan count: %w", err)
		}
		overview.TotalItems += count
		overview.ByStatus[status] += count
		overview.ByMediaType[mediaType] += count
	}
	if err := rows.Err(); err != nil {
		return Overview{}, err
	}

	err = s.db.SQL().QueryRowContext(ctx,
		`SELECT
		   COUNT(CASE WHEN we.status = 'watched' THEN 1 END),
		   COUNT(CASE WHEN we.status = 'skipped' THEN 1 END)
		 FROM watched_episodes we
		 JOIN watched_items wi ON wi.id = we.watched_item_id
		 WHERE wi.user_id = ?`, userID).Scan(&overview.EpisodesWatched, &overview.EpisodesSkipped)
	if err != nil {
		return Overview{}, fmt.Errorf("count episodes: %w", err)
	}

	var avg sql.NullFloat64
	err = s.db.SQL().QueryRowContext(ctx,
		`SELECT AVG(rating), COUNT(rating) FROM watched_items WHERE user_id = ? AND rating IS NOT NULL`,
		userID).Scan(&avg, &overview.RatedItems)
	if err != nil {
		return Overview{}, fmt.Errorf("average rating: %w", err)
	}
	if avg.Valid {
		overview.AverageRating = avg.Float64
	}

	overview.MinutesWatched, err = s.minutesWatched(ctx, userID)
	if err != nil {
		return Overview{}, err
	}

	overview.RecentFinishes, err = s.recentFinishes(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	return overview, nil
}

func (s *Service) recentFinishes(ctx context.Context, userID string) ([]Finish, error) {
	rows, err := s.db.SQL().QueryContext(ctx,
		`SELECT id, title, media_type, finish_date FROM watched_items
		 WHERE user_id = ? AND status = 'completed' AND finish_date IS NOT NULL
		 ORDER BY finish_date DESC LIMIT 5`, userID)
	if err != nil {
		return nil, fmt.Errorf("recent finishes: %w", err)
	}
	defer rows.Close()

	finishes := make([]Finish, 0, 5)
	for rows.Next() {
		var f Finish
		if err := rows.Scan(&f.ItemID, &f.Title, &f.MediaType, &f.FinishDate); err != nil {
			return nil, fmt.Errorf("scan finish: %w", err)
		}
		finishes = append(finishes, f)
	}
	return finishes, rows.Err()
}

// minutesWatched estimates viewing time: completed movies count their full
// runtime, in-progress movies their current runtime, and episodes a flat 40
// minutes when the show carries no runtime data.
func (s *Service) minutesWatched(ctx context.Context, userID string) (int, error) {
	var movieMinutes sql.NullInt64
	err := s.db.SQL().QueryRowContext(ctx,
		`SELECT SUM(CASE
		   WHEN status = 'completed' AND total_runtime IS NOT NULL THEN total_runtime
		   WHEN current_runtime IS NOT NULL THEN current_runtime
		   ELSE 0 END)
		 FROM watched_items WHERE user_id = ? AND media_type = 'movie'`, userID).Scan(&movieMinutes)
	if err != nil {
		return 0, fmt.Errorf("movie minutes: %w", err)
	}

	var watchedEpisodes int
	err = s.db.SQL().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM watched_episodes we
		 JOIN watched_items wi ON wi.id = we.watched_item_id
		 WHERE wi.user_id = ? AND we.status = 'watched'`, userID).Scan(&watchedEpisodes)
	if err != nil {
		return 0, fmt.Errorf("episode minutes: %w", err)
	}

	const defaultEpisodeMinutes = 40
	return int(movieMinutes.Int64) + watchedEpisodes*defaultEpisodeMinutes, nil
}
