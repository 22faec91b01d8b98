package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medialog/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const itemColumns = `id, user_id, tmdb_id, media_type, title, poster, release_date,
	status, rating, current_season, current_episode, total_seasons, total_episodes,
	current_runtime, total_runtime, progress, start_date, finish_date, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (models.WatchedItem, error) {
	var (
		item                           models.WatchedItem
		rating, curSeason, curEpisode  sql.NullInt64
		totalSeasons, totalEpisodes    sql.NullInt64
		currentRuntime, totalRuntime   sql.NullInt64
		startDate, finishDate          sql.NullTime
	)
	err := row.Scan(&item.ID, &item.UserID, &item.TMDBID, &item.MediaType, &item.Title,
		&item.Poster, &item.ReleaseDate, &item.Status, &rating, &curSeason, &curEpisode,
		&totalSeasons, &totalEpisodes, &currentRuntime, &totalRuntime, &item.Progress,
		&startDate, &finishDate, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return models.WatchedItem{}, err
	}
	item.Rating = nullInt(rating)
	item.CurrentSeason = nullInt(curSeason)
	item.CurrentEpisode = nullInt(curEpisode)
	item.TotalSeasons = nullInt(totalSeasons)
	item.TotalEpisodes = nullInt(totalEpisodes)
	item.CurrentRuntime = nullInt(currentRuntime)
	item.TotalRuntime = nullInt(totalRuntime)
	item.StartDate = nullTime(startDate)
	item.FinishDate = nullTime(finishDate)
	return item, nil
}

func getItem(ctx context.Context, q querier, userID, itemID string) (models.WatchedItem, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM watched_items WHERE id = ? AND user_id = ?`,
		itemID, userID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WatchedItem{}, ErrNotFound
	}
	if err != nil {
		return models.WatchedItem{}, fmt.Errorf("get watched item: %w", err)
	}
	return item, nil
}

func findItemByContent(ctx context.Context, q querier, userID string, tmdbID int64, mediaType models.MediaType) (models.WatchedItem, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM watched_items WHERE user_id = ? AND tmdb_id = ? AND media_type = ?`,
		userID, tmdbID, mediaType)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WatchedItem{}, ErrNotFound
	}
	if err != nil {
		return models.WatchedItem{}, fmt.Errorf("find watched item: %w", err)
	}
	return item, nil
}

func insertItem(ctx context.Context, q querier, item models.WatchedItem) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO watched_items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.TMDBID, item.MediaType, item.Title, item.Poster,
		item.ReleaseDate, item.Status, item.Rating, item.CurrentSeason, item.CurrentEpisode,
		item.TotalSeasons, item.TotalEpisodes, item.CurrentRuntime, item.TotalRuntime,
		item.Progress, item.StartDate, item.FinishDate, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert watched item: %w", err)
	}
	return nil
}

func updateItem(ctx context.Context, q querier, item models.WatchedItem) error {
	_, err := q.ExecContext(ctx,
		`UPDATE watched_items SET title = ?, poster = ?, release_date = ?, status = ?,
		 rating = ?, current_season = ?, current_episode = ?, total_seasons = ?,
		 total_episodes = ?, current_runtime = ?, total_runtime = ?, progress = ?,
		 start_date = ?, finish_date = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		item.Title, item.Poster, item.ReleaseDate, item.Status, item.Rating,
		item.CurrentSeason, item.CurrentEpisode, item.TotalSeasons, item.TotalEpisodes,
		item.CurrentRuntime, item.TotalRuntime, item.Progress, item.StartDate,
		item.FinishDate, item.UpdatedAt, item.ID, item.UserID)
	if err != nil {
		return fmt.Errorf("update watched item: %w", err)
	}
	return nil
}

func listEpisodes(ctx context.Context, q querier, itemID string) ([]models.WatchedEpisode, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, watched_item_id, season_number, episode_number, status, watched_at, created_at, updated_at
		 FROM watched_episodes WHERE watched_item_id = ?
		 ORDER BY season_number, episode_number`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []models.WatchedEpisode
	for rows.Next() {
		var (
			ep        models.WatchedEpisode
			watchedAt sql.NullTime
		)
		if err := rows.Scan(&ep.ID, &ep.WatchedItemID, &ep.SeasonNumber, &ep.EpisodeNumber,
			&ep.Status, &watchedAt, &ep.CreatedAt, &ep.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		ep.WatchedAt = nullTime(watchedAt)
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

func replaceEpisodes(ctx context.Context, q querier, itemID string, episodes []models.WatchedEpisode) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM watched_episodes WHERE watched_item_id = ?`, itemID); err != nil {
		return fmt.Errorf("clear episodes: %w", err)
	}
	for _, ep := range episodes {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO watched_episodes (id, watched_item_id, season_number, episode_number, status, watched_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ep.ID, ep.WatchedItemID, ep.SeasonNumber, ep.EpisodeNumber, ep.Status,
			ep.WatchedAt, ep.CreatedAt, ep.UpdatedAt); err != nil {
			return fmt.Errorf("insert episode: %w", err)
		}
	}
	return nil
}

func upsertEpisode(ctx context.Context, q querier, ep models.WatchedEpisode) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO watched_episodes (id, watched_item_id, season_number, episode_number, status, watched_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (watched_item_id, season_number, episode_number)
		 DO UPDATE SET status = excluded.status, watched_at = excluded.watched_at, updated_at = excluded.updated_at`,
		ep.ID, ep.WatchedItemID, ep.SeasonNumber, ep.EpisodeNumber, ep.Status,
		ep.WatchedAt, ep.CreatedAt, ep.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert episode: %w", err)
	}
	return nil
}

func newRowID() string {
	return uuid.NewString()
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
