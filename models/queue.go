package models

import "time"

// QueueItem is one queued-to-watch entry: a movie, or a specific episode of a
// show. Position is a 1-based rank kept contiguous across a user's unwatched
// items; watched rows keep their last position but are never renumbered.
type QueueItem struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	ContentID     string    `json:"contentId"`
	ContentType   MediaType `json:"contentType"`
	Title         string    `json:"title"`
	Poster        string    `json:"poster,omitempty"`
	ReleaseDate   string    `json:"releaseDate,omitempty"`
	TMDBID        int64     `json:"tmdbId"`
	SeasonNumber  *int      `json:"seasonNumber,omitempty"`
	EpisodeNumber *int      `json:"episodeNumber,omitempty"`
	EpisodeName   string    `json:"episodeName,omitempty"`
	Position      int       `json:"position"`
	Watched       bool      `json:"watched"`
	AddedAt       time.Time `json:"addedAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// QueueAddInput captures the data required to append an item to the queue.
type QueueAddInput struct {
	ContentID     string    `json:"contentId"`
	ContentType   MediaType `json:"contentType"`
	Title         string    `json:"title"`
	Poster        string    `json:"poster,omitempty"`
	ReleaseDate   string    `json:"releaseDate,omitempty"`
	TMDBID        int64     `json:"tmdbId"`
	SeasonNumber  *int      `json:"seasonNumber,omitempty"`
	EpisodeNumber *int      `json:"episodeNumber,omitempty"`
	EpisodeName   string    `json:"episodeName,omitempty"`
}

// BulkQueueResult reports how many rows a bulk queue operation touched.
type BulkQueueResult struct {
	UpdatedCount int `json:"updatedCount,omitempty"`
	DeletedCount int `json:"deletedCount,omitempty"`
}
