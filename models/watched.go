package models

import "time"

// MediaType identifies what kind of title a record tracks.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// WatchStatus is the user-facing tracking status of a WatchedItem. Any status
// may be set from any other; transitions only attach date side effects.
type WatchStatus string

const (
	StatusPlanned   WatchStatus = "planned"
	StatusWatching  WatchStatus = "watching"
	StatusCompleted WatchStatus = "completed"
	StatusPaused    WatchStatus = "paused"
	StatusDropped   WatchStatus = "dropped"
)

// Valid reports whether s is one of the known watch statuses.
func (s WatchStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusWatching, StatusCompleted, StatusPaused, StatusDropped:
		return true
	}
	return false
}

// EpisodeStatus is the per-episode watch state. An UNWATCHED record is
// equivalent to no record at all.
type EpisodeStatus string

const (
	EpisodeUnwatched EpisodeStatus = "unwatched"
	EpisodeWatched   EpisodeStatus = "watched"
	EpisodeSkipped   EpisodeStatus = "skipped"
)

// Valid reports whether s is one of the known episode statuses.
func (s EpisodeStatus) Valid() bool {
	switch s {
	case EpisodeUnwatched, EpisodeWatched, EpisodeSkipped:
		return true
	}
	return false
}

// WatchedItem is a user's tracking record for one movie or TV show.
type WatchedItem struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	TMDBID      int64       `json:"tmdbId"`
	MediaType   MediaType   `json:"mediaType"`
	Title       string      `json:"title"`
	Poster      string      `json:"poster,omitempty"`
	ReleaseDate string      `json:"releaseDate,omitempty"`
	Status      WatchStatus `json:"status"`
	Rating      *int        `json:"rating,omitempty"` // 1-10

	// Legacy furthest-progress cursor, kept in sync with the episode set on
	// every write path that touches episode records.
	CurrentSeason  *int `json:"currentSeason,omitempty"`
	CurrentEpisode *int `json:"currentEpisode,omitempty"`

	// Movie runtime pointers, minutes.
	CurrentRuntime *int `json:"currentRuntime,omitempty"`
	TotalRuntime   *int `json:"totalRuntime,omitempty"`

	// Totals sourced from the external catalog; nil until fetched.
	TotalSeasons  *int `json:"totalSeasons,omitempty"`
	TotalEpisodes *int `json:"totalEpisodes,omitempty"`

	// Progress is always derived, never independently authoritative.
	Progress int `json:"progress"`

	StartDate  *time.Time `json:"startDate,omitempty"`
	FinishDate *time.Time `json:"finishDate,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// MissingMetadata reports whether show totals were never fetched from the
// external catalog, so episode-based progress cannot be computed yet.
func (w WatchedItem) MissingMetadata() bool {
	return w.MediaType == MediaTypeTV && w.TotalEpisodes == nil
}

// WatchedEpisode is a user's explicit per-episode watch record.
type WatchedEpisode struct {
	ID            string        `json:"id"`
	WatchedItemID string        `json:"watchedItemId"`
	SeasonNumber  int           `json:"seasonNumber"`
	EpisodeNumber int           `json:"episodeNumber"`
	Status        EpisodeStatus `json:"status"`
	WatchedAt     *time.Time    `json:"watchedAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// EpisodeUpdate is one (season, episode, status) triple in a bulk update.
type EpisodeUpdate struct {
	SeasonNumber  int           `json:"seasonNumber"`
	EpisodeNumber int           `json:"episodeNumber"`
	Status        EpisodeStatus `json:"status"`
}

// WatchedItemInput captures the data required to add a title to the library.
type WatchedItemInput struct {
	TMDBID      int64     `json:"tmdbId"`
	MediaType   MediaType `json:"mediaType"`
	Title       string    `json:"title"`
	Poster      string    `json:"poster,omitempty"`
	ReleaseDate string    `json:"releaseDate,omitempty"`
}

// WatchedItemPatch is a partial update to a WatchedItem. Nil fields are left
// untouched. A non-nil WatchedEpisodes triggers the full-replace episode path.
type WatchedItemPatch struct {
	Status         *WatchStatus    `json:"status,omitempty"`
	Rating         *int            `json:"rating,omitempty"`
	CurrentSeason  *int            `json:"currentSeason,omitempty"`
	CurrentEpisode *int            `json:"currentEpisode,omitempty"`
	CurrentRuntime *int            `json:"currentRuntime,omitempty"`
	TotalRuntime   *int            `json:"totalRuntime,omitempty"`
	TotalSeasons   *int            `json:"totalSeasons,omitempty"`
	TotalEpisodes  *int            `json:"totalEpisodes,omitempty"`
	StartDate      *time.Time      `json:"startDate,omitempty"`
	FinishDate     *time.Time      `json:"finishDate,omitempty"`
	WatchedEpisodes []EpisodeUpdate `json:"watchedEpisodes,omitempty"`
}
