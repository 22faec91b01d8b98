package models

// SearchResult is one entry returned by the external catalog's multi search.
type SearchResult struct {
	TMDBID      int64     `json:"tmdbId"`
	MediaType   MediaType `json:"mediaType"`
	Title       string    `json:"title"`
	Overview    string    `json:"overview,omitempty"`
	Poster      string    `json:"poster,omitempty"`
	ReleaseDate string    `json:"releaseDate,omitempty"`
	Year        int       `json:"year,omitempty"`
}

// ShowDetails is the subset of catalog show metadata the tracker needs.
type ShowDetails struct {
	TMDBID          int64       `json:"tmdbId"`
	Title           string      `json:"title"`
	Poster          string      `json:"poster,omitempty"`
	NumberOfSeasons int         `json:"numberOfSeasons"`
	NumberOfEpisodes int        `json:"numberOfEpisodes"`
	EpisodeRuntimes []int       `json:"episodeRuntimes,omitempty"` // minutes
	Seasons         []SeasonRef `json:"seasons,omitempty"`
	InProduction    bool        `json:"inProduction"`
}

// SeasonRef summarises one season within ShowDetails. Season 0 (specials) is
// excluded from totals.
type SeasonRef struct {
	SeasonNumber int `json:"seasonNumber"`
	EpisodeCount int `json:"episodeCount"`
}

// MovieDetails is the subset of catalog movie metadata the tracker needs.
type MovieDetails struct {
	TMDBID      int64  `json:"tmdbId"`
	Title       string `json:"title"`
	Poster      string `json:"poster,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
	Runtime     int    `json:"runtime,omitempty"` // minutes
}

// SeasonDetails lists the episodes of one season.
type SeasonDetails struct {
	SeasonNumber int              `json:"seasonNumber"`
	Episodes     []EpisodeDetails `json:"episodes"`
}

// EpisodeDetails is one episode entry from the catalog.
type EpisodeDetails struct {
	EpisodeNumber int    `json:"episodeNumber"`
	Name          string `json:"name,omitempty"`
	AirDate       string `json:"airDate,omitempty"` // YYYY-MM-DD
}

// UpcomingEpisode is a not-yet-aired episode of a tracked show.
type UpcomingEpisode struct {
	WatchedItemID string `json:"watchedItemId"`
	Title         string `json:"title"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	EpisodeName   string `json:"episodeName,omitempty"`
	AirDate       string `json:"airDate"`
}
