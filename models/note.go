package models

import "time"

// Note is a user-authored note attached to a WatchedItem, optionally anchored
// to a specific episode.
type Note struct {
	ID            string    `json:"id"`
	WatchedItemID string    `json:"watchedItemId"`
	Content       string    `json:"content"`
	SeasonNumber  *int      `json:"seasonNumber,omitempty"`
	EpisodeNumber *int      `json:"episodeNumber,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NoteInput captures the data required to create or update a note.
type NoteInput struct {
	Content       string `json:"content"`
	SeasonNumber  *int   `json:"seasonNumber,omitempty"`
	EpisodeNumber *int   `json:"episodeNumber,omitempty"`
}
