package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medialog/models"
	"medialog/services/progress"
)

// command is one optimistic mutation: apply runs against the cache before the
// server round trip, revert restores the pre-operation snapshot when the
// server rejects the call.
type command struct {
	apply  func()
	revert func()
}

// Store combines the API client with the entity cache. Reads go through the
// cache; mutations apply optimistically and roll back on failure, so the UI
// state always matches either the pre- or post-operation server state.
type Store struct {
	api   *Client
	cache *Cache
}

// NewStore creates a store over an authenticated client.
func NewStore(api *Client) *Store {
	return &Store{api: api, cache: NewCache()}
}

// Cache exposes the underlying cache for read-only inspection.
func (s *Store) Cache() *Cache {
	return s.cache
}

// run executes one optimistic command around a server call.
func (s *Store) run(cmd command, call func() error) error {
	cmd.apply()
	if err := call(); err != nil {
		cmd.revert()
		return err
	}
	return nil
}

// Library returns the library collection, fetching it on a cache miss.
func (s *Store) Library(ctx context.Context) ([]models.WatchedItem, error) {
	if items, ok := s.cache.Library(); ok {
		return items, nil
	}
	items, err := s.api.ListLibrary(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetLibrary(items)
	return items, nil
}

// Item returns one library item, fetching it on a cache miss.
func (s *Store) Item(ctx context.Context, itemID string) (models.WatchedItem, error) {
	if item, ok := s.cache.Item(itemID); ok {
		return item, nil
	}
	item, err := s.api.GetLibraryItem(ctx, itemID)
	if err != nil {
		return models.WatchedItem{}, err
	}
	s.cache.PutItem(item)
	return item, nil
}

// Episodes returns the episode records for one item, fetching on a cache miss.
func (s *Store) Episodes(ctx context.Context, itemID string) ([]models.WatchedEpisode, error) {
	if records, ok := s.cache.Episodes(itemID); ok {
		return records, nil
	}
	records, err := s.api.ListEpisodes(ctx, itemID)
	if err != nil {
		return nil, err
	}
	s.cache.SetEpisodes(itemID, records)
	return records, nil
}

// Queue returns the queue collection, fetching it on a cache miss.
func (s *Store) Queue(ctx context.Context) ([]models.QueueItem, error) {
	if items, ok := s.cache.Queue(); ok {
		return items, nil
	}
	items, err := s.api.ListQueue(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetQueue(items)
	return items, nil
}

// AddItem creates a library item. A provisional record appears immediately and
// is replaced by the server record on success, or removed on failure.
func (s *Store) AddItem(ctx context.Context, input models.WatchedItemInput) (models.WatchedItem, error) {
	now := time.Now().UTC()
	provisional := models.WatchedItem{
		ID:          "pending-" + uuid.NewString(),
		TMDBID:      input.TMDBID,
		MediaType:   input.MediaType,
		Title:       input.Title,
		Poster:      input.Poster,
		ReleaseDate: input.ReleaseDate,
		Status:      models.StatusPlanned,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var created models.WatchedItem
	err := s.run(command{
		apply:  func() { s.cache.PutItem(provisional) },
		revert: func() { s.cache.RemoveItem(provisional.ID) },
	}, func() error {
		var err error
		created, err = s.api.AddLibraryItem(ctx, input)
		return err
	})
	if err != nil {
		return models.WatchedItem{}, err
	}

	s.cache.RemoveItem(provisional.ID)
	s.cache.PutItem(created)
	return created, nil
}

// DeleteItem removes a library item, restoring it if the server rejects.
func (s *Store) DeleteItem(ctx context.Context, itemID string) error {
	prior, hadItem := s.cache.Item(itemID)
	priorEpisodes, hadEpisodes := s.cache.Episodes(itemID)

	return s.run(command{
		apply: func() { s.cache.RemoveItem(itemID) },
		revert: func() {
			if hadItem {
				s.cache.PutItem(prior)
			}
			if hadEpisodes {
				s.cache.SetEpisodes(itemID, priorEpisodes)
			}
		},
	}, func() error {
		return s.api.DeleteLibraryItem(ctx, itemID)
	})
}

// UpdateItem applies a partial update. The patched record shows immediately
// with progress recomputed locally; the server record replaces it on success.
func (s *Store) UpdateItem(ctx context.Context, itemID string, patch models.WatchedItemPatch) (models.WatchedItem, error) {
	prior, hadItem := s.cache.Item(itemID)

	var updated models.WatchedItem
	err := s.run(command{
		apply: func() {
			if !hadItem {
				return
			}
			local := applyPatch(prior, patch)
			records, _ := s.cache.Episodes(itemID)
			local.Progress = progress.ItemProgress(local, records, nil)
			s.cache.PutItem(local)
		},
		revert: func() {
			if hadItem {
				s.cache.PutItem(prior)
			}
		},
	}, func() error {
		var err error
		updated, err = s.api.UpdateLibraryItem(ctx, itemID, patch)
		return err
	})
	if err != nil {
		return models.WatchedItem{}, err
	}

	s.cache.PutItem(updated)
	if patch.WatchedEpisodes != nil {
		// The server reconciled the episode set; drop the stale local copy.
		s.cache.SetEpisodes(itemID, nil)
	}
	return updated, nil
}

// SetEpisodeStatus updates one episode record. The episode set and derived
// progress change immediately; the snapshot is restored exactly on failure.
func (s *Store) SetEpisodeStatus(ctx context.Context, itemID string, season, episode int, status models.EpisodeStatus) (models.WatchedItem, error) {
	prior, hadItem := s.cache.Item(itemID)
	priorEpisodes, hadEpisodes := s.cache.Episodes(itemID)

	var updated models.WatchedItem
	err := s.run(command{
		apply: func() {
			if !hadItem || !hadEpisodes {
				return
			}
			records := applyEpisode(priorEpisodes, itemID, season, episode, status)
			local := prior
			if status != models.EpisodeUnwatched {
				local.CurrentSeason = &season
				local.CurrentEpisode = &episode
			}
			local.Progress = progress.ItemProgress(local, records, nil)
			s.cache.SetEpisodes(itemID, records)
			s.cache.PutItem(local)
		},
		revert: func() {
			if hadItem {
				s.cache.PutItem(prior)
			}
			if hadEpisodes {
				s.cache.SetEpisodes(itemID, priorEpisodes)
			}
		},
	}, func() error {
		var err error
		updated, err = s.api.SetEpisodeStatus(ctx, itemID, season, episode, status)
		return err
	})
	if err != nil {
		return models.WatchedItem{}, err
	}

	s.cache.PutItem(updated)
	return updated, nil
}

// ReorderQueueItem moves one queue entry to a new 1-based position among the
// unwatched items, optimistically renumbering the local queue.
func (s *Store) ReorderQueueItem(ctx context.Context, itemID string, position int) error {
	priorQueue, hadQueue := s.cache.Queue()

	return s.run(command{
		apply: func() {
			if !hadQueue {
				return
			}
			s.cache.SetQueue(reorderQueue(priorQueue, itemID, position))
		},
		revert: func() {
			if hadQueue {
				s.cache.SetQueue(priorQueue)
			}
		},
	}, func() error {
		return s.api.ReorderQueueItem(ctx, itemID, position)
	})
}

// RemoveQueueItem deletes one queue entry, closing the position gap locally.
func (s *Store) RemoveQueueItem(ctx context.Context, itemID string) error {
	priorQueue, hadQueue := s.cache.Queue()

	return s.run(command{
		apply: func() {
			if !hadQueue {
				return
			}
			s.cache.SetQueue(removeFromQueue(priorQueue, itemID))
		},
		revert: func() {
			if hadQueue {
				s.cache.SetQueue(priorQueue)
			}
		},
	}, func() error {
		return s.api.RemoveQueueItem(ctx, itemID)
	})
}

func applyPatch(item models.WatchedItem, patch models.WatchedItemPatch) models.WatchedItem {
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.Rating != nil {
		item.Rating = patch.Rating
	}
	if patch.CurrentSeason != nil {
		item.CurrentSeason = patch.CurrentSeason
	}
	if patch.CurrentEpisode != nil {
		item.CurrentEpisode = patch.CurrentEpisode
	}
	if patch.CurrentRuntime != nil {
		item.CurrentRuntime = patch.CurrentRuntime
	}
	if patch.TotalRuntime != nil {
		item.TotalRuntime = patch.TotalRuntime
	}
	if patch.TotalSeasons != nil {
		item.TotalSeasons = patch.TotalSeasons
	}
	if patch.TotalEpisodes != nil {
		item.TotalEpisodes = patch.TotalEpisodes
	}
	if patch.StartDate != nil {
		item.StartDate = patch.StartDate
	}
	if patch.FinishDate != nil {
		item.FinishDate = patch.FinishDate
	}
	return item
}

// applyEpisode mirrors the server's single-episode semantics: unwatched drops
// the record, other statuses upsert it.
func applyEpisode(records []models.WatchedEpisode, itemID string, season, episode int, status models.EpisodeStatus) []models.WatchedEpisode {
	out := make([]models.WatchedEpisode, 0, len(records)+1)
	found := false
	now := time.Now().UTC()
	for _, record := range records {
		if record.SeasonNumber == season && record.EpisodeNumber == episode {
			found = true
			if status == models.EpisodeUnwatched {
				continue
			}
			record.Status = status
			if status == models.EpisodeWatched {
				record.WatchedAt = &now
			} else {
				record.WatchedAt = nil
			}
			record.UpdatedAt = now
		}
		out = append(out, record)
	}
	if !found && status != models.EpisodeUnwatched {
		record := models.WatchedEpisode{
			ID:            "pending-" + uuid.NewString(),
			WatchedItemID: itemID,
			SeasonNumber:  season,
			EpisodeNumber: episode,
			Status:        status,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if status == models.EpisodeWatched {
			record.WatchedAt = &now
		}
		out = append(out, record)
	}
	return out
}

// reorderQueue moves the item to the target rank among unwatched entries and
// renumbers them 1..N, leaving watched rows untouched.
func reorderQueue(items []models.QueueItem, itemID string, position int) []models.QueueItem {
	var moved *models.QueueItem
	unwatched := make([]models.QueueItem, 0, len(items))
	watched := make([]models.QueueItem, 0)
	for _, item := range items {
		switch {
		case item.ID == itemID:
			copied := item
			moved = &copied
		case item.Watched:
			watched = append(watched, item)
		default:
			unwatched = append(unwatched, item)
		}
	}
	if moved == nil || moved.Watched {
		return items
	}

	if position < 1 {
		position = 1
	}
	if position > len(unwatched)+1 {
		position = len(unwatched) + 1
	}
	unwatched = append(unwatched[:position-1], append([]models.QueueItem{*moved}, unwatched[position-1:]...)...)
	for i := range unwatched {
		unwatched[i].Position = i + 1
	}
	return append(unwatched, watched...)
}

// removeFromQueue drops the item and closes the gap among unwatched entries.
func removeFromQueue(items []models.QueueItem, itemID string) []models.QueueItem {
	out := make([]models.QueueItem, 0, len(items))
	rank := 0
	for _, item := range items {
		if item.ID == itemID {
			continue
		}
		if !item.Watched {
			rank++
			item.Position = rank
		}
		out = append(out, item)
	}
	return out
}
