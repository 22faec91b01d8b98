package client

import (
	"sync"

	"medialog/models"
)

// Cache holds the client's local view of server entities. Library items and
// their episode records are keyed by item id; the queue is held as one ordered
// collection. Mutations go through Store, which keeps the cache consistent
// with the server.
type Cache struct {
	mu sync.RWMutex

	items       map[string]models.WatchedItem
	episodes    map[string][]models.WatchedEpisode
	libraryIDs  []string
	libraryOK   bool
	queue       []models.QueueItem
	queueLoaded bool
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		items:    make(map[string]models.WatchedItem),
		episodes: make(map[string][]models.WatchedEpisode),
	}
}

// Item returns the cached record for one library item.
func (c *Cache) Item(itemID string) (models.WatchedItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[itemID]
	return item, ok
}

// Episodes returns a copy of the cached episode records for one item.
func (c *Cache) Episodes(itemID string) ([]models.WatchedEpisode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	records, ok := c.episodes[itemID]
	if !ok {
		return nil, false
	}
	out := make([]models.WatchedEpisode, len(records))
	copy(out, records)
	return out, true
}

// Library returns the cached library collection in its stored order.
func (c *Cache) Library() ([]models.WatchedItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.libraryOK {
		return nil, false
	}
	out := make([]models.WatchedItem, 0, len(c.libraryIDs))
	for _, id := range c.libraryIDs {
		if item, ok := c.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, true
}

// SetLibrary replaces the cached library collection.
func (c *Cache) SetLibrary(items []models.WatchedItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.libraryIDs = c.libraryIDs[:0]
	for _, item := range items {
		c.items[item.ID] = item
		c.libraryIDs = append(c.libraryIDs, item.ID)
	}
	c.libraryOK = true
}

// PutItem stores one library item, appending it to the collection when new.
func (c *Cache) PutItem(item models.WatchedItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, known := c.items[item.ID]; !known && c.libraryOK {
		c.libraryIDs = append(c.libraryIDs, item.ID)
	}
	c.items[item.ID] = item
}

// RemoveItem drops one library item and its episode records.
func (c *Cache) RemoveItem(itemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, itemID)
	delete(c.episodes, itemID)
	for i, id := range c.libraryIDs {
		if id == itemID {
			c.libraryIDs = append(c.libraryIDs[:i], c.libraryIDs[i+1:]...)
			break
		}
	}
}

// SetEpisodes replaces the cached episode records for one item.
func (c *Cache) SetEpisodes(itemID string, records []models.WatchedEpisode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]models.WatchedEpisode, len(records))
	copy(stored, records)
	c.episodes[itemID] = stored
}

// Queue returns a copy of the cached queue.
func (c *Cache) Queue() ([]models.QueueItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.queueLoaded {
		return nil, false
	}
	out := make([]models.QueueItem, len(c.queue))
	copy(out, c.queue)
	return out, true
}

// SetQueue replaces the cached queue collection.
func (c *Cache) SetQueue(items []models.QueueItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = make([]models.QueueItem, len(items))
	copy(c.queue, items)
	c.queueLoaded = true
}

// InvalidateLibrary drops the library collection so the next read refetches.
func (c *Cache) InvalidateLibrary() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.libraryOK = false
	c.libraryIDs = nil
	c.items = make(map[string]models.WatchedItem)
	c.episodes = make(map[string][]models.WatchedEpisode)
}

// InvalidateQueue drops the queue collection so the next read refetches.
func (c *Cache) InvalidateQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueLoaded = false
	c.queue = nil
}
