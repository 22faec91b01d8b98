// Package catalog wraps the external metadata service (TMDB). The tracker
// treats it as a black box supplying titles, season/episode counts, and air
// dates; results are cached in memory with a TTL so repeated library and
// queue operations do not hammer the API.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"medialog/models"
	"medialog/utils/similarity"
)

// Service is the catalog client used by the library and queue services.
type Service struct {
	client *tmdbClient

	cacheMu  sync.RWMutex
	cache    map[string]cacheEntry
	cacheTTL time.Duration
}

type cacheEntry struct {
	value   any
	expires time.Time
}

// NewService creates a catalog service. ttlHours <= 0 defaults to 6 hours.
func NewService(apiKey, language string, ttlHours int) *Service {
	if ttlHours <= 0 {
		ttlHours = 6
	}
	return &Service{
		client:   newTMDBClient(apiKey, language, nil),
		cache:    make(map[string]cacheEntry),
		cacheTTL: time.Duration(ttlHours) * time.Hour,
	}
}

// newServiceWithClient is used by tests to point the service at a stub server.
func newServiceWithClient(client *tmdbClient, ttl time.Duration) *Service {
	return &Service{client: client, cache: make(map[string]cacheEntry), cacheTTL: ttl}
}

// Configured reports whether an API key is present.
func (s *Service) Configured() bool {
	return s.client.isConfigured()
}

// Search runs a multi search over movies and shows, ranked by how closely
// each title matches the query.
func (s *Service) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.SearchResult{}, nil
	}
	results, err := s.client.search(ctx, query)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool {
		return similarity.Score(query, results[i].Title) > similarity.Score(query, results[j].Title)
	})
	return results, nil
}

// ShowDetails returns season/episode totals for a show, cached.
func (s *Service) ShowDetails(ctx context.Context, tmdbID int64) (*models.ShowDetails, error) {
	key := fmt.Sprintf("show:%d", tmdbID)
	if cached, ok := cacheGet[*models.ShowDetails](s, key); ok {
		return cached, nil
	}
	details, err := s.client.showDetails(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	s.cachePut(key, details)
	return details, nil
}

// MovieDetails returns runtime and release metadata for a movie, cached.
func (s *Service) MovieDetails(ctx context.Context, tmdbID int64) (*models.MovieDetails, error) {
	key := fmt.Sprintf("movie:%d", tmdbID)
	if cached, ok := cacheGet[*models.MovieDetails](s, key); ok {
		return cached, nil
	}
	details, err := s.client.movieDetails(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	s.cachePut(key, details)
	return details, nil
}

// SeasonDetails returns the episode list for one season, cached.
func (s *Service) SeasonDetails(ctx context.Context, tmdbID int64, season int) (*models.SeasonDetails, error) {
	key := fmt.Sprintf("season:%d:%d", tmdbID, season)
	if cached, ok := cacheGet[*models.SeasonDetails](s, key); ok {
		return cached, nil
	}
	details, err := s.client.seasonDetails(ctx, tmdbID, season)
	if err != nil {
		return nil, err
	}
	s.cachePut(key, details)
	return details, nil
}

// PosterClient exposes the underlying HTTP client for the image proxy.
func (s *Service) PosterClient() *http.Client {
	return s.client.httpc
}

func cacheGet[T any](s *Service, key string) (T, bool) {
	var zero T
	s.cacheMu.RLock()
	entry, ok := s.cache[key]
	s.cacheMu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		return zero, false
	}
	value, ok := entry.value.(T)
	if !ok {
		return zero, false
	}
	return value, true
}

func (s *Service) cachePut(key string, value any) {
	s.cacheMu.Lock()
	s.cache[key] = cacheEntry{value: value, expires: time.Now().Add(s.cacheTTL)}
	s.cacheMu.Unlock()
}
