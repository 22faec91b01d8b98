package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"medialog/models"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
	// w500 is plenty for poster cards; "original" wastes bandwidth.
	tmdbPosterSize = "w500"
)

var (
	ErrNotConfigured = errors.New("catalog api key not configured")
	ErrUnavailable   = errors.New("catalog service unavailable")
)

// errRetryable marks responses worth another attempt (429 and 5xx).
var errRetryable = errors.New("retryable catalog response")

type tmdbClient struct {
	apiKey   string
	language string
	baseURL  string
	httpc    *http.Client

	// Rate limiting
	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func newTMDBClient(apiKey, language string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	if language == "" {
		language = "en-US"
	}
	return &tmdbClient{
		apiKey:      strings.TrimSpace(apiKey),
		language:    language,
		baseURL:     tmdbBaseURL,
		httpc:       httpc,
		minInterval: 20 * time.Millisecond, // TMDB has generous rate limits
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

// doGET performs a rate-limited GET with exponential-backoff retries on 429
// and server errors.
func (c *tmdbClient) doGET(ctx context.Context, endpoint string, v any) error {
	if !c.isConfigured() {
		return ErrNotConfigured
	}

	err := retry.Do(
		func() error {
			c.throttleMu.Lock()
			since := time.Since(c.lastRequest)
			if since < c.minInterval {
				time.Sleep(c.minInterval - since)
			}
			c.lastRequest = time.Now()
			c.throttleMu.Unlock()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.httpc.Do(req)
			if err != nil {
				return fmt.Errorf("%w: %v", errRetryable, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("%w: status %d", errRetryable, resp.StatusCode)
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(fmt.Errorf("tmdb request failed: %s", resp.Status))
			}
			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return retry.Unrecoverable(err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, errRetryable) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}
	return nil
}

func (c *tmdbClient) endpoint(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	params.Set("language", c.language)
	return c.baseURL + path + "?" + params.Encode()
}

func buildPosterURL(posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return tmdbImageBaseURL + "/" + tmdbPosterSize + posterPath
}

func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

type tmdbSearchResponse struct {
	Results []struct {
		ID           int64  `json:"id"`
		MediaType    string `json:"media_type"`
		Title        string `json:"title"`
		Name         string `json:"name"`
		Overview     string `json:"overview"`
		PosterPath   string `json:"poster_path"`
		ReleaseDate  string `json:"release_date"`
		FirstAirDate string `json:"first_air_date"`
	} `json:"results"`
}

func (c *tmdbClient) search(ctx context.Context, query string) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")

	var resp tmdbSearchResponse
	if err := c.doGET(ctx, c.endpoint("/search/multi", params), &resp); err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		var mediaType models.MediaType
		switch r.MediaType {
		case "movie":
			mediaType = models.MediaTypeMovie
		case "tv":
			mediaType = models.MediaTypeTV
		default:
			continue // people and other result types are not trackable
		}

		title := r.Title
		date := r.ReleaseDate
		if mediaType == models.MediaTypeTV {
			title = r.Name
			date = r.FirstAirDate
		}
		results = append(results, models.SearchResult{
			TMDBID:      r.ID,
			MediaType:   mediaType,
			Title:       title,
			Overview:    r.Overview,
			Poster:      buildPosterURL(r.PosterPath),
			ReleaseDate: date,
			Year:        parseYear(date),
		})
	}
	return results, nil
}

type tmdbShowResponse struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	PosterPath       string `json:"poster_path"`
	NumberOfSeasons  int    `json:"number_of_seasons"`
	NumberOfEpisodes int    `json:"number_of_episodes"`
	EpisodeRunTime   []int  `json:"episode_run_time"`
	InProduction     bool   `json:"in_production"`
	Seasons          []struct {
		SeasonNumber int `json:"season_number"`
		EpisodeCount int `json:"episode_count"`
	} `json:"seasons"`
}

func (c *tmdbClient) showDetails(ctx context.Context, tmdbID int64) (*models.ShowDetails, error) {
	var resp tmdbShowResponse
	path := fmt.Sprintf("/tv/%d", tmdbID)
	if err := c.doGET(ctx, c.endpoint(path, nil), &resp); err != nil {
		return nil, err
	}

	details := &models.ShowDetails{
		TMDBID:           resp.ID,
		Title:            resp.Name,
		Poster:           buildPosterURL(resp.PosterPath),
		NumberOfSeasons:  resp.NumberOfSeasons,
		NumberOfEpisodes: resp.NumberOfEpisodes,
		EpisodeRuntimes:  resp.EpisodeRunTime,
		InProduction:     resp.InProduction,
	}
	for _, s := range resp.Seasons {
		// Season 0 holds specials; excluded from totals and scanning.
		if s.SeasonNumber == 0 {
			continue
		}
		details.Seasons = append(details.Seasons, models.SeasonRef{
			SeasonNumber: s.SeasonNumber,
			EpisodeCount: s.EpisodeCount,
		})
	}
	return details, nil
}

type tmdbMovieResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	PosterPath  string `json:"poster_path"`
	ReleaseDate string `json:"release_date"`
	Runtime     int    `json:"runtime"`
}

func (c *tmdbClient) movieDetails(ctx context.Context, tmdbID int64) (*models.MovieDetails, error) {
	var resp tmdbMovieResponse
	path := fmt.Sprintf("/movie/%d", tmdbID)
	if err := c.doGET(ctx, c.endpoint(path, nil), &resp); err != nil {
		return nil, err
	}
	return &models.MovieDetails{
		TMDBID:      resp.ID,
		Title:       resp.Title,
		Poster:      buildPosterURL(resp.PosterPath),
		ReleaseDate: resp.ReleaseDate,
		Runtime:     resp.Runtime,
	}, nil
}

type tmdbSeasonResponse struct {
	SeasonNumber int `json:"season_number"`
	Episodes     []struct {
		EpisodeNumber int    `json:"episode_number"`
		Name          string `json:"name"`
		AirDate       string `json:"air_date"`
	} `json:"episodes"`
}

func (c *tmdbClient) seasonDetails(ctx context.Context, tmdbID int64, season int) (*models.SeasonDetails, error) {
	var resp tmdbSeasonResponse
	path := fmt.Sprintf("/tv/%d/season/%d", tmdbID, season)
	if err := c.doGET(ctx, c.endpoint(path, nil), &resp); err != nil {
		return nil, err
	}

	details := &models.SeasonDetails{SeasonNumber: resp.SeasonNumber}
	for _, ep := range resp.Episodes {
		details.Episodes = append(details.Episodes, models.EpisodeDetails{
			EpisodeNumber: ep.EpisodeNumber,
			Name:          ep.Name,
			AirDate:       ep.AirDate,
		})
	}
	return details, nil
}
