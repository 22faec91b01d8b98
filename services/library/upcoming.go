package library

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"medialog/models"
)

// UpcomingReleases reports not-yet-aired episodes across the user's planned
// and in-progress shows. Season details for every show are fetched from the
// catalog concurrently; individual lookup failures drop that show from the
// result rather than failing the whole request.
func (s *Service) UpcomingReleases(ctx context.Context, userID string) ([]models.UpcomingEpisode, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.catalog == nil {
		return []models.UpcomingEpisode{}, nil
	}

	var (
		mu       sync.Mutex
		upcoming []models.UpcomingEpisode
	)
	today := time.Now().UTC().Format("2006-01-02")

	p := pool.New().WithMaxGoroutines(4).WithContext(ctx)
	for _, item := range items {
		if item.MediaType != models.MediaTypeTV {
			continue
		}
		if item.Status != models.StatusWatching && item.Status != models.StatusPlanned {
			continue
		}
		item := item
		p.Go(func(ctx context.Context) error {
			episodes, err := s.upcomingForShow(ctx, item, today)
			if err != nil {
				log.Printf("[library] upcoming lookup failed for %q: %v", item.Title, err)
				return nil // degrade, keep the other shows
			}
			mu.Lock()
			upcoming = append(upcoming, episodes...)
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(upcoming, func(i, j int) bool {
		if upcoming[i].AirDate != upcoming[j].AirDate {
			return upcoming[i].AirDate < upcoming[j].AirDate
		}
		return upcoming[i].Title < upcoming[j].Title
	})
	return upcoming, nil
}

// upcomingForShow fetches the show's later seasons and keeps episodes with a
// future air date. Only seasons at or past the cursor are inspected.
func (s *Service) upcomingForShow(ctx context.Context, item models.WatchedItem, today string) ([]models.UpcomingEpisode, error) {
	details, err := s.catalog.ShowDetails(ctx, item.TMDBID)
	if err != nil {
		return nil, err
	}
	if !details.InProduction && item.TotalEpisodes != nil {
		return nil, nil
	}

	fromSeason := 1
	if item.CurrentSeason != nil && *item.CurrentSeason > 1 {
		fromSeason = *item.CurrentSeason
	}

	var result []models.UpcomingEpisode
	for _, ref := range details.Seasons {
		if ref.SeasonNumber < fromSeason || ref.SeasonNumber == 0 {
			continue
		}
		season, err := s.catalog.SeasonDetails(ctx, item.TMDBID, ref.SeasonNumber)
		if err != nil {
			return nil, err
		}
		for _, ep := range season.Episodes {
			if ep.AirDate == "" || ep.AirDate <= today {
				continue
			}
			result = append(result, models.UpcomingEpisode{
				WatchedItemID: item.ID,
				Title:         item.Title,
				SeasonNumber:  season.SeasonNumber,
				EpisodeNumber: ep.EpisodeNumber,
				EpisodeName:   ep.Name,
				AirDate:       ep.AirDate,
			})
		}
	}
	return result, nil
}
