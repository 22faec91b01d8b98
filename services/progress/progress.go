// Package progress holds the pure completion-percentage calculations shared by
// the server services and the API client. Both sides must produce identical
// numbers for the same inputs, so nothing in here touches the clock, the
// database, or any other hidden state.
package progress

import (
	"math"
	"sort"

	"medialog/models"
)

// Summary breaks a show's episode set into the three buckets the UI reports.
// Percent counts watched and skipped together as "accounted for".
type Summary struct {
	Watched   int `json:"watched"`
	Skipped   int `json:"skipped"`
	Remaining int `json:"remaining"`
	Percent   int `json:"percent"`
}

// SeasonEpisodes gives the episode count of one season, used for next-episode
// scanning and the legacy pointer fallback.
type SeasonEpisodes struct {
	SeasonNumber int
	EpisodeCount int
}

// MovieProgress computes a movie's 0-100 completion percentage from its status
// and runtime pointers.
func MovieProgress(status models.WatchStatus, currentRuntime, totalRuntime *int) int {
	switch status {
	case models.StatusCompleted:
		return 100
	case models.StatusPlanned:
		return 0
	}
	if currentRuntime == nil || totalRuntime == nil || *totalRuntime <= 0 {
		return 0
	}
	return clampPercent(roundRatio(*currentRuntime, *totalRuntime))
}

// ShowProgress computes the watched/skipped/remaining buckets and overall
// percentage from a show's episode records. When totalEpisodes is unknown
// (nil or non-positive) the percentage is 0; the tracker never estimates
// totals from season counts.
func ShowProgress(records []models.WatchedEpisode, totalEpisodes *int) Summary {
	var watched, skipped int
	for _, rec := range records {
		switch rec.Status {
		case models.EpisodeWatched:
			watched++
		case models.EpisodeSkipped:
			skipped++
		}
	}

	s := Summary{Watched: watched, Skipped: skipped}
	if totalEpisodes == nil || *totalEpisodes <= 0 {
		return s
	}

	total := *totalEpisodes
	if remaining := total - watched - skipped; remaining > 0 {
		s.Remaining = remaining
	}
	s.Percent = clampPercent(roundRatio(watched+skipped, total))
	return s
}

// SeasonSummary computes the buckets for a single season given its episode
// count from the catalog.
func SeasonSummary(records []models.WatchedEpisode, season, episodeCount int) Summary {
	var watched, skipped int
	for _, rec := range records {
		if rec.SeasonNumber != season {
			continue
		}
		switch rec.Status {
		case models.EpisodeWatched:
			watched++
		case models.EpisodeSkipped:
			skipped++
		}
	}

	s := Summary{Watched: watched, Skipped: skipped}
	if episodeCount <= 0 {
		return s
	}
	if remaining := episodeCount - watched - skipped; remaining > 0 {
		s.Remaining = remaining
	}
	s.Percent = clampPercent(roundRatio(watched+skipped, episodeCount))
	return s
}

// NextUnwatched scans seasons ascending, episodes ascending within a season,
// and returns the first episode with no WATCHED or SKIPPED record. ok is false
// when every known episode is accounted for or no season data is available.
func NextUnwatched(records []models.WatchedEpisode, seasons []SeasonEpisodes) (season, episode int, ok bool) {
	accounted := make(map[[2]int]bool, len(records))
	for _, rec := range records {
		if rec.Status == models.EpisodeWatched || rec.Status == models.EpisodeSkipped {
			accounted[[2]int{rec.SeasonNumber, rec.EpisodeNumber}] = true
		}
	}

	ordered := make([]SeasonEpisodes, 0, len(seasons))
	for _, s := range seasons {
		if s.SeasonNumber > 0 && s.EpisodeCount > 0 {
			ordered = append(ordered, s)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SeasonNumber < ordered[j].SeasonNumber
	})

	for _, s := range ordered {
		for ep := 1; ep <= s.EpisodeCount; ep++ {
			if !accounted[[2]int{s.SeasonNumber, ep}] {
				return s.SeasonNumber, ep, true
			}
		}
	}
	return 0, 0, false
}

// PointerProgress is the legacy fallback used only when no episode records
// exist: seasons before the cursor count as fully watched, the cursor season
// counts currentEpisode episodes, later seasons count zero.
func PointerProgress(currentSeason, currentEpisode *int, seasons []SeasonEpisodes, totalEpisodes *int) int {
	if currentSeason == nil || totalEpisodes == nil || *totalEpisodes <= 0 {
		return 0
	}

	watched := 0
	for _, s := range seasons {
		if s.SeasonNumber <= 0 {
			continue
		}
		switch {
		case s.SeasonNumber < *currentSeason:
			watched += s.EpisodeCount
		case s.SeasonNumber == *currentSeason && currentEpisode != nil:
			if n := *currentEpisode; n > 0 {
				if n > s.EpisodeCount {
					n = s.EpisodeCount
				}
				watched += n
			}
		}
	}

	return clampPercent(roundRatio(watched, *totalEpisodes))
}

// ItemProgress dispatches to the right calculation for an item: runtime ratio
// for movies, episode records for shows (preferred), pointer fallback for
// shows without any records.
func ItemProgress(item models.WatchedItem, records []models.WatchedEpisode, seasons []SeasonEpisodes) int {
	if item.MediaType == models.MediaTypeMovie {
		return MovieProgress(item.Status, item.CurrentRuntime, item.TotalRuntime)
	}
	if len(records) > 0 {
		return ShowProgress(records, item.TotalEpisodes).Percent
	}
	return PointerProgress(item.CurrentSeason, item.CurrentEpisode, seasons, item.TotalEpisodes)
}

func roundRatio(part, total int) int {
	return int(math.Round(100 * float64(part) / float64(total)))
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
