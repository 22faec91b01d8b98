package progress_test

import (
	"testing"

	"medialog/models"
	"medialog/services/progress"
)

func intPtr(n int) *int { return &n }

func watchedRecords(n int) []models.WatchedEpisode {
	records := make([]models.WatchedEpisode, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, models.WatchedEpisode{
			SeasonNumber:  1,
			EpisodeNumber: i,
			Status:        models.EpisodeWatched,
		})
	}
	return records
}

func TestMovieProgress(t *testing.T) {
	tests := []struct {
		name    string
		status  models.WatchStatus
		current *int
		total   *int
		want    int
	}{
		{"completed is always 100", models.StatusCompleted, nil, nil, 100},
		{"planned is always 0", models.StatusPlanned, intPtr(60), intPtr(120), 0},
		{"watching half", models.StatusWatching, intPtr(60), intPtr(120), 50},
		{"watching rounds", models.StatusWatching, intPtr(1), intPtr(3), 33},
		{"missing totals", models.StatusWatching, intPtr(60), nil, 0},
		{"zero total", models.StatusWatching, intPtr(60), intPtr(0), 0},
		{"overshoot clamps", models.StatusWatching, intPtr(200), intPtr(120), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := progress.MovieProgress(tt.status, tt.current, tt.total)
			if got != tt.want {
				t.Fatalf("MovieProgress = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestShowProgressBuckets(t *testing.T) {
	records := []models.WatchedEpisode{
		{SeasonNumber: 1, EpisodeNumber: 1, Status: models.EpisodeWatched},
		{SeasonNumber: 1, EpisodeNumber: 2, Status: models.EpisodeWatched},
		{SeasonNumber: 1, EpisodeNumber: 3, Status: models.EpisodeSkipped},
	}

	s := progress.ShowProgress(records, intPtr(10))
	if s.Watched != 2 || s.Skipped != 1 || s.Remaining != 7 {
		t.Fatalf("unexpected buckets: %+v", s)
	}
	if s.Percent != 30 {
		t.Fatalf("Percent = %d, want 30", s.Percent)
	}
}

func TestShowProgressUnknownTotals(t *testing.T) {
	records := watchedRecords(5)

	for _, total := range []*int{nil, intPtr(0), intPtr(-1)} {
		s := progress.ShowProgress(records, total)
		if s.Percent != 0 {
			t.Fatalf("Percent = %d with total %v, want 0", s.Percent, total)
		}
		if s.Watched != 5 {
			t.Fatalf("Watched = %d, want 5", s.Watched)
		}
	}
}

// Walking through a 20-episode show one episode at a time must produce the
// exact 5%-step sequence, ending at 100.
func TestShowProgressTwentyEpisodeWalk(t *testing.T) {
	total := intPtr(20)
	var records []models.WatchedEpisode
	for ep := 1; ep <= 20; ep++ {
		records = append(records, models.WatchedEpisode{
			SeasonNumber:  1,
			EpisodeNumber: ep,
			Status:        models.EpisodeWatched,
		})
		want := ep * 5
		if got := progress.ShowProgress(records, total).Percent; got != want {
			t.Fatalf("after %d episodes Percent = %d, want %d", ep, got, want)
		}
	}
}

func TestSeasonSummary(t *testing.T) {
	records := []models.WatchedEpisode{
		{SeasonNumber: 1, EpisodeNumber: 1, Status: models.EpisodeWatched},
		{SeasonNumber: 1, EpisodeNumber: 2, Status: models.EpisodeSkipped},
		{SeasonNumber: 2, EpisodeNumber: 1, Status: models.EpisodeWatched},
	}

	s := progress.SeasonSummary(records, 1, 4)
	if s.Watched != 1 || s.Skipped != 1 || s.Remaining != 2 || s.Percent != 50 {
		t.Fatalf("unexpected season summary: %+v", s)
	}
}

func TestNextUnwatched(t *testing.T) {
	seasons := []progress.SeasonEpisodes{
		{SeasonNumber: 2, EpisodeCount: 3},
		{SeasonNumber: 1, EpisodeCount: 2},
		{SeasonNumber: 0, EpisodeCount: 5}, // specials are ignored
	}

	records := []models.WatchedEpisode{
		{SeasonNumber: 1, EpisodeNumber: 1, Status: models.EpisodeWatched},
		{SeasonNumber: 1, EpisodeNumber: 2, Status: models.EpisodeSkipped},
		{SeasonNumber: 2, EpisodeNumber: 1, Status: models.EpisodeWatched},
	}

	season, episode, ok := progress.NextUnwatched(records, seasons)
	if !ok || season != 2 || episode != 2 {
		t.Fatalf("NextUnwatched = s%de%d ok=%v, want s2e2 true", season, episode, ok)
	}

	all := append(records,
		models.WatchedEpisode{SeasonNumber: 2, EpisodeNumber: 2, Status: models.EpisodeWatched},
		models.WatchedEpisode{SeasonNumber: 2, EpisodeNumber: 3, Status: models.EpisodeWatched},
	)
	if _, _, ok := progress.NextUnwatched(all, seasons); ok {
		t.Fatal("expected no next episode when everything is accounted for")
	}

	if _, _, ok := progress.NextUnwatched(nil, nil); ok {
		t.Fatal("expected no next episode without season data")
	}
}

func TestPointerProgress(t *testing.T) {
	seasons := []progress.SeasonEpisodes{
		{SeasonNumber: 1, EpisodeCount: 10},
		{SeasonNumber: 2, EpisodeCount: 10},
	}

	got := progress.PointerProgress(intPtr(2), intPtr(5), seasons, intPtr(20))
	if got != 75 {
		t.Fatalf("PointerProgress = %d, want 75", got)
	}

	if got := progress.PointerProgress(nil, nil, seasons, intPtr(20)); got != 0 {
		t.Fatalf("PointerProgress without cursor = %d, want 0", got)
	}
	if got := progress.PointerProgress(intPtr(1), intPtr(5), seasons, nil); got != 0 {
		t.Fatalf("PointerProgress without totals = %d, want 0", got)
	}
	// Cursor beyond the season's episode count is capped at the season size.
	if got := progress.PointerProgress(intPtr(1), intPtr(99), seasons, intPtr(20)); got != 50 {
		t.Fatalf("PointerProgress with overshoot cursor = %d, want 50", got)
	}
}

func TestItemProgressDispatch(t *testing.T) {
	movie := models.WatchedItem{
		MediaType:      models.MediaTypeMovie,
		Status:         models.StatusWatching,
		CurrentRuntime: intPtr(30),
		TotalRuntime:   intPtr(120),
	}
	if got := progress.ItemProgress(movie, nil, nil); got != 25 {
		t.Fatalf("movie ItemProgress = %d, want 25", got)
	}

	show := models.WatchedItem{
		MediaType:     models.MediaTypeTV,
		TotalEpisodes: intPtr(10),
	}
	if got := progress.ItemProgress(show, watchedRecords(4), nil); got != 40 {
		t.Fatalf("show ItemProgress = %d, want 40", got)
	}

	// Without records the pointer fallback applies.
	show.CurrentSeason = intPtr(1)
	show.CurrentEpisode = intPtr(5)
	seasons := []progress.SeasonEpisodes{{SeasonNumber: 1, EpisodeCount: 10}}
	if got := progress.ItemProgress(show, nil, seasons); got != 50 {
		t.Fatalf("pointer fallback ItemProgress = %d, want 50", got)
	}
}
