package library_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"medialog/internal/database"
	"medialog/models"
	"medialog/services/library"
)

type fakeCatalog struct {
	show   *models.ShowDetails
	movie  *models.MovieDetails
	season *models.SeasonDetails
	err    error
}

func (f *fakeCatalog) ShowDetails(ctx context.Context, tmdbID int64) (*models.ShowDetails, error) {
	return f.show, f.err
}

func (f *fakeCatalog) MovieDetails(ctx context.Context, tmdbID int64) (*models.MovieDetails, error) {
	return f.movie, f.err
}

func (f *fakeCatalog) SeasonDetails(ctx context.Context, tmdbID int64, season int) (*models.SeasonDetails, error) {
	return f.season, f.err
}

const testUserID = "user-1"

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Now().UTC()
	_, err = db.SQL().Exec(
		`INSERT INTO users (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		testUserID, "tester", now, now)
	require.NoError(t, err)
	return db
}

func tenEpisodeShow() *models.ShowDetails {
	return &models.ShowDetails{
		TMDBID:           100,
		Title:            "Show",
		NumberOfSeasons:  2,
		NumberOfEpisodes: 10,
		Seasons: []models.SeasonRef{
			{SeasonNumber: 1, EpisodeCount: 6},
			{SeasonNumber: 2, EpisodeCount: 4},
		},
	}
}

func addShow(t *testing.T, svc *library.Service) models.WatchedItem {
	t.Helper()
	item, err := svc.Add(context.Background(), testUserID, models.WatchedItemInput{
		TMDBID:    100,
		MediaType: models.MediaTypeTV,
		Title:     "Show",
	})
	require.NoError(t, err)
	return item
}

func TestAddEnrichesAndRejectsDuplicates(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, &fakeCatalog{show: tenEpisodeShow()})
	ctx := context.Background()

	item := addShow(t, svc)
	require.Equal(t, models.StatusPlanned, item.Status)
	require.NotNil(t, item.TotalEpisodes)
	require.Equal(t, 10, *item.TotalEpisodes)
	require.NotNil(t, item.TotalSeasons)
	require.Equal(t, 2, *item.TotalSeasons)

	_, err := svc.Add(ctx, testUserID, models.WatchedItemInput{
		TMDBID:    100,
		MediaType: models.MediaTypeTV,
		Title:     "Show again",
	})
	require.ErrorIs(t, err, library.ErrDuplicateItem)

	// Same TMDB id under a different media type is a distinct record.
	_, err = svc.Add(ctx, testUserID, models.WatchedItemInput{
		TMDBID:    100,
		MediaType: models.MediaTypeMovie,
		Title:     "Movie",
	})
	require.NoError(t, err)
}

func TestAddSurvivesCatalogFailure(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, &fakeCatalog{err: errors.New("catalog down")})

	item, err := svc.Add(context.Background(), testUserID, models.WatchedItemInput{
		TMDBID:    100,
		MediaType: models.MediaTypeTV,
		Title:     "Show",
	})
	require.NoError(t, err)
	require.Nil(t, item.TotalEpisodes)
}

func TestAddValidation(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, nil)
	ctx := context.Background()

	_, err := svc.Add(ctx, "", models.WatchedItemInput{Title: "x", MediaType: models.MediaTypeTV})
	require.ErrorIs(t, err, library.ErrUserIDRequired)

	_, err = svc.Add(ctx, testUserID, models.WatchedItemInput{MediaType: models.MediaTypeTV})
	require.ErrorIs(t, err, library.ErrTitleRequired)

	_, err = svc.Add(ctx, testUserID, models.WatchedItemInput{Title: "x", MediaType: "book"})
	require.ErrorIs(t, err, library.ErrInvalidType)
}

func TestSetEpisodeStatusUpsertIdempotence(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, &fakeCatalog{show: tenEpisodeShow()})
	ctx := context.Background()
	item := addShow(t, svc)

	updated, err := svc.SetEpisodeStatus(ctx, testUserID, item.ID, 1, 1, models.EpisodeWatched)
	require.NoError(t, err)
	require.Equal(t, 10, updated.Progress)

	// Setting the same status again must not create a second row or change
	// progress.
	updated, err = svc.SetEpisodeStatus(ctx, testUserID, item.ID, 1, 1, models.EpisodeWatched)
	require.NoError(t, err)
	require.Equal(t, 10, updated.Progress)

	episodes, err := svc.Episodes(ctx, testUserID, item.ID)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	require.Equal(t, models.EpisodeWatched, episodes[0].Status)
	require.NotNil(t, episodes[0].WatchedAt)

	// Pointer follows the touched episode.
	require.NotNil(t, updated.CurrentSeason)
	require.Equal(t, 1, *updated.CurrentSeason)
	require.NotNil(t, updated.CurrentEpisode)
	require.Equal(t, 1, *updated.CurrentEpisode)
}

func TestSetEpisodeStatusUnwatchedDeletesRow(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, &fakeCatalog{show: tenEpisodeShow()})
	ctx := context.Background()
	item := addShow(t, svc)

	_, err := svc.SetEpisodeStatus(ctx, testUserID, item.ID, 1, 1, models.EpisodeWatched)
	require.NoError(t, err)

	updated, err := svc.SetEpisodeStatus(ctx, testUserID, item.ID, 1, 1, models.EpisodeUnwatched)
	require.NoError(t, err)
	require.Equal(t, 0, updated.Progress)

	episodes, err := svc.Episodes(ctx, testUserID, item.ID)
	require.NoError(t, err)
	require.Empty(t, episodes)

	// Unwatching an episode that never had a record is a no-op, not an error.
	_, err = svc.SetEpisodeStatus(ctx, testUserID, item.ID, 2, 3, models.EpisodeUnwatched)
	require.NoError(t, err)
}

func TestSetEpisodeStatusSkippedClearsWatchedAt(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, &fakeCatalog{show: tenEpisodeShow()})
	ctx := context.Background()
	item := addShow(t, svc)

	_, err := svc.SetEpisodeStatus(ctx, testUserID, item.ID, 1, 1, models.EpisodeWatched)
	require.NoError(t, err)
	_, err = svc.SetEpisodeStatus(ctx, testUserID, item.ID, 1, 1, models.EpisodeSkipped)
	require.NoError(t, err)

	episodes, err := svc.Episodes(ctx, testUserID, item.ID)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	require.Equal(t, models.EpisodeSkipped, episodes[0].Status)
	require.Nil(t, episodes[0].WatchedAt)
}

func TestSetEpisodeStatusValidation(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, nil)
	ctx := context.Background()

	_, err := svc.SetEpisodeStatus(ctx, testUserID, "nope", 0, 1, models.EpisodeWatched)
	require.ErrorIs(t, err, library.ErrInvalidEpisode)

	_, err = svc.SetEpisodeStatus(ctx, testUserID, "nope", 1, 1, "binged")
	require.ErrorIs(t, err, library.ErrInvalidStatus)

	_, err = svc.SetEpisodeStatus(ctx, testUserID, "nope", 1, 1, models.EpisodeWatched)
	require.ErrorIs(t, err, library.ErrNotFound)
}

func TestUpdateBulkReplaceCarriesForwardPersistedEpisodes(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, &fakeCatalog{show: tenEpisodeShow()})
	ctx := context.Background()
	item := addShow(t, svc)

	// Persist episodes 1 and 2 as watched.
	_, err := svc.Update(ctx, testUserID, item.ID, models.WatchedItemPatch{
		WatchedEpisodes: []models.EpisodeUpdate{
			{SeasonNumber: 1, EpisodeNumber: 1, Status: models.EpisodeWatched},
			{SeasonNumber: 1, EpisodeNumber: 2, Status: models.EpisodeWatched},
		},
	})
	require.NoError(t, err)

	// A later batch that never mentions episode 1 must leave it intact, while
	// unwatching episode 2 and adding episode 3.
	updated, err := svc.Update(ctx, testUserID, item.ID, models.WatchedItemPatch{
		WatchedEpisodes: []models.EpisodeUpdate{
			{SeasonNumber: 1, EpisodeNumber: 2, Status: models.EpisodeUnwatched},
			{SeasonNumber: 1, EpisodeNumber: 3, Status: models.EpisodeWatched},
		},
	})
	require.NoError(t, err)

	episodes, err := svc.Episodes(ctx, testUserID, item.ID)
	require.NoError(t, err)
	require.Len(t, episodes, 2)

	got := map[int]models.EpisodeStatus{}
	for _, ep := range episodes {
		got[ep.EpisodeNumber] = ep.Status
	}
	require.Equal(t, models.EpisodeWatched, got[1])
	require.Equal(t, models.EpisodeWatched, got[3])

	// 2 of 10 accounted for.
	require.Equal(t, 20, updated.Progress)

	// Pointer lands on the last entry of the batch.
	require.Equal(t, 3, *updated.CurrentEpisode)
}

func TestUpdateBulkReplaceLastEntryWinsPerKey(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, &fakeCatalog{show: tenEpisodeShow()})
	ctx := context.Background()
	item := addShow(t, svc)

	_, err := svc.Update(ctx, testUserID, item.ID, models.WatchedItemPatch{
		WatchedEpisodes: []models.EpisodeUpdate{
			{SeasonNumber: 1, EpisodeNumber: 1, Status: models.EpisodeWatched},
			{SeasonNumber: 1, EpisodeNumber: 1, Status: models.EpisodeSkipped},
		},
	})
	require.NoError(t, err)

	episodes, err := svc.Episodes(ctx, testUserID, item.ID)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	require.Equal(t, models.EpisodeSkipped, episodes[0].Status)
}

func TestUpdateStatusSideEffects(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, &fakeCatalog{show: tenEpisodeShow()})
	ctx := context.Background()
	item := addShow(t, svc)

	watching := models.StatusWatching
	updated, err := svc.Update(ctx, testUserID, item.ID, models.WatchedItemPatch{Status: &watching})
	require.NoError(t, err)
	require.NotNil(t, updated.StartDate)
	firstStart := *updated.StartDate

	// Leaving and re-entering watching must not move the start date.
	paused := models.StatusPaused
	_, err = svc.Update(ctx, testUserID, item.ID, models.WatchedItemPatch{Status: &paused})
	require.NoError(t, err)
	updated, err = svc.Update(ctx, testUserID, item.ID, models.WatchedItemPatch{Status: &watching})
	require.NoError(t, err)
	require.True(t, updated.StartDate.Equal(firstStart))

	completed := models.StatusCompleted
	updated, err = svc.Update(ctx, testUserID, item.ID, models.WatchedItemPatch{Status: &completed})
	require.NoError(t, err)
	require.NotNil(t, updated.FinishDate)
}

func TestUpdateRatingValidation(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, nil)
	ctx := context.Background()

	for _, rating := range []int{0, 11, -3} {
		r := rating
		_, err := svc.Update(ctx, testUserID, "any", models.WatchedItemPatch{Rating: &r})
		require.ErrorIs(t, err, library.ErrInvalidRating)
	}
}

func TestUnknownTotalsYieldZeroProgress(t *testing.T) {
	db := openTestDB(t)
	// No catalog: totals stay nil.
	svc := library.NewService(db, nil)
	ctx := context.Background()

	item, err := svc.Add(ctx, testUserID, models.WatchedItemInput{
		TMDBID:    100,
		MediaType: models.MediaTypeTV,
		Title:     "Show",
	})
	require.NoError(t, err)

	updated, err := svc.SetEpisodeStatus(ctx, testUserID, item.ID, 1, 1, models.EpisodeWatched)
	require.NoError(t, err)
	require.Equal(t, 0, updated.Progress)
	require.True(t, updated.MissingMetadata())
}

func TestCompletingFinalEpisodeDoesNotCompleteItem(t *testing.T) {
	db := openTestDB(t)
	show := &models.ShowDetails{
		NumberOfSeasons: 1, NumberOfEpisodes: 2,
		Seasons: []models.SeasonRef{{SeasonNumber: 1, EpisodeCount: 2}},
	}
	svc := library.NewService(db, &fakeCatalog{show: show})
	ctx := context.Background()
	item := addShow(t, svc)

	_, err := svc.SetEpisodeStatus(ctx, testUserID, item.ID, 1, 1, models.EpisodeWatched)
	require.NoError(t, err)
	updated, err := svc.SetEpisodeStatus(ctx, testUserID, item.ID, 1, 2, models.EpisodeWatched)
	require.NoError(t, err)

	require.Equal(t, 100, updated.Progress)
	require.Equal(t, models.StatusPlanned, updated.Status)
	require.Nil(t, updated.FinishDate)
}

func TestDeleteCascadesEpisodes(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, &fakeCatalog{show: tenEpisodeShow()})
	ctx := context.Background()
	item := addShow(t, svc)

	_, err := svc.SetEpisodeStatus(ctx, testUserID, item.ID, 1, 1, models.EpisodeWatched)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, testUserID, item.ID))

	var count int
	require.NoError(t, db.SQL().QueryRow(
		`SELECT COUNT(*) FROM watched_episodes WHERE watched_item_id = ?`, item.ID).Scan(&count))
	require.Zero(t, count)

	require.ErrorIs(t, svc.Delete(ctx, testUserID, item.ID), library.ErrNotFound)
}

func TestUpNext(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, &fakeCatalog{show: tenEpisodeShow()})
	ctx := context.Background()
	item := addShow(t, svc)

	season, episode, ok, err := svc.UpNext(ctx, testUserID, item.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, season)
	require.Equal(t, 1, episode)

	_, err = svc.SetEpisodeStatus(ctx, testUserID, item.ID, 1, 1, models.EpisodeWatched)
	require.NoError(t, err)
	_, err = svc.SetEpisodeStatus(ctx, testUserID, item.ID, 1, 2, models.EpisodeSkipped)
	require.NoError(t, err)

	season, episode, ok, err = svc.UpNext(ctx, testUserID, item.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, season)
	require.Equal(t, 3, episode)
}

func TestRefreshTotalsRecomputesProgress(t *testing.T) {
	db := openTestDB(t)
	catalog := &fakeCatalog{err: errors.New("down")}
	svc := library.NewService(db, catalog)
	ctx := context.Background()

	item, err := svc.Add(ctx, testUserID, models.WatchedItemInput{
		TMDBID:    100,
		MediaType: models.MediaTypeTV,
		Title:     "Show",
	})
	require.NoError(t, err)

	_, err = svc.SetEpisodeStatus(ctx, testUserID, item.ID, 1, 1, models.EpisodeWatched)
	require.NoError(t, err)

	// Catalog comes back; refresh fills totals and recomputes.
	catalog.err = nil
	catalog.show = tenEpisodeShow()
	updated, err := svc.RefreshTotals(ctx, testUserID, item.ID)
	require.NoError(t, err)
	require.Equal(t, 10, *updated.TotalEpisodes)
	require.Equal(t, 10, updated.Progress)
}

func TestProgressMonotonicityUnderWatchedOnlyOps(t *testing.T) {
	db := openTestDB(t)
	svc := library.NewService(db, &fakeCatalog{show: tenEpisodeShow()})
	ctx := context.Background()
	item := addShow(t, svc)

	prev := 0
	for _, pick := range [][2]int{{1, 3}, {1, 1}, {2, 2}, {1, 3}, {2, 1}} {
		updated, err := svc.SetEpisodeStatus(ctx, testUserID, item.ID, pick[0], pick[1], models.EpisodeWatched)
		require.NoError(t, err)
		require.GreaterOrEqual(t, updated.Progress, prev)
		prev = updated.Progress
	}
}
