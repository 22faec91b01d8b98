package queue_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"medialog/internal/database"
	"medialog/models"
	"medialog/services/library"
	"medialog/services/queue"
)

const (
	testUserID  = "user-1"
	otherUserID = "user-2"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Now().UTC()
	for i, id := range []string{testUserID, otherUserID} {
		_, err = db.SQL().Exec(
			`INSERT INTO users (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			id, fmt.Sprintf("tester-%d", i), now, now)
		require.NoError(t, err)
	}
	return db
}

func newTestService(t *testing.T) (*queue.Service, *library.Service, *database.DB) {
	t.Helper()
	db := openTestDB(t)
	lib := library.NewService(db, nil)
	return queue.NewService(db, lib, nil), lib, db
}

func movieInput(title string, tmdbID int64) models.QueueAddInput {
	return models.QueueAddInput{
		ContentID:   fmt.Sprintf("movie-%d", tmdbID),
		ContentType: models.MediaTypeMovie,
		Title:       title,
		TMDBID:      tmdbID,
	}
}

func episodeInput(title string, tmdbID int64, season, episode int) models.QueueAddInput {
	return models.QueueAddInput{
		ContentID:     fmt.Sprintf("show-%d", tmdbID),
		ContentType:   models.MediaTypeTV,
		Title:         title,
		TMDBID:        tmdbID,
		SeasonNumber:  &season,
		EpisodeNumber: &episode,
	}
}

func addThree(t *testing.T, svc *queue.Service) []models.QueueItem {
	t.Helper()
	items := make([]models.QueueItem, 0, 3)
	for i, title := range []string{"A", "B", "C"} {
		item, err := svc.Add(context.Background(), testUserID, movieInput(title, int64(i+1)))
		require.NoError(t, err)
		items = append(items, item)
	}
	return items
}

func positions(t *testing.T, svc *queue.Service) map[string]int {
	t.Helper()
	items, err := svc.List(context.Background(), testUserID)
	require.NoError(t, err)
	got := make(map[string]int, len(items))
	for _, item := range items {
		got[item.Title] = item.Position
	}
	return got
}

func requireContiguous(t *testing.T, svc *queue.Service) {
	t.Helper()
	items, err := svc.List(context.Background(), testUserID)
	require.NoError(t, err)
	for i, item := range items {
		require.Equal(t, i+1, item.Position, "position gap at %q", item.Title)
	}
}

func TestAddAppendsContiguously(t *testing.T) {
	svc, _, _ := newTestService(t)
	items := addThree(t, svc)

	for i, item := range items {
		require.Equal(t, i+1, item.Position)
		require.False(t, item.Watched)
	}
}

func TestAddDuplicateConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, testUserID, episodeInput("Show", 9, 1, 2))
	require.NoError(t, err)

	_, err = svc.Add(ctx, testUserID, episodeInput("Show", 9, 1, 2))
	require.ErrorIs(t, err, queue.ErrDuplicate)

	// A different episode of the same show is fine.
	_, err = svc.Add(ctx, testUserID, episodeInput("Show", 9, 1, 3))
	require.NoError(t, err)

	// The whole-movie row and the episode rows have different content keys.
	_, err = svc.Add(ctx, testUserID, movieInput("Movie", 9))
	require.NoError(t, err)
}

func TestAddDuplicateAgainstWatchedRowStillConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, testUserID, movieInput("A", 1))
	require.NoError(t, err)
	require.NoError(t, svc.MarkWatched(ctx, testUserID, item.ID))

	_, err = svc.Add(ctx, testUserID, movieInput("A", 1))
	require.ErrorIs(t, err, queue.ErrDuplicate)
}

func TestRemoveClosesGap(t *testing.T) {
	svc, _, _ := newTestService(t)
	items := addThree(t, svc)

	require.NoError(t, svc.Remove(context.Background(), testUserID, items[1].ID))

	got := positions(t, svc)
	require.Equal(t, map[string]int{"A": 1, "C": 2}, got)
	requireContiguous(t, svc)
}

func TestReorderRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	items := addThree(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.Reorder(ctx, testUserID, items[0].ID, 3))
	require.Equal(t, map[string]int{"B": 1, "C": 2, "A": 3}, positions(t, svc))

	require.NoError(t, svc.Reorder(ctx, testUserID, items[0].ID, 1))
	require.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3}, positions(t, svc))
}

func TestReorderRejectsOutOfRange(t *testing.T) {
	svc, _, _ := newTestService(t)
	items := addThree(t, svc)
	ctx := context.Background()

	require.ErrorIs(t, svc.Reorder(ctx, testUserID, items[0].ID, 0), queue.ErrInvalidPosition)
	require.ErrorIs(t, svc.Reorder(ctx, testUserID, items[0].ID, 4), queue.ErrInvalidPosition)
}

// The A/B/C walk: mark B watched, then the unwatched rows renumber to A=1,
// C=2 while B keeps its old position on the watched side.
func TestMarkWatchedRenumbersUnwatchedOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	items := addThree(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.MarkWatched(ctx, testUserID, items[1].ID))

	require.Equal(t, map[string]int{"A": 1, "C": 2}, positions(t, svc))

	history, err := svc.History(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "B", history[0].Title)
	require.Equal(t, 2, history[0].Position) // never renumbered
}

func TestMarkWatchedIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	items := addThree(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.MarkWatched(ctx, testUserID, items[0].ID))
	require.NoError(t, svc.MarkWatched(ctx, testUserID, items[0].ID))

	requireContiguous(t, svc)
	history, err := svc.History(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestMarkWatchedSyncsLibraryMovie(t *testing.T) {
	svc, lib, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, testUserID, movieInput("Heat", 77))
	require.NoError(t, err)
	require.NoError(t, svc.MarkWatched(ctx, testUserID, item.ID))

	tracked, err := lib.List(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, tracked, 1)
	require.Equal(t, models.StatusCompleted, tracked[0].Status)
	require.Equal(t, 100, tracked[0].Progress)
	require.NotNil(t, tracked[0].FinishDate)
}

func TestMarkWatchedSyncsLibraryEpisode(t *testing.T) {
	svc, lib, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, testUserID, episodeInput("Show", 9, 1, 2))
	require.NoError(t, err)
	require.NoError(t, svc.MarkWatched(ctx, testUserID, item.ID))

	tracked, err := lib.List(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, tracked, 1)
	require.Equal(t, models.StatusWatching, tracked[0].Status)
	require.Equal(t, 1, *tracked[0].CurrentSeason)
	require.Equal(t, 2, *tracked[0].CurrentEpisode)

	episodes, err := lib.Episodes(ctx, testUserID, tracked[0].ID)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	require.Equal(t, models.EpisodeWatched, episodes[0].Status)
}

func TestOwnershipErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	foreign, err := svc.Add(ctx, otherUserID, movieInput("Theirs", 50))
	require.NoError(t, err)

	require.ErrorIs(t, svc.Remove(ctx, testUserID, foreign.ID), queue.ErrNotOwned)
	require.ErrorIs(t, svc.Remove(ctx, testUserID, "missing"), queue.ErrNotFound)
}

func TestBulkMarkWatched(t *testing.T) {
	svc, _, _ := newTestService(t)
	items := addThree(t, svc)
	ctx := context.Background()

	result, err := svc.BulkMarkWatched(ctx, testUserID, []string{items[0].ID, items[2].ID})
	require.NoError(t, err)
	require.Equal(t, 2, result.UpdatedCount)

	require.Equal(t, map[string]int{"B": 1}, positions(t, svc))
}

func TestBulkAbortsOnForeignIDWithZeroWrites(t *testing.T) {
	svc, _, _ := newTestService(t)
	items := addThree(t, svc)
	ctx := context.Background()

	foreign, err := svc.Add(ctx, otherUserID, movieInput("Theirs", 50))
	require.NoError(t, err)

	_, err = svc.BulkMarkWatched(ctx, testUserID, []string{items[0].ID, foreign.ID})
	require.ErrorIs(t, err, queue.ErrNotOwned)

	// Nothing changed: all three rows are still unwatched at their positions.
	require.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3}, positions(t, svc))
	history, err := svc.History(ctx, testUserID)
	require.NoError(t, err)
	require.Empty(t, history)

	_, err = svc.BulkRemove(ctx, testUserID, []string{items[0].ID, "missing"})
	require.ErrorIs(t, err, queue.ErrNotFound)
	require.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3}, positions(t, svc))
}

func TestBulkRemove(t *testing.T) {
	svc, _, _ := newTestService(t)
	items := addThree(t, svc)
	ctx := context.Background()

	result, err := svc.BulkRemove(ctx, testUserID, []string{items[0].ID, items[1].ID})
	require.NoError(t, err)
	require.Equal(t, 2, result.DeletedCount)
	require.Equal(t, map[string]int{"C": 1}, positions(t, svc))
}

func TestBulkMoveToTopPreservesRelativeOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	items := addThree(t, svc)
	ctx := context.Background()

	// Move B and C up; their relative order must hold.
	result, err := svc.BulkMoveToTop(ctx, testUserID, []string{items[1].ID, items[2].ID})
	require.NoError(t, err)
	require.Equal(t, 2, result.UpdatedCount)
	require.Equal(t, map[string]int{"B": 1, "C": 2, "A": 3}, positions(t, svc))
}

func TestBulkMoveToBottom(t *testing.T) {
	svc, _, _ := newTestService(t)
	items := addThree(t, svc)
	ctx := context.Background()

	_, err := svc.BulkMoveToBottom(ctx, testUserID, []string{items[0].ID})
	require.NoError(t, err)
	require.Equal(t, map[string]int{"B": 1, "C": 2, "A": 3}, positions(t, svc))
}

func TestBulkRejectsEmptyIDs(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.BulkRemove(context.Background(), testUserID, nil)
	require.ErrorIs(t, err, queue.ErrNoIDs)
}

func TestClearWatchedAndClear(t *testing.T) {
	svc, _, _ := newTestService(t)
	items := addThree(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.MarkWatched(ctx, testUserID, items[0].ID))

	result, err := svc.ClearWatched(ctx, testUserID)
	require.NoError(t, err)
	require.Equal(t, 1, result.DeletedCount)

	result, err = svc.Clear(ctx, testUserID)
	require.NoError(t, err)
	require.Equal(t, 2, result.DeletedCount)

	remaining, err := svc.List(ctx, testUserID)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

// Arbitrary interleavings of add, remove, reorder, and mark-watched must leave
// the unwatched range contiguous from 1.
func TestContiguityAfterMixedOperations(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 6; i++ {
		item, err := svc.Add(ctx, testUserID, movieInput(fmt.Sprintf("T%d", i), int64(100+i)))
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}

	require.NoError(t, svc.MarkWatched(ctx, testUserID, ids[2]))
	require.NoError(t, svc.Remove(ctx, testUserID, ids[4]))
	require.NoError(t, svc.Reorder(ctx, testUserID, ids[5], 1))
	require.NoError(t, svc.MarkWatched(ctx, testUserID, ids[0]))
	_, err := svc.BulkMoveToBottom(ctx, testUserID, []string{ids[1]})
	require.NoError(t, err)

	requireContiguous(t, svc)
}
