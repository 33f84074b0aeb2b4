package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvega2212/MovieWatchlist/internal/store"
	"github.com/gvega2212/MovieWatchlist/pkg/tmdb"
)

type fakeCatalog struct {
	genres  []tmdb.Genre
	details map[int64]*tmdb.MovieDetails
	calls   int
}

func (c *fakeCatalog) MovieDetails(_ context.Context, id int64) (*tmdb.MovieDetails, error) {
	c.calls++
	if d, ok := c.details[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("tmdb: unknown movie %d", id)
}

func (c *fakeCatalog) GenreList(context.Context) ([]tmdb.Genre, error) {
	return c.genres, nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func addTMDBMovie(t *testing.T, db *store.SQLiteStore, title, externalID string, poster *string) *store.Movie {
	t.Helper()
	src := "tmdb"
	m := &store.Movie{
		Title:      title,
		Source:     &src,
		ExternalID: &externalID,
		PosterPath: poster,
	}
	require.NoError(t, db.CreateMovie(context.Background(), m))
	return m
}

func TestBackfillPosters(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	missing := addTMDBMovie(t, db, "The Matrix", "603", nil)
	poster := "/have.jpg"
	addTMDBMovie(t, db, "Inception", "27205", &poster)

	catalog := &fakeCatalog{
		details: map[int64]*tmdb.MovieDetails{
			603: {TMDBID: 603, PosterPath: "/matrix.jpg", Overview: "A hacker learns the truth"},
		},
	}

	s := New(db, catalog, time.Hour, time.Hour, zerolog.Nop())
	s.backfillPosters(ctx)

	// Only the movie without a poster triggers a fetch.
	assert.Equal(t, 1, catalog.calls)

	got, err := db.GetMovie(ctx, "", missing.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PosterPath)
	assert.Equal(t, "/matrix.jpg", *got.PosterPath)
	require.NotNil(t, got.Overview)
	assert.Equal(t, "A hacker learns the truth", *got.Overview)
}

func TestBackfillSkipsFetchFailures(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	addTMDBMovie(t, db, "Unknown", "999", nil)

	catalog := &fakeCatalog{}
	s := New(db, catalog, time.Hour, time.Hour, zerolog.Nop())
	s.backfillPosters(ctx)

	left, err := db.ListMissingPosters(ctx)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestSyncGenres(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	catalog := &fakeCatalog{
		genres: []tmdb.Genre{
			{ID: 28, Name: "Action"},
			{ID: 878, Name: "Science Fiction"},
		},
	}
	s := New(db, catalog, time.Hour, time.Hour, zerolog.Nop())

	s.syncGenres(ctx)
	s.syncGenres(ctx) // idempotent

	genres, err := db.ListGenres(ctx)
	require.NoError(t, err)
	require.Len(t, genres, 2)
	assert.Equal(t, "Action", genres[0].Name)
	require.NotNil(t, genres[0].TMDBID)
	assert.EqualValues(t, 28, *genres[0].TMDBID)
}

func TestRunStopsOnCancel(t *testing.T) {
	db := newTestStore(t)
	s := New(db, &fakeCatalog{}, time.Hour, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
