package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
func i64Ptr(n int64) *int64   { return &n }

func TestMovieCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := &Movie{Title: "Inception", Year: strPtr("2010"), Owner: "alice"}
	require.NoError(t, s.CreateMovie(ctx, m))
	require.NotZero(t, m.ID)

	got, err := s.GetMovie(ctx, "alice", m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Inception", got.Title)
	assert.Equal(t, "2010", *got.Year)
	assert.False(t, got.Watched)

	got.Watched = true
	got.PersonalRating = intPtr(8)
	require.NoError(t, s.UpdateMovie(ctx, got))

	got, err = s.GetMovie(ctx, "alice", m.ID)
	require.NoError(t, err)
	assert.True(t, got.Watched)
	assert.Equal(t, 8, *got.PersonalRating)

	// Other owners cannot see or touch the row.
	_, err = s.GetMovie(ctx, "bob", m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteMovie(ctx, "bob", m.ID), ErrNotFound)

	require.NoError(t, s.DeleteMovie(ctx, "alice", m.ID))
	_, err = s.GetMovie(ctx, "alice", m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListMoviesFiltersAndPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	titles := []string{"The Matrix", "The Matrix Reloaded", "Inception", "Dune"}
	for i, title := range titles {
		m := &Movie{Title: title, Owner: "alice", Watched: i%2 == 0}
		require.NoError(t, s.CreateMovie(ctx, m))
	}
	require.NoError(t, s.CreateMovie(ctx, &Movie{Title: "Not Alice's", Owner: "bob"}))

	movies, total, err := s.ListMovies(ctx, ListOpts{Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, movies, 4)

	movies, total, err = s.ListMovies(ctx, ListOpts{Owner: "alice", Query: "matrix"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, movies, 2)

	watched := true
	_, total, err = s.ListMovies(ctx, ListOpts{Owner: "alice", Watched: &watched})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	movies, total, err = s.ListMovies(ctx, ListOpts{Owner: "alice", Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, movies, 1)

	movies, _, err = s.ListMovies(ctx, ListOpts{Owner: "alice", Order: "title"})
	require.NoError(t, err)
	assert.Equal(t, "Dune", movies[0].Title)
}

func TestGenresRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	genres, err := s.EnsureGenres(ctx, []Genre{
		{TMDBID: i64Ptr(878), Name: "Science Fiction"},
		{TMDBID: i64Ptr(18), Name: "Drama"},
	})
	require.NoError(t, err)
	require.Len(t, genres, 2)

	// Ensuring again returns the same rows instead of duplicating.
	again, err := s.EnsureGenres(ctx, []Genre{{TMDBID: i64Ptr(878), Name: "Science Fiction"}})
	require.NoError(t, err)
	assert.Equal(t, genres[0].ID, again[0].ID)

	m := &Movie{Title: "Blade Runner", Year: strPtr("1982"), Owner: "alice"}
	require.NoError(t, s.CreateMovie(ctx, m))
	require.NoError(t, s.SetMovieGenres(ctx, m.ID, []int64{genres[0].ID, genres[1].ID}))

	got, err := s.GetMovie(ctx, "alice", m.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Science Fiction", "Drama"}, got.GenreNames())
	assert.ElementsMatch(t, []int64{878, 18}, got.TMDBGenreIDs())

	all, err := s.ListGenres(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListSeeds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	add := func(title string, watched bool, rating *int) {
		require.NoError(t, s.CreateMovie(ctx, &Movie{
			Title: title, Owner: "alice", Watched: watched, PersonalRating: rating,
		}))
	}
	add("Loved", true, intPtr(9))
	add("Liked", true, intPtr(7))
	add("Meh", true, intPtr(5))
	add("Unwatched", false, intPtr(10))
	add("Unrated", true, nil)

	seeds, err := s.ListSeeds(ctx, "alice", 7)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, "Loved", seeds[0].Title)

	// Raising the threshold never grows the seed set.
	higher, err := s.ListSeeds(ctx, "alice", 9)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(higher), len(seeds))
	require.Len(t, higher, 1)

	none, err := s.ListSeeds(ctx, "bob", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExternalIDsAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := "tmdb"
	require.NoError(t, s.CreateMovie(ctx, &Movie{
		Title: "Linked", Owner: "alice", Source: &src, ExternalID: strPtr("603"),
	}))
	require.NoError(t, s.CreateMovie(ctx, &Movie{Title: "Local", Owner: "alice"}))

	ids, err := s.ExternalIDs(ctx, "alice", "tmdb")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"603": true}, ids)

	found, err := s.FindByExternalID(ctx, "alice", "tmdb", "603")
	require.NoError(t, err)
	assert.Equal(t, "Linked", found.Title)

	_, err = s.FindByExternalID(ctx, "alice", "tmdb", "999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByTitleYear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMovie(ctx, &Movie{Title: "Dune", Year: strPtr("2021"), Owner: ""}))

	found, err := s.FindByTitleYear(ctx, "", "dune", strPtr("2021"))
	require.NoError(t, err)
	assert.Equal(t, "Dune", found.Title)

	_, err = s.FindByTitleYear(ctx, "", "Dune", strPtr("1984"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMissingPosters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := "tmdb"
	noPoster := &Movie{Title: "No Art", Owner: "", Source: &src, ExternalID: strPtr("1")}
	require.NoError(t, s.CreateMovie(ctx, noPoster))
	require.NoError(t, s.CreateMovie(ctx, &Movie{
		Title: "Has Art", Owner: "", Source: &src, ExternalID: strPtr("2"), PosterPath: strPtr("/x.jpg"),
	}))

	missing, err := s.ListMissingPosters(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "No Art", missing[0].Title)

	require.NoError(t, s.SetPoster(ctx, noPoster.ID, "/fixed.jpg", "overview text"))

	missing, err = s.ListMissingPosters(ctx)
	require.NoError(t, err)
	assert.Empty(t, missing)

	got, err := s.GetMovie(ctx, "", noPoster.ID)
	require.NoError(t, err)
	assert.Equal(t, "/fixed.jpg", *got.PosterPath)
	assert.Equal(t, "overview text", *got.Overview)
}
