package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvega2212/MovieWatchlist/internal/store"
	"github.com/gvega2212/MovieWatchlist/pkg/tmdb"
)

type fakeStore struct {
	store.Store
	seeds []store.Movie
	owned map[string]bool
}

func (f *fakeStore) ListSeeds(_ context.Context, _ string, minRating int) ([]store.Movie, error) {
	var out []store.Movie
	for _, m := range f.seeds {
		if m.Watched && m.PersonalRating != nil && *m.PersonalRating >= minRating {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ExternalIDs(context.Context, string, string) (map[string]bool, error) {
	if f.owned == nil {
		return map[string]bool{}, nil
	}
	return f.owned, nil
}

type fakeCatalog struct {
	pages map[string][]tmdb.Movie
	errs  map[string]error
	calls int
}

func pageKey(genreIDs []int64, page int) string {
	return fmt.Sprintf("%v#%d", genreIDs, page)
}

func (f *fakeCatalog) DiscoverByGenres(_ context.Context, q tmdb.DiscoverQuery) ([]tmdb.Movie, error) {
	f.calls++
	key := pageKey(q.GenreIDs, q.Page)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.pages[key], nil
}

func seedMovie(title string, year string, rating int, genreIDs ...int64) store.Movie {
	m := store.Movie{Title: title, Watched: true, PersonalRating: &rating}
	if year != "" {
		m.Year = &year
	}
	for _, id := range genreIDs {
		gid := id
		m.Genres = append(m.Genres, store.Genre{TMDBID: &gid, Name: fmt.Sprintf("g%d", id)})
	}
	return m
}

func newTestEngine(s store.Store, c Catalog) *Engine {
	return NewEngine(s, c, zerolog.Nop())
}

func testParams() Params {
	return Params{MinRating: 7, YearWindow: 10, MinVoteAverage: 7.0, MinVoteCount: 200, Pages: 1}
}

func TestRecommendNoSeeds(t *testing.T) {
	engine := newTestEngine(&fakeStore{}, &fakeCatalog{})

	res, err := engine.Recommend(context.Background(), "", testParams())
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.NotEmpty(t, res.Reason)
}

func TestRecommendNoSeedsSkipsFetching(t *testing.T) {
	catalog := &fakeCatalog{}
	engine := newTestEngine(&fakeStore{}, catalog)

	_, err := engine.Recommend(context.Background(), "", testParams())
	require.NoError(t, err)
	assert.Zero(t, catalog.calls)
}

func TestRecommendSeedsWithoutGenres(t *testing.T) {
	st := &fakeStore{seeds: []store.Movie{seedMovie("Untagged", "2000", 9)}}
	engine := newTestEngine(st, &fakeCatalog{})

	res, err := engine.Recommend(context.Background(), "", testParams())
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.NotEmpty(t, res.Reason)
}

func TestRecommendSingleSeedRanking(t *testing.T) {
	st := &fakeStore{seeds: []store.Movie{seedMovie("The Matrix", "1999", 9, 878)}}
	catalog := &fakeCatalog{pages: map[string][]tmdb.Movie{
		pageKey([]int64{878}, 1): {
			{TMDBID: 101, Title: "Near Sci-Fi", Year: "2001", VoteAverage: 8.5, VoteCount: 2000, GenreIDs: []int64{878, 53}},
			{TMDBID: 102, Title: "Old Sci-Fi", Year: "1975", VoteAverage: 7.0, VoteCount: 500, GenreIDs: []int64{878}},
			{TMDBID: 103, Title: "Drama", Year: "1999", VoteAverage: 8.0, VoteCount: 1500, GenreIDs: []int64{18}},
			{TMDBID: 104, Title: "Obscure", Year: "", VoteAverage: 5.0, VoteCount: 0, GenreIDs: nil},
			{TMDBID: 105, Title: "Weak Action", Year: "", VoteAverage: 5.5, VoteCount: 0, GenreIDs: []int64{28}},
		},
	}}
	engine := newTestEngine(st, catalog)

	res, err := engine.Recommend(context.Background(), "", testParams())
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)

	ids := make([]int64, len(res.Results))
	for i, r := range res.Results {
		ids[i] = r.TMDBID
	}
	assert.NotContains(t, ids, int64(104), "zero-aggregate candidate must be dropped")
	assert.NotContains(t, ids, int64(105), "zero-aggregate candidate must be dropped")
	assert.Equal(t, int64(101), ids[0], "overlapping near-year candidate ranks first")
	assert.Contains(t, ids, int64(103))
	assert.Equal(t, []string{"The Matrix"}, res.BasedOn)
}

func TestRecommendDuplicateAcrossSeeds(t *testing.T) {
	st := &fakeStore{seeds: []store.Movie{
		seedMovie("A", "1999", 9, 878),
		seedMovie("B", "2010", 8, 18),
	}}
	shared := tmdb.Movie{TMDBID: 201, Title: "Shared", Year: "2005", VoteAverage: 8.0, VoteCount: 100, GenreIDs: []int64{878, 18}}
	catalog := &fakeCatalog{pages: map[string][]tmdb.Movie{
		pageKey([]int64{878}, 1): {shared},
		pageKey([]int64{18}, 1):  {shared},
	}}
	engine := newTestEngine(st, catalog)

	res, err := engine.Recommend(context.Background(), "", testParams())
	require.NoError(t, err)
	require.Len(t, res.Results, 1, "duplicate fetches must collapse into one pool entry")

	// Seed A: weight 2/3, overlap 1, time 1-6/10, rating 0.5, popularity 1
	// (only candidate, so its vote count is the pool max).
	contribA := (2.0 / 3.0) * (0.55*1 + 0.20*0.4 + 0.20*0.5 + 0.05*1)
	// Seed B: weight 1/3, overlap 1, time 1-5/10, rating 0.5, popularity 1.
	contribB := (1.0 / 3.0) * (0.55*1 + 0.20*0.5 + 0.20*0.5 + 0.05*1)
	assert.InDelta(t, contribA+contribB, res.Results[0].Score, 1e-9)
}

func TestRecommendFetchFailuresAreNonFatal(t *testing.T) {
	st := &fakeStore{seeds: []store.Movie{
		seedMovie("A", "1999", 9, 878),
		seedMovie("B", "2010", 8, 18),
	}}
	catalog := &fakeCatalog{
		pages: map[string][]tmdb.Movie{
			pageKey([]int64{878}, 1): {{TMDBID: 301, Title: "X", Year: "2000", VoteAverage: 8.0, VoteCount: 300, GenreIDs: []int64{878}}},
			pageKey([]int64{18}, 1):  {{TMDBID: 302, Title: "Y", Year: "2011", VoteAverage: 7.5, VoteCount: 200, GenreIDs: []int64{18}}},
		},
		errs: map[string]error{
			pageKey([]int64{878}, 2): errors.New("upstream down"),
			pageKey([]int64{18}, 2):  errors.New("upstream down"),
		},
	}
	engine := newTestEngine(st, catalog)

	p := testParams()
	p.Pages = 2
	res, err := engine.Recommend(context.Background(), "", p)
	require.NoError(t, err, "page failures must not abort the request")
	require.Len(t, res.Results, 2)
}

func TestRecommendExcludesOwnedCandidates(t *testing.T) {
	st := &fakeStore{
		seeds: []store.Movie{seedMovie("A", "1999", 9, 878)},
		owned: map[string]bool{"401": true},
	}
	catalog := &fakeCatalog{pages: map[string][]tmdb.Movie{
		pageKey([]int64{878}, 1): {
			{TMDBID: 401, Title: "Already Owned", Year: "2000", VoteAverage: 9.0, VoteCount: 5000, GenreIDs: []int64{878}},
			{TMDBID: 402, Title: "New", Year: "2000", VoteAverage: 8.0, VoteCount: 400, GenreIDs: []int64{878}},
		},
	}}
	engine := newTestEngine(st, catalog)

	res, err := engine.Recommend(context.Background(), "", testParams())
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, int64(402), res.Results[0].TMDBID)
}

func TestRecommendIsDeterministic(t *testing.T) {
	st := &fakeStore{seeds: []store.Movie{seedMovie("A", "1999", 9, 878)}}
	catalog := &fakeCatalog{pages: map[string][]tmdb.Movie{
		pageKey([]int64{878}, 1): {
			{TMDBID: 502, Title: "Twin B", Year: "1999", VoteAverage: 8.0, VoteCount: 100, GenreIDs: []int64{878, 18}},
			{TMDBID: 501, Title: "Twin A", Year: "1999", VoteAverage: 8.0, VoteCount: 100, GenreIDs: []int64{878, 53}},
			{TMDBID: 503, Title: "Other", Year: "2005", VoteAverage: 7.5, VoteCount: 50, GenreIDs: []int64{878}},
		},
	}}
	engine := newTestEngine(st, catalog)

	first, err := engine.Recommend(context.Background(), "", testParams())
	require.NoError(t, err)
	second, err := engine.Recommend(context.Background(), "", testParams())
	require.NoError(t, err)
	assert.Equal(t, first.Results, second.Results)

	// Equal scores break ties by ascending TMDB id.
	require.GreaterOrEqual(t, len(first.Results), 2)
	assert.Equal(t, int64(501), first.Results[0].TMDBID)
	assert.Equal(t, int64(502), first.Results[1].TMDBID)
}

func TestDiversifySuppressesConsecutiveSignatures(t *testing.T) {
	rec := func(id int64, genres ...int64) Recommendation {
		return Recommendation{Movie: tmdb.Movie{TMDBID: id, GenreIDs: genres}}
	}

	out := diversify([]Recommendation{
		rec(1, 878, 18),
		rec(2, 18, 878), // same sorted top-2 signature as 1
		rec(3, 28, 12),
		rec(4, 878, 18), // same signature as 1 but not consecutive anymore
	})

	ids := make([]int64, len(out))
	for i, r := range out {
		ids[i] = r.TMDBID
	}
	assert.Equal(t, []int64{1, 3, 4}, ids)
}

func TestDiversifyCapsResults(t *testing.T) {
	var scored []Recommendation
	for i := int64(1); i <= 30; i++ {
		scored = append(scored, Recommendation{Movie: tmdb.Movie{TMDBID: i, GenreIDs: []int64{i}}})
	}
	assert.Len(t, diversify(scored), maxResults)
}

func TestSeedWeight(t *testing.T) {
	rating := func(n int) *int { return &n }

	assert.Equal(t, 0.0, seedWeight(rating(7), 7), "threshold rating contributes zero")
	assert.Equal(t, 1.0, seedWeight(rating(10), 7))
	assert.InDelta(t, 2.0/3.0, seedWeight(rating(9), 7), 1e-9)
	assert.Equal(t, 1.0, seedWeight(rating(10), 10), "denominator floors at 1")
	assert.Equal(t, 0.0, seedWeight(nil, 7))
}

func TestRatingScore(t *testing.T) {
	assert.Equal(t, 0.0, ratingScore(5.9), "ratings below 6.0 score zero")
	assert.Equal(t, 0.0, ratingScore(6.0))
	assert.InDelta(t, 0.5, ratingScore(8.0), 1e-9)
	assert.Equal(t, 1.0, ratingScore(10.0))
}

func TestTimeProximity(t *testing.T) {
	year := func(s string) *string { return &s }

	assert.Equal(t, 1.0, timeProximity(year("2000"), "2000", 10))
	assert.InDelta(t, 0.5, timeProximity(year("2000"), "2005", 10), 1e-9)
	assert.Equal(t, 0.0, timeProximity(year("2000"), "2020", 10), "outside the window")
	assert.Equal(t, 0.0, timeProximity(nil, "2000", 10))
	assert.Equal(t, 0.0, timeProximity(year("2000"), "", 10))
	assert.Equal(t, 0.0, timeProximity(year("n/a!"), "2000", 10))
}

func TestGenreSignature(t *testing.T) {
	assert.Equal(t, "", genreSignature(nil))
	assert.Equal(t, "18", genreSignature([]int64{18}))
	assert.Equal(t, "18-878", genreSignature([]int64{878, 18}))
	assert.Equal(t, "12-18", genreSignature([]int64{878, 18, 12}), "only the top-2 sorted ids matter")
	assert.Equal(t, genreSignature([]int64{18, 878}), genreSignature([]int64{878, 18}))
}
