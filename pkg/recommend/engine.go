// Package recommend computes personalized movie recommendations from the
// user's watched, highly rated catalog entries. Each such entry becomes a
// seed; candidates fetched from TMDB for every seed are pooled, scored
// against all seeds at once, then ranked with a genre-diversity constraint.
package recommend

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gvega2212/MovieWatchlist/internal/store"
	"github.com/gvega2212/MovieWatchlist/pkg/tmdb"
)

// Sub-score weights. Genre match dominates; recency and quality matter;
// raw popularity matters least.
const (
	genreWeight      = 0.55
	timeWeight       = 0.20
	ratingWeight     = 0.20
	popularityWeight = 0.05

	maxResults = 20
)

// Catalog is the slice of the TMDB client the engine needs.
type Catalog interface {
	DiscoverByGenres(ctx context.Context, q tmdb.DiscoverQuery) ([]tmdb.Movie, error)
}

// Recommendation is a scored candidate.
type Recommendation struct {
	tmdb.Movie
	Score     float64 `json:"score"`
	PosterURL string  `json:"poster_url,omitempty"`
}

// Result is the outcome of one recommendation request. An empty Results
// with a non-empty Reason is a normal terminal state, not an error.
type Result struct {
	Params  Params           `json:"params"`
	BasedOn []string         `json:"based_on,omitempty"`
	Results []Recommendation `json:"results"`
	Reason  string           `json:"reason,omitempty"`
}

// Engine runs the recommendation pipeline. It is stateless and
// request-scoped: nothing is cached or persisted between calls.
type Engine struct {
	store   store.Store
	catalog Catalog
	log     zerolog.Logger
}

// NewEngine creates a recommendation engine.
func NewEngine(s store.Store, catalog Catalog, log zerolog.Logger) *Engine {
	return &Engine{store: s, catalog: catalog, log: log}
}

// Recommend computes recommendations for one owner scope. Upstream fetch
// failures degrade to partial results; only local storage errors are
// returned as errors.
func (e *Engine) Recommend(ctx context.Context, owner string, p Params) (*Result, error) {
	seeds, err := e.store.ListSeeds(ctx, owner, p.MinRating)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return &Result{
			Params:  p,
			Results: []Recommendation{},
			Reason:  "no watched movies rated at or above min_rating yet",
		}, nil
	}

	owned, err := e.store.ExternalIDs(ctx, owner, "tmdb")
	if err != nil {
		return nil, err
	}

	pool := e.buildPool(ctx, seeds, owned, p)
	if len(pool) == 0 {
		return &Result{
			Params:  p,
			BasedOn: seedTitles(seeds),
			Results: []Recommendation{},
			Reason:  "no new candidates found for your seed movies",
		}, nil
	}

	scored := scorePool(seeds, pool, p)
	if len(scored) == 0 {
		return &Result{
			Params:  p,
			BasedOn: seedTitles(seeds),
			Results: []Recommendation{},
			Reason:  "no candidates scored above zero; try lowering min_rating or min_vote_average",
		}, nil
	}

	return &Result{
		Params:  p,
		BasedOn: seedTitles(seeds),
		Results: diversify(scored),
	}, nil
}

// buildPool fetches candidate pages for every seed and merges them into a
// single pool keyed by TMDB id. The first occurrence of a candidate wins;
// movies already in the owner's catalog are excluded. A failed page fetch
// contributes nothing and never aborts the request.
func (e *Engine) buildPool(ctx context.Context, seeds []store.Movie, owned map[string]bool, p Params) map[int64]tmdb.Movie {
	pool := make(map[int64]tmdb.Movie)

	for _, seed := range seeds {
		genreIDs := seed.TMDBGenreIDs()
		if len(genreIDs) == 0 {
			continue
		}

		q := tmdb.DiscoverQuery{
			GenreIDs:       genreIDs,
			MinVoteAverage: p.MinVoteAverage,
			MinVoteCount:   p.MinVoteCount,
			SortBy:         tmdb.SortRatingDesc,
		}
		if year, ok := parseYear(seed.Year); ok {
			q.YearFrom = year - p.YearWindow
			q.YearTo = year + p.YearWindow
		}

		for page := 1; page <= p.Pages; page++ {
			q.Page = page
			candidates, err := e.catalog.DiscoverByGenres(ctx, q)
			if err != nil {
				e.log.Warn().Err(err).
					Str("seed", seed.Title).
					Int("page", page).
					Msg("discover fetch failed, skipping page")
				continue
			}

			for _, c := range candidates {
				if owned[strconv.FormatInt(c.TMDBID, 10)] {
					continue
				}
				if _, seen := pool[c.TMDBID]; seen {
					continue
				}
				pool[c.TMDBID] = c
			}
		}
	}

	return pool
}

// scorePool aggregates, for every pooled candidate, the weighted sub-score
// sum across all seeds. Candidates with a non-positive aggregate are
// dropped.
func scorePool(seeds []store.Movie, pool map[int64]tmdb.Movie, p Params) []Recommendation {
	maxVotes := 0
	for _, c := range pool {
		if c.VoteCount > maxVotes {
			maxVotes = c.VoteCount
		}
	}
	if maxVotes == 0 {
		maxVotes = 1
	}
	logMaxVotes := math.Log(1 + float64(maxVotes))

	scored := make([]Recommendation, 0, len(pool))
	for _, c := range pool {
		total := 0.0
		for _, seed := range seeds {
			w := seedWeight(seed.PersonalRating, p.MinRating)
			if w == 0 {
				continue
			}
			sub := genreWeight*genreOverlap(seed.TMDBGenreIDs(), c.GenreIDs) +
				timeWeight*timeProximity(seed.Year, c.Year, p.YearWindow) +
				ratingWeight*ratingScore(c.VoteAverage) +
				popularityWeight*popularityScore(c.VoteCount, logMaxVotes)
			total += w * sub
		}
		if total > 0 {
			scored = append(scored, Recommendation{Movie: c, Score: total})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].TMDBID < scored[j].TMDBID
	})
	return scored
}

// diversify walks the ranked list and suppresses consecutive candidates
// sharing an identical top-2 genre signature, stopping at maxResults.
func diversify(scored []Recommendation) []Recommendation {
	results := make([]Recommendation, 0, maxResults)
	prevSig := ""

	for _, r := range scored {
		if len(results) == maxResults {
			break
		}
		sig := genreSignature(r.GenreIDs)
		if len(results) > 0 && sig == prevSig {
			continue
		}
		results = append(results, r)
		prevSig = sig
	}
	return results
}

// seedWeight maps a seed's personal rating onto [0,1]: rated exactly at the
// threshold contributes 0, a perfect 10 contributes 1.
func seedWeight(rating *int, minRating int) float64 {
	if rating == nil {
		return 0
	}
	denom := float64(10 - minRating)
	if denom < 1 {
		denom = 1
	}
	return clamp(float64(*rating-minRating)/denom, 0, 1)
}

// genreOverlap is the fraction of the seed's genres the candidate shares.
func genreOverlap(seedGenres, candGenres []int64) float64 {
	if len(seedGenres) == 0 {
		return 0
	}
	set := make(map[int64]bool, len(candGenres))
	for _, g := range candGenres {
		set[g] = true
	}
	shared := 0
	for _, g := range seedGenres {
		if set[g] {
			shared++
		}
	}
	return float64(shared) / float64(len(seedGenres))
}

// timeProximity decays linearly with the gap between release years, hitting
// 0 at the window edge. Unknown years score 0.
func timeProximity(seedYear *string, candYear string, window int) float64 {
	sy, ok := parseYear(seedYear)
	if !ok {
		return 0
	}
	cy, err := strconv.Atoi(candYear)
	if err != nil || len(candYear) != 4 {
		return 0
	}
	gap := math.Abs(float64(sy - cy))
	return math.Max(0, 1-gap/float64(window))
}

// ratingScore maps TMDB vote averages in [6.0, 10.0] linearly onto [0,1].
func ratingScore(voteAverage float64) float64 {
	return clamp((voteAverage-6.0)/4.0, 0, 1)
}

// popularityScore normalizes the candidate's vote count against the pool's
// maximum on a log scale, giving diminishing returns to raw popularity.
func popularityScore(voteCount int, logMaxVotes float64) float64 {
	if logMaxVotes == 0 {
		return 0
	}
	return clamp(math.Log(1+float64(voteCount))/logMaxVotes, 0, 1)
}

// genreSignature is the candidate's top-2 sorted genre ids, used only for
// the diversity constraint.
func genreSignature(genreIDs []int64) string {
	ids := make([]int64, len(genreIDs))
	copy(ids, genreIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > 2 {
		ids = ids[:2]
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, "-")
}

func seedTitles(seeds []store.Movie) []string {
	titles := make([]string, len(seeds))
	for i, s := range seeds {
		titles[i] = s.Title
	}
	return titles
}

func parseYear(year *string) (int, bool) {
	if year == nil || len(*year) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(*year)
	if err != nil {
		return 0, false
	}
	return y, true
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
