// Package scheduler runs background catalog maintenance: backfilling
// missing poster art and keeping the local genre table in sync with TMDB.
package scheduler

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/gvega2212/MovieWatchlist/internal/store"
	"github.com/gvega2212/MovieWatchlist/pkg/tmdb"
)

// Catalog is the slice of the TMDB client the maintenance loop needs.
type Catalog interface {
	MovieDetails(ctx context.Context, tmdbID int64) (*tmdb.MovieDetails, error)
	GenreList(ctx context.Context) ([]tmdb.Genre, error)
}

// Scheduler runs periodic maintenance tasks.
type Scheduler struct {
	store     store.Store
	catalog   Catalog
	posterInt time.Duration
	genreInt  time.Duration
	log       zerolog.Logger
}

// New creates a new scheduler.
func New(s store.Store, catalog Catalog, posterInt, genreInt time.Duration, log zerolog.Logger) *Scheduler {
	if posterInt == 0 {
		posterInt = 6 * time.Hour
	}
	if genreInt == 0 {
		genreInt = 24 * time.Hour
	}
	return &Scheduler{
		store:     s,
		catalog:   catalog,
		posterInt: posterInt,
		genreInt:  genreInt,
		log:       log,
	}
}

// Run starts the maintenance loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	posterTicker := time.NewTicker(s.posterInt)
	genreTicker := time.NewTicker(s.genreInt)
	defer posterTicker.Stop()
	defer genreTicker.Stop()

	// Run immediately on start.
	s.syncGenres(ctx)
	s.backfillPosters(ctx)

	s.log.Info().
		Dur("poster_interval", s.posterInt).
		Dur("genre_interval", s.genreInt).
		Msg("scheduler running")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-posterTicker.C:
			s.backfillPosters(ctx)
		case <-genreTicker.C:
			s.syncGenres(ctx)
		}
	}
}

// backfillPosters refreshes poster art for TMDB-sourced movies missing it.
func (s *Scheduler) backfillPosters(ctx context.Context) {
	missing, err := s.store.ListMissingPosters(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list missing posters")
		return
	}
	if len(missing) == 0 {
		return
	}

	fixed := 0
	for _, m := range missing {
		tmdbID, err := strconv.ParseInt(*m.ExternalID, 10, 64)
		if err != nil {
			continue
		}
		info, err := s.catalog.MovieDetails(ctx, tmdbID)
		if err != nil {
			s.log.Warn().Err(err).Int64("tmdb_id", tmdbID).Msg("poster fetch failed")
			continue
		}
		if info.PosterPath == "" {
			continue
		}
		if err := s.store.SetPoster(ctx, m.ID, info.PosterPath, info.Overview); err != nil {
			s.log.Warn().Err(err).Int64("id", m.ID).Msg("poster update failed")
			continue
		}
		fixed++
	}
	s.log.Info().Int("checked", len(missing)).Int("fixed", fixed).Msg("poster backfill done")
}

// syncGenres upserts the TMDB genre list into the local genre table.
func (s *Scheduler) syncGenres(ctx context.Context) {
	genres, err := s.catalog.GenreList(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("genre list fetch failed")
		return
	}

	rows := make([]store.Genre, len(genres))
	for i, g := range genres {
		id := g.ID
		rows[i] = store.Genre{TMDBID: &id, Name: g.Name}
	}
	if _, err := s.store.EnsureGenres(ctx, rows); err != nil {
		s.log.Error().Err(err).Msg("genre sync failed")
		return
	}
	s.log.Info().Int("genres", len(rows)).Msg("genre sync done")
}
