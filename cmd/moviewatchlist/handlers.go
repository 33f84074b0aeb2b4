package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/gvega2212/MovieWatchlist/internal/config"
	"github.com/gvega2212/MovieWatchlist/internal/scheduler"
	"github.com/gvega2212/MovieWatchlist/internal/store"
	"github.com/gvega2212/MovieWatchlist/pkg/recommend"
	"github.com/gvega2212/MovieWatchlist/pkg/server"
	"github.com/gvega2212/MovieWatchlist/pkg/tmdb"
)

func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Log.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}

func newCatalog(cfg *config.Config) *tmdb.Client {
	return tmdb.NewClient(tmdb.Options{
		APIKey:       cfg.TMDB.APIKey,
		Token:        cfg.TMDB.Token,
		BaseURL:      cfg.TMDB.BaseURL,
		ImageBaseURL: cfg.TMDB.ImageBaseURL,
		PosterSize:   cfg.TMDB.PosterSize,
		Timeout:      cfg.TMDB.ParseTimeout(),
	})
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	log := newLogger(cfg)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	catalog := newCatalog(cfg)
	engine := recommend.NewEngine(db, catalog, log)
	srv := server.New(db, catalog, engine, cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Maintenance.Enabled {
		sched := scheduler.New(db, catalog,
			cfg.Maintenance.ParsePosterCheckInterval(),
			cfg.Maintenance.ParseGenreRefreshInterval(),
			log)
		go func() {
			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("scheduler exited")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

func runRecommend(owner string, minRating int, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	params := recommend.Params{
		MinRating:      cfg.Recommend.MinRating,
		YearWindow:     cfg.Recommend.YearWindow,
		MinVoteAverage: cfg.Recommend.MinVoteAverage,
		MinVoteCount:   cfg.Recommend.MinVoteCount,
		Pages:          cfg.Recommend.Pages,
	}
	if minRating >= 0 {
		params.MinRating = minRating
	}
	if err := params.Validate(); err != nil {
		return err
	}

	engine := recommend.NewEngine(db, newCatalog(cfg), log)
	result, err := engine.Recommend(context.Background(), owner, params)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Reason != "" {
		fmt.Println(result.Reason)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tTITLE\tYEAR\tRATING\tVOTES")
	for _, rec := range result.Results {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\t%.1f\t%d\n",
			rec.Score, rec.Title, rec.Year, rec.VoteAverage, rec.VoteCount)
	}
	return tw.Flush()
}

func runSeed() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	rows := []store.Movie{
		{Title: "The Matrix", Year: strPtr("1999"), PersonalRating: intPtr(9), Watched: true},
		{Title: "Inception", Year: strPtr("2010"), PersonalRating: intPtr(8), Watched: true},
		{Title: "Dune: Part One", Year: strPtr("2021"), Watched: false},
	}
	for i := range rows {
		if err := db.CreateMovie(ctx, &rows[i]); err != nil {
			return err
		}
	}

	fmt.Printf("Seeded: %d movies\n", len(rows))
	return nil
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
