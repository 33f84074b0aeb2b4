package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gvega2212/MovieWatchlist/internal/store"
	"github.com/gvega2212/MovieWatchlist/pkg/tmdb"
)

// searchResult is a TMDB item with its display URL attached.
type searchResult struct {
	tmdb.Movie
	PosterURL string `json:"poster_url,omitempty"`
}

func (s *Server) handleSearchTMDB(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		raw []tmdb.Movie
		err error
	)
	if q != "" {
		raw, err = s.catalog.SearchMovies(ctx, q, 1)
	} else {
		// No query: serve one of the browse feeds instead.
		switch strings.ToLower(r.URL.Query().Get("default")) {
		case "top_rated":
			raw, err = s.catalog.TopRated(ctx, 1)
		case "popular":
			raw, err = s.catalog.Popular(ctx, 1)
		case "now_playing":
			raw, err = s.catalog.NowPlaying(ctx, 1)
		default:
			raw, err = s.catalog.Trending(ctx, 1)
		}
	}
	if err != nil {
		s.log.Error().Err(err).Str("q", q).Msg("tmdb search")
		writeError(w, badGateway("TMDB request failed"))
		return
	}

	results := make([]searchResult, len(raw))
	for i, m := range raw {
		results[i] = searchResult{Movie: m, PosterURL: s.catalog.PosterURL(m.PosterPath)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// addFromTMDB fetches one movie's details and stores it with its genres.
func (s *Server) addFromTMDB(r *http.Request, tmdbID int64, rating *int, watched bool) (*store.Movie, error) {
	ctx := r.Context()

	info, err := s.catalog.MovieDetails(ctx, tmdbID)
	if err != nil {
		return nil, badGateway("TMDB fetch failed")
	}

	genres := make([]store.Genre, len(info.Genres))
	for i, g := range info.Genres {
		id := g.ID
		genres[i] = store.Genre{TMDBID: &id, Name: g.Name}
	}
	stored, err := s.store.EnsureGenres(ctx, genres)
	if err != nil {
		return nil, err
	}

	externalID := strconv.FormatInt(tmdbID, 10)
	source := "tmdb"
	m := &store.Movie{
		Title:          info.Title,
		ExternalID:     &externalID,
		Source:         &source,
		PersonalRating: rating,
		Watched:        watched,
		Owner:          ownerFrom(r),
	}
	if info.Year != "" {
		m.Year = &info.Year
	}
	if info.PosterPath != "" {
		m.PosterPath = &info.PosterPath
	}
	if info.Overview != "" {
		m.Overview = &info.Overview
	}
	if m.Title == "" {
		m.Title = externalID
	}

	if err := s.store.CreateMovie(ctx, m); err != nil {
		return nil, err
	}

	genreIDs := make([]int64, len(stored))
	for i, g := range stored {
		genreIDs[i] = g.ID
	}
	if err := s.store.SetMovieGenres(ctx, m.ID, genreIDs); err != nil {
		return nil, err
	}
	m.Genres = stored
	return m, nil
}

func (s *Server) handleAddFromTMDB(w http.ResponseWriter, r *http.Request) {
	data, err := readJSON(r)
	if err != nil {
		writeError(w, err)
		return
	}

	tmdbID, ok := intFrom(data["tmdb_id"])
	if !ok || tmdbID <= 0 {
		writeError(w, badRequest("tmdb_id is required"))
		return
	}
	rating, err := parseRating(data["personal_rating"])
	if err != nil {
		writeError(w, err)
		return
	}
	watched := false
	if v, present := data["watched"]; present {
		if watched, err = parseBool(v); err != nil {
			writeError(w, err)
			return
		}
	}

	m, err := s.addFromTMDB(r, tmdbID, rating, watched)
	if err != nil {
		s.log.Error().Err(err).Int64("tmdb_id", tmdbID).Msg("add from tmdb")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.movieToResponse(m))
}

func (s *Server) handleBulkFromTMDB(w http.ResponseWriter, r *http.Request) {
	data, err := readJSON(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rawIDs, ok := data["tmdb_ids"].([]any)
	if !ok || len(rawIDs) == 0 {
		writeError(w, badRequest("tmdb_ids must be a non-empty array of integers"))
		return
	}
	defaultRating, err := parseRating(data["personal_rating"])
	if err != nil {
		writeError(w, err)
		return
	}
	defaultWatched := false
	if v, present := data["watched"]; present {
		if defaultWatched, err = parseBool(v); err != nil {
			writeError(w, err)
			return
		}
	}

	owner := ownerFrom(r)
	results := make([]map[string]any, 0, len(rawIDs))
	created := 0

	for _, raw := range rawIDs {
		tmdbID, ok := intFrom(raw)
		if !ok {
			results = append(results, map[string]any{"tmdb_id": raw, "ok": false, "error": "tmdb_id must be an integer"})
			continue
		}

		if existing, err := s.store.FindByExternalID(r.Context(), owner, "tmdb", strconv.FormatInt(tmdbID, 10)); err == nil {
			results = append(results, map[string]any{"tmdb_id": tmdbID, "ok": true, "created": false, "id": existing.ID})
			continue
		}

		m, err := s.addFromTMDB(r, tmdbID, defaultRating, defaultWatched)
		if err != nil {
			s.log.Warn().Err(err).Int64("tmdb_id", tmdbID).Msg("bulk add failed")
			results = append(results, map[string]any{"tmdb_id": tmdbID, "ok": false, "error": "TMDB fetch or insert failed"})
			continue
		}

		created++
		results = append(results, map[string]any{"tmdb_id": tmdbID, "ok": true, "created": true, "id": m.ID})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary": map[string]int{
			"requested":         len(rawIDs),
			"created":           created,
			"skipped_or_failed": len(rawIDs) - created,
		},
		"results": results,
	})
}

func (s *Server) handleFixMissingPosters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	missing, err := s.store.ListMissingPosters(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list missing posters")
		writeError(w, err)
		return
	}

	fixed, failed := 0, 0
	for _, m := range missing {
		tmdbID, err := strconv.ParseInt(*m.ExternalID, 10, 64)
		if err != nil {
			failed++
			continue
		}
		info, err := s.catalog.MovieDetails(ctx, tmdbID)
		if err != nil {
			failed++
			continue
		}
		if err := s.store.SetPoster(ctx, m.ID, info.PosterPath, info.Overview); err != nil {
			failed++
			continue
		}
		fixed++
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"fixed":   fixed,
		"failed":  failed,
		"checked": len(missing),
	})
}

// intFrom extracts an integral value from decoded JSON, accepting numbers
// and numeric strings.
func intFrom(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	}
	return 0, false
}
