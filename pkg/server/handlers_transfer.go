package server

import (
	"errors"
	"net/http"

	"github.com/gvega2212/MovieWatchlist/internal/store"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := ownerFrom(r)

	genres, err := s.store.ListGenres(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("export genres")
		writeError(w, err)
		return
	}
	movies, err := s.store.ListAllMovies(ctx, owner)
	if err != nil {
		s.log.Error().Err(err).Msg("export movies")
		writeError(w, err)
		return
	}

	movieRows := make([]map[string]any, len(movies))
	for i := range movies {
		row := toMap(s.movieToResponse(&movies[i]))
		row["genre_names"] = movies[i].GenreNames()
		movieRows[i] = row
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"meta":   map[string]int{"version": 1},
		"genres": genres,
		"movies": movieRows,
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := readJSON(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rawMovies, ok := data["movies"].([]any)
	if !ok {
		writeError(w, badRequest("Body must contain 'movies' as an array"))
		return
	}

	ctx := r.Context()
	owner := ownerFrom(r)
	created, skipped := 0, 0
	importErrors := make([]map[string]any, 0)

	for idx, raw := range rawMovies {
		row, ok := raw.(map[string]any)
		if !ok {
			importErrors = append(importErrors, map[string]any{"index": idx, "message": "movie entry must be an object"})
			continue
		}

		title, err := validateTitle(row["title"])
		if err != nil {
			importErrors = append(importErrors, importError(idx, err))
			continue
		}
		year, err := validateYear(row["year"])
		if err != nil {
			importErrors = append(importErrors, importError(idx, err))
			continue
		}
		rating, err := parseRating(row["personal_rating"])
		if err != nil {
			importErrors = append(importErrors, importError(idx, err))
			continue
		}
		watched := false
		if v, present := row["watched"]; present {
			if watched, err = parseBool(v); err != nil {
				importErrors = append(importErrors, importError(idx, err))
				continue
			}
		}
		source := optionalString(row["source"])
		externalID := optionalString(row["external_id"])

		if source != nil && externalID != nil {
			if _, err := s.store.FindByExternalID(ctx, owner, *source, *externalID); err == nil {
				skipped++
				continue
			}
		}

		var genreIDs []int64
		if names, ok := row["genre_names"].([]any); ok {
			genres := make([]store.Genre, 0, len(names))
			for _, n := range names {
				if name := optionalString(n); name != nil {
					genres = append(genres, store.Genre{Name: *name})
				}
			}
			stored, err := s.store.EnsureGenres(ctx, genres)
			if err != nil {
				importErrors = append(importErrors, map[string]any{"index": idx, "message": "Unexpected error"})
				continue
			}
			for _, g := range stored {
				genreIDs = append(genreIDs, g.ID)
			}
		}

		m := &store.Movie{
			Title:          title,
			Year:           year,
			PersonalRating: rating,
			Watched:        watched,
			Source:         source,
			ExternalID:     externalID,
			Owner:          owner,
		}
		if overview := optionalString(row["overview"]); overview != nil {
			m.Overview = overview
		}

		if err := s.store.CreateMovie(ctx, m); err != nil {
			importErrors = append(importErrors, map[string]any{"index": idx, "message": "Unexpected error"})
			continue
		}
		if len(genreIDs) > 0 {
			if err := s.store.SetMovieGenres(ctx, m.ID, genreIDs); err != nil {
				s.log.Warn().Err(err).Int64("id", m.ID).Msg("import genre attach failed")
			}
		}
		created++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary": map[string]int{
			"received": len(rawMovies),
			"created":  created,
			"skipped":  skipped,
			"errors":   len(importErrors),
		},
		"errors": importErrors,
	})
}

func importError(idx int, err error) map[string]any {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return map[string]any{"index": idx, "message": apiErr.Message}
	}
	return map[string]any{"index": idx, "message": "Unexpected error"}
}
