package server

import (
	"errors"
	"net/http"

	"github.com/gvega2212/MovieWatchlist/pkg/recommend"
)

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	defaults := recommend.Params{
		MinRating:      s.cfg.Recommend.MinRating,
		YearWindow:     s.cfg.Recommend.YearWindow,
		MinVoteAverage: s.cfg.Recommend.MinVoteAverage,
		MinVoteCount:   s.cfg.Recommend.MinVoteCount,
		Pages:          s.cfg.Recommend.Pages,
	}

	params, err := recommend.ParseParams(r.URL.Query(), defaults)
	if errors.Is(err, recommend.ErrInvalidParam) {
		writeError(w, badRequest("%s", err.Error()))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.engine.Recommend(r.Context(), ownerFrom(r), params)
	if err != nil {
		s.log.Error().Err(err).Msg("recommendations")
		writeError(w, err)
		return
	}

	// Presentation step: attach display URLs to the final list.
	for i := range result.Results {
		result.Results[i].PosterURL = s.catalog.PosterURL(result.Results[i].PosterPath)
	}

	writeJSON(w, http.StatusOK, result)
}
