package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gvega2212/MovieWatchlist/internal/store"
)

// movieResponse is the wire form of a catalog entry.
type movieResponse struct {
	ID             int64    `json:"id"`
	Title          string   `json:"title"`
	Year           *string  `json:"year"`
	ExternalID     *string  `json:"external_id"`
	Source         *string  `json:"source"`
	PersonalRating *int     `json:"personal_rating"`
	Watched        bool     `json:"watched"`
	PosterURL      *string  `json:"poster_url"`
	Overview       *string  `json:"overview"`
	Genres         []string `json:"genres,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func (s *Server) movieToResponse(m *store.Movie) movieResponse {
	resp := movieResponse{
		ID:             m.ID,
		Title:          m.Title,
		Year:           m.Year,
		ExternalID:     m.ExternalID,
		Source:         m.Source,
		PersonalRating: m.PersonalRating,
		Watched:        m.Watched,
		Overview:       m.Overview,
		Genres:         m.GenreNames(),
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      m.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if m.Source != nil && *m.Source == "tmdb" && m.PosterPath != nil && *m.PosterPath != "" {
		u := s.catalog.PosterURL(*m.PosterPath)
		resp.PosterURL = &u
	}
	return resp
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	order, err := parseOrder(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, pageSize, err := parsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	opts := store.ListOpts{
		Owner:    ownerFrom(r),
		Query:    r.URL.Query().Get("q"),
		Order:    order,
		Page:     page,
		PageSize: pageSize,
	}
	switch r.URL.Query().Get("watched") {
	case "true":
		t := true
		opts.Watched = &t
	case "false":
		f := false
		opts.Watched = &f
	}

	movies, total, err := s.store.ListMovies(r.Context(), opts)
	if err != nil {
		s.log.Error().Err(err).Msg("list movies")
		writeError(w, err)
		return
	}

	items := make([]movieResponse, len(movies))
	for i := range movies {
		items[i] = s.movieToResponse(&movies[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page":      page,
		"page_size": pageSize,
		"total":     total,
		"items":     items,
	})
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	data, err := readJSON(r)
	if err != nil {
		writeError(w, err)
		return
	}

	title, err := validateTitle(data["title"])
	if err != nil {
		writeError(w, err)
		return
	}
	year, err := validateYear(data["year"])
	if err != nil {
		writeError(w, err)
		return
	}
	rating, err := parseRating(data["personal_rating"])
	if err != nil {
		writeError(w, err)
		return
	}
	watched := false
	if v, present := data["watched"]; present {
		watched, err = parseBool(v)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	owner := ownerFrom(r)

	// Adding the same title+year twice is a no-op returning the existing row.
	if existing, err := s.store.FindByTitleYear(r.Context(), owner, title, year); err == nil {
		resp := map[string]any{"created": false}
		for k, v := range toMap(s.movieToResponse(existing)) {
			resp[k] = v
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	m := &store.Movie{
		Title:          title,
		Year:           year,
		PersonalRating: rating,
		Watched:        watched,
		Owner:          owner,
	}
	if err := s.store.CreateMovie(r.Context(), m); err != nil {
		s.log.Error().Err(err).Msg("create movie")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.movieToResponse(m))
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	m, err := s.movieFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.movieToResponse(m))
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	data, err := readJSON(r)
	if err != nil {
		writeError(w, err)
		return
	}
	m, err := s.movieFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if v, present := data["title"]; present {
		title, err := validateTitle(v)
		if err != nil {
			writeError(w, err)
			return
		}
		m.Title = title
	}
	if v, present := data["year"]; present {
		year, err := validateYear(v)
		if err != nil {
			writeError(w, err)
			return
		}
		m.Year = year
	}
	if v, present := data["personal_rating"]; present {
		rating, err := parseRating(v)
		if err != nil {
			writeError(w, err)
			return
		}
		m.PersonalRating = rating
	}
	if v, present := data["watched"]; present {
		watched, err := parseBool(v)
		if err != nil {
			writeError(w, err)
			return
		}
		m.Watched = watched
	}
	if v, present := data["external_id"]; present {
		m.ExternalID = optionalString(v)
	}
	if v, present := data["source"]; present {
		m.Source = optionalString(v)
	}

	if err := s.store.UpdateMovie(r.Context(), m); err != nil {
		s.log.Error().Err(err).Int64("id", m.ID).Msg("update movie")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.movieToResponse(m))
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	id, err := movieIDFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	err = s.store.DeleteMovie(r.Context(), ownerFrom(r), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, notFound("movie"))
		return
	}
	if err != nil {
		s.log.Error().Err(err).Int64("id", id).Msg("delete movie")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

func (s *Server) handleToggleWatched(w http.ResponseWriter, r *http.Request) {
	m, err := s.movieFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	m.Watched = !m.Watched
	if err := s.store.UpdateMovie(r.Context(), m); err != nil {
		s.log.Error().Err(err).Int64("id", m.ID).Msg("toggle watched")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": m.ID, "watched": m.Watched})
}

func (s *Server) handleRateMovie(w http.ResponseWriter, r *http.Request) {
	data, err := readJSON(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, present := data["personal_rating"]; !present {
		writeError(w, badRequest("personal_rating required"))
		return
	}
	rating, err := parseRating(data["personal_rating"])
	if err != nil {
		writeError(w, err)
		return
	}

	m, err := s.movieFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}

	m.PersonalRating = rating
	if err := s.store.UpdateMovie(r.Context(), m); err != nil {
		s.log.Error().Err(err).Int64("id", m.ID).Msg("rate movie")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":              m.ID,
		"title":           m.Title,
		"personal_rating": m.PersonalRating,
	})
}

func movieIDFromPath(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "movieID"), 10, 64)
	if err != nil {
		return 0, badRequest("movie id must be an integer")
	}
	return id, nil
}

func (s *Server) movieFromPath(r *http.Request) (*store.Movie, error) {
	id, err := movieIDFromPath(r)
	if err != nil {
		return nil, err
	}
	m, err := s.store.GetMovie(r.Context(), ownerFrom(r), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("movie")
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
