// Package tmdb is a thin client for The Movie Database v3 API, covering the
// handful of endpoints the watchlist needs: title search, movie details,
// the genre list, browse feeds, and filtered discovery.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SortRatingDesc orders discover results by average rating, highest first.
const SortRatingDesc = "vote_average.desc"

// Movie is a catalog item as returned by TMDB list endpoints.
type Movie struct {
	TMDBID      int64   `json:"tmdb_id"`
	Title       string  `json:"title"`
	Year        string  `json:"year"` // 4-digit string, empty when unknown
	PosterPath  string  `json:"poster_path"`
	Overview    string  `json:"overview"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
	Popularity  float64 `json:"popularity"`
	GenreIDs    []int64 `json:"genre_ids"`
}

// Genre is an entry from the TMDB genre list.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MovieDetails is the full record for a single movie.
type MovieDetails struct {
	TMDBID      int64
	Title       string
	Year        string
	Genres      []Genre
	PosterPath  string
	Overview    string
	VoteAverage float64
	VoteCount   int
}

// DiscoverQuery filters the /discover/movie endpoint.
type DiscoverQuery struct {
	GenreIDs       []int64
	YearFrom       int // 0 = no lower bound
	YearTo         int // 0 = no upper bound
	MinVoteAverage float64
	MinVoteCount   int
	Page           int
	SortBy         string
}

// Options configures a Client.
type Options struct {
	APIKey       string
	Token        string // v4 bearer token, used instead of APIKey when set
	BaseURL      string
	ImageBaseURL string
	PosterSize   string
	Timeout      time.Duration
}

// Client talks to the TMDB API.
type Client struct {
	apiKey     string
	token      string
	baseURL    string
	imageBase  string
	posterSize string
	client     *http.Client
}

// NewClient creates a TMDB client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.themoviedb.org/3"
	}
	if opts.ImageBaseURL == "" {
		opts.ImageBaseURL = "https://image.tmdb.org/t/p"
	}
	if opts.PosterSize == "" {
		opts.PosterSize = "w500"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Client{
		apiKey:     opts.APIKey,
		token:      opts.Token,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		imageBase:  strings.TrimRight(opts.ImageBaseURL, "/"),
		posterSize: opts.PosterSize,
		client:     &http.Client{Timeout: opts.Timeout},
	}
}

// PosterURL maps a TMDB poster path to a full image URL. Empty path yields
// an empty URL; no network involved.
func (c *Client) PosterURL(path string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", c.imageBase, c.posterSize, path)
}

// SearchMovies searches movies by title.
func (c *Client) SearchMovies(ctx context.Context, query string, page int) ([]Movie, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(max(page, 1)))
	params.Set("include_adult", "false")

	var body listResponse
	if err := c.get(ctx, "/search/movie", params, &body); err != nil {
		return nil, err
	}
	return body.movies(), nil
}

// Trending returns the daily trending movies.
func (c *Client) Trending(ctx context.Context, page int) ([]Movie, error) {
	return c.feed(ctx, "/trending/movie/day", page)
}

// TopRated returns the top rated movies.
func (c *Client) TopRated(ctx context.Context, page int) ([]Movie, error) {
	return c.feed(ctx, "/movie/top_rated", page)
}

// Popular returns the most popular movies.
func (c *Client) Popular(ctx context.Context, page int) ([]Movie, error) {
	return c.feed(ctx, "/movie/popular", page)
}

// NowPlaying returns movies currently in theaters.
func (c *Client) NowPlaying(ctx context.Context, page int) ([]Movie, error) {
	return c.feed(ctx, "/movie/now_playing", page)
}

func (c *Client) feed(ctx context.Context, path string, page int) ([]Movie, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(max(page, 1)))

	var body listResponse
	if err := c.get(ctx, path, params, &body); err != nil {
		return nil, err
	}
	return body.movies(), nil
}

// MovieDetails fetches the full record for one movie.
func (c *Client) MovieDetails(ctx context.Context, tmdbID int64) (*MovieDetails, error) {
	var body struct {
		ID           int64   `json:"id"`
		Title        string  `json:"title"`
		Name         string  `json:"name"`
		ReleaseDate  string  `json:"release_date"`
		Genres       []Genre `json:"genres"`
		PosterPath   string  `json:"poster_path"`
		BackdropPath string  `json:"backdrop_path"`
		Overview     string  `json:"overview"`
		VoteAverage  float64 `json:"vote_average"`
		VoteCount    int     `json:"vote_count"`
	}
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", tmdbID), url.Values{}, &body); err != nil {
		return nil, err
	}

	title := body.Title
	if title == "" {
		title = body.Name
	}
	poster := body.PosterPath
	if poster == "" {
		poster = body.BackdropPath
	}
	return &MovieDetails{
		TMDBID:      body.ID,
		Title:       title,
		Year:        yearOf(body.ReleaseDate),
		Genres:      body.Genres,
		PosterPath:  poster,
		Overview:    body.Overview,
		VoteAverage: body.VoteAverage,
		VoteCount:   body.VoteCount,
	}, nil
}

// GenreList fetches all TMDB movie genres.
func (c *Client) GenreList(ctx context.Context) ([]Genre, error) {
	var body struct {
		Genres []Genre `json:"genres"`
	}
	if err := c.get(ctx, "/genre/movie/list", url.Values{}, &body); err != nil {
		return nil, err
	}
	return body.Genres, nil
}

// DiscoverByGenres queries /discover/movie with the given filters. An empty
// genre set returns an empty list without hitting the network.
func (c *Client) DiscoverByGenres(ctx context.Context, q DiscoverQuery) ([]Movie, error) {
	if len(q.GenreIDs) == 0 {
		return nil, nil
	}

	genreStrs := make([]string, len(q.GenreIDs))
	for i, id := range q.GenreIDs {
		genreStrs[i] = strconv.FormatInt(id, 10)
	}

	params := url.Values{}
	params.Set("with_genres", strings.Join(genreStrs, ","))
	params.Set("include_adult", "false")
	params.Set("page", strconv.Itoa(max(q.Page, 1)))
	if q.SortBy != "" {
		params.Set("sort_by", q.SortBy)
	} else {
		params.Set("sort_by", SortRatingDesc)
	}
	if q.YearFrom > 0 {
		params.Set("primary_release_date.gte", fmt.Sprintf("%d-01-01", q.YearFrom))
	}
	if q.YearTo > 0 {
		params.Set("primary_release_date.lte", fmt.Sprintf("%d-12-31", q.YearTo))
	}
	if q.MinVoteAverage > 0 {
		params.Set("vote_average.gte", strconv.FormatFloat(q.MinVoteAverage, 'f', -1, 64))
	}
	if q.MinVoteCount > 0 {
		params.Set("vote_count.gte", strconv.Itoa(q.MinVoteCount))
	}

	var body listResponse
	if err := c.get(ctx, "/discover/movie", params, &body); err != nil {
		return nil, err
	}
	return body.movies(), nil
}

type listResponse struct {
	Results []struct {
		ID           int64   `json:"id"`
		Title        string  `json:"title"`
		ReleaseDate  string  `json:"release_date"`
		PosterPath   string  `json:"poster_path"`
		BackdropPath string  `json:"backdrop_path"`
		Overview     string  `json:"overview"`
		VoteAverage  float64 `json:"vote_average"`
		VoteCount    int     `json:"vote_count"`
		Popularity   float64 `json:"popularity"`
		GenreIDs     []int64 `json:"genre_ids"`
	} `json:"results"`
}

func (r listResponse) movies() []Movie {
	items := make([]Movie, 0, len(r.Results))
	for _, m := range r.Results {
		poster := m.PosterPath
		if poster == "" {
			poster = m.BackdropPath
		}
		items = append(items, Movie{
			TMDBID:      m.ID,
			Title:       m.Title,
			Year:        yearOf(m.ReleaseDate),
			PosterPath:  poster,
			Overview:    m.Overview,
			VoteAverage: m.VoteAverage,
			VoteCount:   m.VoteCount,
			Popularity:  m.Popularity,
			GenreIDs:    m.GenreIDs,
		})
	}
	return items
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.token == "" && c.apiKey == "" {
		return fmt.Errorf("tmdb: no api key or token configured")
	}
	if c.token == "" {
		params.Set("api_key", c.apiKey)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create tmdb request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch tmdb %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb %s: %w", path, err)
	}
	return nil
}

// yearOf extracts the 4-digit year from a TMDB release date.
func yearOf(releaseDate string) string {
	if len(releaseDate) < 4 {
		return ""
	}
	return releaseDate[:4]
}
