package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Movie is a user-owned catalog entry.
type Movie struct {
	ID             int64     `db:"id" json:"id"`
	Title          string    `db:"title" json:"title"`
	Year           *string   `db:"year" json:"year"`
	ExternalID     *string   `db:"external_id" json:"external_id"`
	Source         *string   `db:"source" json:"source"`
	PersonalRating *int      `db:"personal_rating" json:"personal_rating"`
	Watched        bool      `db:"watched" json:"watched"`
	PosterPath     *string   `db:"poster_path" json:"-"`
	Overview       *string   `db:"overview" json:"overview"`
	Owner          string    `db:"owner" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
	Genres         []Genre   `db:"-" json:"genres,omitempty"`
}

// GenreNames returns the movie's genre names in stored order.
func (m *Movie) GenreNames() []string {
	names := make([]string, len(m.Genres))
	for i, g := range m.Genres {
		names[i] = g.Name
	}
	return names
}

// TMDBGenreIDs returns the TMDB ids of the movie's genres, skipping genres
// that only exist locally.
func (m *Movie) TMDBGenreIDs() []int64 {
	var ids []int64
	for _, g := range m.Genres {
		if g.TMDBID != nil {
			ids = append(ids, *g.TMDBID)
		}
	}
	return ids
}

// Genre is a TMDB-backed or locally imported genre tag.
type Genre struct {
	ID     int64  `db:"id" json:"id"`
	TMDBID *int64 `db:"tmdb_id" json:"tmdb_id"`
	Name   string `db:"name" json:"name"`
}

// ListOpts controls movie listing.
type ListOpts struct {
	Owner    string
	Query    string
	Watched  *bool
	Order    string // one of: -created_at, title, rating, -rating
	Page     int
	PageSize int
}

// Store is the persistence interface.
type Store interface {
	CreateMovie(ctx context.Context, m *Movie) error
	GetMovie(ctx context.Context, owner string, id int64) (*Movie, error)
	UpdateMovie(ctx context.Context, m *Movie) error
	DeleteMovie(ctx context.Context, owner string, id int64) error
	ListMovies(ctx context.Context, opts ListOpts) ([]Movie, int, error)
	ListAllMovies(ctx context.Context, owner string) ([]Movie, error)
	FindByTitleYear(ctx context.Context, owner, title string, year *string) (*Movie, error)
	FindByExternalID(ctx context.Context, owner, source, externalID string) (*Movie, error)
	ExternalIDs(ctx context.Context, owner, source string) (map[string]bool, error)
	ListSeeds(ctx context.Context, owner string, minRating int) ([]Movie, error)

	EnsureGenres(ctx context.Context, genres []Genre) ([]Genre, error)
	SetMovieGenres(ctx context.Context, movieID int64, genreIDs []int64) error
	ListGenres(ctx context.Context) ([]Genre, error)

	ListMissingPosters(ctx context.Context) ([]Movie, error)
	SetPoster(ctx context.Context, movieID int64, posterPath, overview string) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateMovie(ctx context.Context, m *Movie) error {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO movies (title, year, external_id, source, personal_rating, watched, poster_path, overview, owner, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.Title, m.Year, m.ExternalID, m.Source, m.PersonalRating, m.Watched,
		m.PosterPath, m.Overview, m.Owner, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert movie %q: %w", m.Title, err)
	}
	m.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetMovie(ctx context.Context, owner string, id int64) (*Movie, error) {
	var m Movie
	err := s.db.GetContext(ctx, &m, "SELECT * FROM movies WHERE id = ? AND owner = ?", id, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get movie %d: %w", id, err)
	}
	if err := s.attachGenres(ctx, []*Movie{&m}); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) UpdateMovie(ctx context.Context, m *Movie) error {
	m.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE movies SET title = ?, year = ?, external_id = ?, source = ?, personal_rating = ?,
			watched = ?, poster_path = ?, overview = ?, updated_at = ?
		WHERE id = ? AND owner = ?
	`, m.Title, m.Year, m.ExternalID, m.Source, m.PersonalRating,
		m.Watched, m.PosterPath, m.Overview, m.UpdatedAt, m.ID, m.Owner)
	if err != nil {
		return fmt.Errorf("update movie %d: %w", m.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteMovie(ctx context.Context, owner string, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM movies WHERE id = ? AND owner = ?", id, owner)
	if err != nil {
		return fmt.Errorf("delete movie %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, _ = s.db.ExecContext(ctx, "DELETE FROM movie_genres WHERE movie_id = ?", id)
	return nil
}

func (s *SQLiteStore) ListMovies(ctx context.Context, opts ListOpts) ([]Movie, int, error) {
	where := "WHERE owner = ?"
	args := []any{opts.Owner}

	if opts.Query != "" {
		where += " AND title LIKE ? COLLATE NOCASE"
		args = append(args, "%"+opts.Query+"%")
	}
	if opts.Watched != nil {
		where += " AND watched = ?"
		args = append(args, *opts.Watched)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM movies "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count movies: %w", err)
	}

	order := "created_at DESC"
	switch opts.Order {
	case "title":
		order = "title COLLATE NOCASE ASC"
	case "rating":
		order = "personal_rating ASC NULLS LAST"
	case "-rating":
		order = "personal_rating DESC NULLS LAST"
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size <= 0 {
		size = 10
	}

	query := fmt.Sprintf("SELECT * FROM movies %s ORDER BY %s LIMIT ? OFFSET ?", where, order)
	args = append(args, size, (page-1)*size)

	var movies []Movie
	if err := s.db.SelectContext(ctx, &movies, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list movies: %w", err)
	}
	if err := s.attachGenresSlice(ctx, movies); err != nil {
		return nil, 0, err
	}
	return movies, total, nil
}

func (s *SQLiteStore) ListAllMovies(ctx context.Context, owner string) ([]Movie, error) {
	var movies []Movie
	err := s.db.SelectContext(ctx, &movies,
		"SELECT * FROM movies WHERE owner = ? ORDER BY created_at ASC", owner)
	if err != nil {
		return nil, fmt.Errorf("list all movies: %w", err)
	}
	if err := s.attachGenresSlice(ctx, movies); err != nil {
		return nil, err
	}
	return movies, nil
}

func (s *SQLiteStore) FindByTitleYear(ctx context.Context, owner, title string, year *string) (*Movie, error) {
	query := "SELECT * FROM movies WHERE owner = ? AND title = ? COLLATE NOCASE"
	args := []any{owner, title}
	if year != nil {
		query += " AND year = ?"
		args = append(args, *year)
	} else {
		query += " AND year IS NULL"
	}

	var m Movie
	err := s.db.GetContext(ctx, &m, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find movie by title %q: %w", title, err)
	}
	if err := s.attachGenres(ctx, []*Movie{&m}); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) FindByExternalID(ctx context.Context, owner, source, externalID string) (*Movie, error) {
	var m Movie
	err := s.db.GetContext(ctx, &m,
		"SELECT * FROM movies WHERE owner = ? AND source = ? AND external_id = ?",
		owner, source, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find movie by external id %s/%s: %w", source, externalID, err)
	}
	return &m, nil
}

func (s *SQLiteStore) ExternalIDs(ctx context.Context, owner, source string) (map[string]bool, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT external_id FROM movies WHERE owner = ? AND source = ? AND external_id IS NOT NULL",
		owner, source)
	if err != nil {
		return nil, fmt.Errorf("list external ids: %w", err)
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (s *SQLiteStore) ListSeeds(ctx context.Context, owner string, minRating int) ([]Movie, error) {
	var movies []Movie
	err := s.db.SelectContext(ctx, &movies, `
		SELECT * FROM movies
		WHERE owner = ? AND watched = 1 AND personal_rating IS NOT NULL AND personal_rating >= ?
		ORDER BY personal_rating DESC, id ASC
	`, owner, minRating)
	if err != nil {
		return nil, fmt.Errorf("list seeds: %w", err)
	}
	if err := s.attachGenresSlice(ctx, movies); err != nil {
		return nil, err
	}
	return movies, nil
}

func (s *SQLiteStore) EnsureGenres(ctx context.Context, genres []Genre) ([]Genre, error) {
	out := make([]Genre, 0, len(genres))
	for _, g := range genres {
		var existing Genre
		var err error
		if g.TMDBID != nil {
			err = s.db.GetContext(ctx, &existing, "SELECT * FROM genres WHERE tmdb_id = ?", *g.TMDBID)
		} else {
			err = s.db.GetContext(ctx, &existing, "SELECT * FROM genres WHERE name = ?", g.Name)
		}
		if err == nil {
			out = append(out, existing)
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lookup genre %q: %w", g.Name, err)
		}

		res, err := s.db.ExecContext(ctx,
			"INSERT INTO genres (tmdb_id, name) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET tmdb_id = COALESCE(genres.tmdb_id, excluded.tmdb_id)",
			g.TMDBID, g.Name)
		if err != nil {
			return nil, fmt.Errorf("insert genre %q: %w", g.Name, err)
		}
		g.ID, _ = res.LastInsertId()
		if g.ID == 0 {
			// Upsert hit the conflict branch; re-read for the id.
			if err := s.db.GetContext(ctx, &g, "SELECT * FROM genres WHERE name = ?", g.Name); err != nil {
				return nil, fmt.Errorf("reread genre %q: %w", g.Name, err)
			}
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *SQLiteStore) SetMovieGenres(ctx context.Context, movieID int64, genreIDs []int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM movie_genres WHERE movie_id = ?", movieID); err != nil {
		return fmt.Errorf("clear movie genres %d: %w", movieID, err)
	}
	for _, gid := range genreIDs {
		if _, err := s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO movie_genres (movie_id, genre_id) VALUES (?, ?)", movieID, gid); err != nil {
			return fmt.Errorf("attach genre %d to movie %d: %w", gid, movieID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListGenres(ctx context.Context) ([]Genre, error) {
	var genres []Genre
	if err := s.db.SelectContext(ctx, &genres, "SELECT * FROM genres ORDER BY name ASC"); err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return genres, nil
}

func (s *SQLiteStore) ListMissingPosters(ctx context.Context) ([]Movie, error) {
	var movies []Movie
	err := s.db.SelectContext(ctx, &movies, `
		SELECT * FROM movies
		WHERE source = 'tmdb' AND external_id IS NOT NULL
		  AND (poster_path IS NULL OR poster_path = '')
	`)
	if err != nil {
		return nil, fmt.Errorf("list missing posters: %w", err)
	}
	return movies, nil
}

func (s *SQLiteStore) SetPoster(ctx context.Context, movieID int64, posterPath, overview string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE movies SET poster_path = ?,
			overview = CASE WHEN overview IS NULL OR overview = '' THEN ? ELSE overview END,
			updated_at = ?
		WHERE id = ?
	`, posterPath, overview, time.Now().UTC(), movieID)
	if err != nil {
		return fmt.Errorf("set poster %d: %w", movieID, err)
	}
	return nil
}

// attachGenresSlice loads genres for a slice of movies in one query.
func (s *SQLiteStore) attachGenresSlice(ctx context.Context, movies []Movie) error {
	ptrs := make([]*Movie, len(movies))
	for i := range movies {
		ptrs[i] = &movies[i]
	}
	return s.attachGenres(ctx, ptrs)
}

func (s *SQLiteStore) attachGenres(ctx context.Context, movies []*Movie) error {
	if len(movies) == 0 {
		return nil
	}

	ids := make([]any, len(movies))
	byID := make(map[int64]*Movie, len(movies))
	for i, m := range movies {
		ids[i] = m.ID
		byID[m.ID] = m
	}

	query := fmt.Sprintf(`
		SELECT mg.movie_id AS movie_id, g.id AS id, g.tmdb_id AS tmdb_id, g.name AS name
		FROM movie_genres mg
		JOIN genres g ON g.id = mg.genre_id
		WHERE mg.movie_id IN (?%s)
		ORDER BY g.name ASC
	`, strings.Repeat(",?", len(ids)-1))

	rows, err := s.db.QueryxContext(ctx, query, ids...)
	if err != nil {
		return fmt.Errorf("load genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row struct {
			MovieID int64  `db:"movie_id"`
			ID      int64  `db:"id"`
			TMDBID  *int64 `db:"tmdb_id"`
			Name    string `db:"name"`
		}
		if err := rows.StructScan(&row); err != nil {
			return fmt.Errorf("scan genre row: %w", err)
		}
		if m, ok := byID[row.MovieID]; ok {
			m.Genres = append(m.Genres, Genre{ID: row.ID, TMDBID: row.TMDBID, Name: row.Name})
		}
	}
	return rows.Err()
}
