package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/listings/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Geometry is kept in
// plain lng and lat columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS listings (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	price          REAL NOT NULL DEFAULT 0,
	location       TEXT NOT NULL DEFAULT '',
	lng            REAL,
	lat            REAL,
	image_url      TEXT NOT NULL DEFAULT '',
	image_filename TEXT NOT NULL DEFAULT '',
	owner_id       TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_listings_owner_id ON listings(owner_id);

CREATE TABLE IF NOT EXISTS reviews (
	id         TEXT PRIMARY KEY,
	listing_id TEXT NOT NULL,
	author_id  TEXT,
	rating     INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
	comment    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reviews_listing_id ON reviews(listing_id);
`

// Migrate creates the schema if it does not already exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteListingColumns = `id, title, description, price, location, lng, lat, image_url, image_filename, COALESCE(owner_id, ''), created_at, updated_at`

// ListListings returns every listing in creation order.
func (s *SQLiteStore) ListListings(ctx context.Context) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteListingColumns+` FROM listings ORDER BY rowid`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list listings")
	}
	defer rows.Close() //nolint:errcheck

	listings := []model.Listing{}
	for rows.Next() {
		l, err := scanSQLiteListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "sqlite: iterate listings")
}

// GetListing loads one listing and the related records named by pop.
func (s *SQLiteStore) GetListing(ctx context.Context, id string, pop Populate) (*model.Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteListingColumns+` FROM listings WHERE id = ?`, id)
	l, err := scanSQLiteListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get listing %s", id)
	}
	if err != nil {
		return nil, err
	}
	if err := populateListing(ctx, l, pop, s.GetUser, s.listReviews); err != nil {
		return nil, err
	}
	return l, nil
}

// CreateListing validates and inserts l, assigning its ID and timestamps.
func (s *SQLiteStore) CreateListing(ctx context.Context, l *model.Listing) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	lng, lat := pointColumns(l.Geometry)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO listings (id, title, description, price, location, lng, lat, image_url, image_filename, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Title, l.Description, l.Price, l.Location, lng, lat, l.Image.URL, l.Image.Filename, nullIfEmpty(l.OwnerID), now, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert listing")
	}
	l.CreatedAt, l.UpdatedAt = now, now
	return nil
}

// UpdateListing validates and overwrites the mutable fields of l in place.
func (s *SQLiteStore) UpdateListing(ctx context.Context, l *model.Listing) error {
	if err := l.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	lng, lat := pointColumns(l.Geometry)

	res, err := s.db.ExecContext(ctx,
		`UPDATE listings SET title = ?, description = ?, price = ?, location = ?, lng = ?, lat = ?,
		image_url = ?, image_filename = ?, updated_at = ? WHERE id = ?`,
		l.Title, l.Description, l.Price, l.Location, lng, lat, l.Image.URL, l.Image.Filename, now, l.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update listing %s", l.ID)
	}
	if err := checkRowsAffected(res, "listing", l.ID); err != nil {
		return err
	}
	l.UpdatedAt = now
	return nil
}

// DeleteListing removes the listing and its reviews. Deleting an unknown id
// is not an error.
func (s *SQLiteStore) DeleteListing(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE listing_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete reviews of %s", id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete listing %s", id)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

// CreateReview validates and inserts r. The listing must exist.
func (s *SQLiteStore) CreateReview(ctx context.Context, r *model.Review) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (id, listing_id, author_id, rating, comment, created_at)
		SELECT ?, id, ?, ?, ?, ? FROM listings WHERE id = ?`,
		r.ID, nullIfEmpty(r.AuthorID), r.Rating, r.Comment, now, r.ListingID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert review")
	}
	if err := checkRowsAffected(res, "listing", r.ListingID); err != nil {
		return err
	}
	r.CreatedAt = now
	return nil
}

// GetReview loads a review without its author.
func (s *SQLiteStore) GetReview(ctx context.Context, id string) (*model.Review, error) {
	var r model.Review
	err := s.db.QueryRowContext(ctx,
		`SELECT id, listing_id, COALESCE(author_id, ''), rating, comment, created_at FROM reviews WHERE id = ?`, id,
	).Scan(&r.ID, &r.ListingID, &r.AuthorID, &r.Rating, &r.Comment, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get review %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get review %s", id)
	}
	return &r, nil
}

// DeleteReview removes a review belonging to the listing.
func (s *SQLiteStore) DeleteReview(ctx context.Context, listingID, reviewID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ? AND listing_id = ?`, reviewID, listingID)
	return eris.Wrapf(err, "sqlite: delete review %s", reviewID)
}

const (
	sqliteReviewsQuery = `SELECT id, listing_id, COALESCE(author_id, ''), rating, comment, created_at
		FROM reviews WHERE listing_id = ? ORDER BY rowid`
	sqliteReviewsWithAuthorsQuery = `SELECT r.id, r.listing_id, COALESCE(r.author_id, ''), r.rating, r.comment, r.created_at,
		u.username, u.email
		FROM reviews r LEFT JOIN users u ON u.id = r.author_id
		WHERE r.listing_id = ? ORDER BY r.rowid`
)

func (s *SQLiteStore) listReviews(ctx context.Context, listingID string, withAuthors bool) ([]model.Review, error) {
	query := sqliteReviewsQuery
	if withAuthors {
		query = sqliteReviewsWithAuthorsQuery
	}
	rows, err := s.db.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list reviews of %s", listingID)
	}
	defer rows.Close() //nolint:errcheck

	reviews := []model.Review{}
	for rows.Next() {
		var r model.Review
		var username, email sql.NullString
		dest := []any{&r.ID, &r.ListingID, &r.AuthorID, &r.Rating, &r.Comment, &r.CreatedAt}
		if withAuthors {
			dest = append(dest, &username, &email)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review")
		}
		if username.Valid {
			r.Author = &model.User{ID: r.AuthorID, Username: username.String, Email: email.String}
		}
		reviews = append(reviews, r)
	}
	return reviews, eris.Wrap(rows.Err(), "sqlite: iterate reviews")
}

// CreateUser inserts u. A taken username yields ErrDuplicate.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, now,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return eris.Wrapf(ErrDuplicate, "sqlite: username %q", u.Username)
	}
	if err != nil {
		return eris.Wrap(err, "sqlite: insert user")
	}
	u.CreatedAt = now
	return nil
}

// GetUser loads a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, `SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

// GetUserByUsername loads a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUser(ctx, `SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?`, username)
}

func (s *SQLiteStore) getUser(ctx context.Context, query, arg string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get user %s", arg)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get user %s", arg)
	}
	return &u, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}

func pointColumns(p *model.Point) (lng, lat *float64) {
	if p == nil {
		return nil, nil
	}
	x, y := p.Lng(), p.Lat()
	return &x, &y
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteListing(row scannable) (*model.Listing, error) {
	var l model.Listing
	var lng, lat sql.NullFloat64
	err := row.Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.Location, &lng, &lat,
		&l.Image.URL, &l.Image.Filename, &l.OwnerID, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan listing")
	}
	if lng.Valid && lat.Valid {
		l.Geometry = model.NewPoint(lng.Float64, lat.Float64)
	}
	return &l, nil
}
