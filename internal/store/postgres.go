package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/listings/internal/db"
	"github.com/sells-group/listings/internal/geo"
	"github.com/sells-group/listings/internal/model"
)

// PostgresStore implements Store using pgxpool and PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS listings (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	price          DOUBLE PRECISION NOT NULL DEFAULT 0,
	location       TEXT NOT NULL DEFAULT '',
	geometry       geometry(Point, 4326),
	image_url      TEXT NOT NULL DEFAULT '',
	image_filename TEXT NOT NULL DEFAULT '',
	owner_id       TEXT REFERENCES users(id) ON DELETE SET NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT listings_location_geocoded CHECK (location = '' OR geometry IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_listings_geometry ON listings USING GIST (geometry);
CREATE INDEX IF NOT EXISTS idx_listings_owner_id ON listings(owner_id);

CREATE TABLE IF NOT EXISTS reviews (
	id         TEXT PRIMARY KEY,
	seq        BIGINT GENERATED ALWAYS AS IDENTITY,
	listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	author_id  TEXT REFERENCES users(id) ON DELETE SET NULL,
	rating     INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
	comment    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reviews_listing_id ON reviews(listing_id, seq);
`

// Migrate creates the schema if it does not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const listingColumns = `id, title, description, price, location, ST_AsEWKB(geometry), image_url, image_filename, COALESCE(owner_id, ''), created_at, updated_at`

// ListListings returns every listing in creation order.
func (s *PostgresStore) ListListings(ctx context.Context) ([]model.Listing, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list listings")
	}
	defer rows.Close()

	listings := []model.Listing{}
	for rows.Next() {
		l, err := scanPgListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "postgres: iterate listings")
}

// GetListing loads one listing and the related records named by pop.
func (s *PostgresStore) GetListing(ctx context.Context, id string, pop Populate) (*model.Listing, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	l, err := scanPgListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get listing %s", id)
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
func (s *PostgresStore) CreateListing(ctx context.Context, l *model.Listing) error {
	if err := l.Validate(); err != nil {
		return err
	}
	geom, err := geo.EncodePoint(l.Geometry)
	if err != nil {
		return eris.Wrap(err, "postgres: encode geometry")
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO listings (id, title, description, price, location, geometry, image_url, image_filename, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, ST_GeomFromEWKB($6), $7, $8, $9, $10, $11)`,
		l.ID, l.Title, l.Description, l.Price, l.Location, geom, l.Image.URL, l.Image.Filename, nullIfEmpty(l.OwnerID), now, now,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert listing")
	}
	l.CreatedAt, l.UpdatedAt = now, now
	return nil
}

// UpdateListing validates and overwrites the mutable fields of l in place.
func (s *PostgresStore) UpdateListing(ctx context.Context, l *model.Listing) error {
	if err := l.Validate(); err != nil {
		return err
	}
	geom, err := geo.EncodePoint(l.Geometry)
	if err != nil {
		return eris.Wrap(err, "postgres: encode geometry")
	}
	now := time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET title = $1, description = $2, price = $3, location = $4, geometry = ST_GeomFromEWKB($5),
		image_url = $6, image_filename = $7, updated_at = $8 WHERE id = $9`,
		l.Title, l.Description, l.Price, l.Location, geom, l.Image.URL, l.Image.Filename, now, l.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update listing %s", l.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update listing %s", l.ID)
	}
	l.UpdatedAt = now
	return nil
}

// DeleteListing removes the listing and its reviews. Deleting an unknown id
// is not an error.
func (s *PostgresStore) DeleteListing(ctx context.Context, id string) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM reviews WHERE listing_id = $1`, id); err != nil {
			return eris.Wrapf(err, "postgres: delete reviews of %s", id)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id); err != nil {
			return eris.Wrapf(err, "postgres: delete listing %s", id)
		}
		return nil
	})
}

// CreateReview validates and inserts r.
func (s *PostgresStore) CreateReview(ctx context.Context, r *model.Review) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO reviews (id, listing_id, author_id, rating, comment, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.ListingID, nullIfEmpty(r.AuthorID), r.Rating, r.Comment, now,
	)
	if db.IsForeignKeyViolation(err) {
		return eris.Wrapf(ErrNotFound, "postgres: insert review for listing %s", r.ListingID)
	}
	if err != nil {
		return eris.Wrap(err, "postgres: insert review")
	}
	r.CreatedAt = now
	return nil
}

// GetReview loads a review without its author.
func (s *PostgresStore) GetReview(ctx context.Context, id string) (*model.Review, error) {
	var r model.Review
	err := s.pool.QueryRow(ctx,
		`SELECT id, listing_id, COALESCE(author_id, ''), rating, comment, created_at FROM reviews WHERE id = $1`, id,
	).Scan(&r.ID, &r.ListingID, &r.AuthorID, &r.Rating, &r.Comment, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get review %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get review %s", id)
	}
	return &r, nil
}

// DeleteReview removes a review belonging to the listing.
func (s *PostgresStore) DeleteReview(ctx context.Context, listingID, reviewID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1 AND listing_id = $2`, reviewID, listingID)
	return eris.Wrapf(err, "postgres: delete review %s", reviewID)
}

const (
	pgReviewsQuery = `SELECT id, listing_id, COALESCE(author_id, ''), rating, comment, created_at
		FROM reviews WHERE listing_id = $1 ORDER BY seq`
	pgReviewsWithAuthorsQuery = `SELECT r.id, r.listing_id, COALESCE(r.author_id, ''), r.rating, r.comment, r.created_at,
		u.username, u.email, u.created_at
		FROM reviews r LEFT JOIN users u ON u.id = r.author_id
		WHERE r.listing_id = $1 ORDER BY r.seq`
)

func (s *PostgresStore) listReviews(ctx context.Context, listingID string, withAuthors bool) ([]model.Review, error) {
	query := pgReviewsQuery
	if withAuthors {
		query = pgReviewsWithAuthorsQuery
	}
	rows, err := s.pool.Query(ctx, query, listingID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list reviews of %s", listingID)
	}
	defer rows.Close()

	reviews := []model.Review{}
	for rows.Next() {
		var r model.Review
		dest := []any{&r.ID, &r.ListingID, &r.AuthorID, &r.Rating, &r.Comment, &r.CreatedAt}
		var username, email *string
		var joined *time.Time
		if withAuthors {
			dest = append(dest, &username, &email, &joined)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan review")
		}
		if username != nil {
			r.Author = &model.User{ID: r.AuthorID, Username: *username}
			if email != nil {
				r.Author.Email = *email
			}
			if joined != nil {
				r.Author.CreatedAt = *joined
			}
		}
		reviews = append(reviews, r)
	}
	return reviews, eris.Wrap(rows.Err(), "postgres: iterate reviews")
}

// CreateUser inserts u. A taken username yields ErrDuplicate.
func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, u.Email, u.PasswordHash, now,
	)
	if db.IsUniqueViolation(err) {
		return eris.Wrapf(ErrDuplicate, "postgres: username %q", u.Username)
	}
	if err != nil {
		return eris.Wrap(err, "postgres: insert user")
	}
	u.CreatedAt = now
	return nil
}

// GetUser loads a user by id.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, `SELECT id, username, email, password_hash, created_at FROM users WHERE id = $1`, id)
}

// GetUserByUsername loads a user by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUser(ctx, `SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1`, username)
}

func (s *PostgresStore) getUser(ctx context.Context, query, arg string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get user %s", arg)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get user %s", arg)
	}
	return &u, nil
}

func scanPgListing(row pgx.Row) (*model.Listing, error) {
	var l model.Listing
	var geom []byte
	err := row.Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.Location, &geom,
		&l.Image.URL, &l.Image.Filename, &l.OwnerID, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan listing")
	}
	if l.Geometry, err = geo.DecodePoint(geom); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode geometry of %s", l.ID)
	}
	return &l, nil
}
