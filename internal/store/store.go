// Package store persists listings, reviews and users.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/listings/internal/model"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrDuplicate is returned when a unique field such as a username is taken.
	ErrDuplicate = eris.New("store: duplicate")
)

// Populate declares which related records GetListing loads alongside the
// listing itself. The zero value loads nothing.
type Populate struct {
	Reviews       bool
	ReviewAuthors bool
	Owner         bool
}

// PopulateAll loads reviews, each review's author and the owner.
var PopulateAll = Populate{Reviews: true, ReviewAuthors: true, Owner: true}

// Store defines the persistence interface for the listings application.
type Store interface {
	// Listings
	ListListings(ctx context.Context) ([]model.Listing, error)
	GetListing(ctx context.Context, id string, pop Populate) (*model.Listing, error)
	CreateListing(ctx context.Context, l *model.Listing) error
	UpdateListing(ctx context.Context, l *model.Listing) error
	DeleteListing(ctx context.Context, id string) error

	// Reviews
	CreateReview(ctx context.Context, r *model.Review) error
	GetReview(ctx context.Context, id string) (*model.Review, error)
	DeleteReview(ctx context.Context, listingID, reviewID string) error

	// Users
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// nullIfEmpty maps an empty reference to SQL NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
