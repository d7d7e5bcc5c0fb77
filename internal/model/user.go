package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidReview is returned when a review fails validation.
var ErrInvalidReview = eris.New("invalid review")

// User is a registered account. Listings and reviews reference users by ID.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Review is a rating left on a listing.
type Review struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	AuthorID  string    `json:"author_id"`
	Author    *User     `json:"author,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks rating bounds and that a comment is present.
func (r *Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return eris.Wrapf(ErrInvalidReview, "rating %d out of range 1..5", r.Rating)
	}
	if strings.TrimSpace(r.Comment) == "" {
		return eris.Wrap(ErrInvalidReview, "comment is required")
	}
	return nil
}
