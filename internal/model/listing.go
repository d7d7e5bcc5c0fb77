package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidListing is returned when a listing fails validation before a write.
var ErrInvalidListing = eris.New("invalid listing")

// Listing is a property listing. Geometry is set only after the location
// has been geocoded.
type Listing struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Location    string    `json:"location"`
	Geometry    *Point    `json:"geometry,omitempty"`
	Image       Image     `json:"image"`
	OwnerID     string    `json:"owner_id,omitempty"`
	Owner       *User     `json:"owner,omitempty"`
	Reviews     []Review  `json:"reviews,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Image references an uploaded listing photo.
type Image struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Input holds the user-editable listing fields submitted by a form.
type Input struct {
	Title       string
	Description string
	Price       float64
	Location    string
}

// Apply copies the submitted fields onto the listing.
func (in Input) Apply(l *Listing) {
	l.Title = strings.TrimSpace(in.Title)
	l.Description = strings.TrimSpace(in.Description)
	l.Price = in.Price
	l.Location = strings.TrimSpace(in.Location)
}

// Validate checks the invariants every persisted listing must hold.
func (l *Listing) Validate() error {
	if strings.TrimSpace(l.Title) == "" {
		return eris.Wrap(ErrInvalidListing, "title is required")
	}
	if l.Price < 0 {
		return eris.Wrap(ErrInvalidListing, "price must not be negative")
	}
	if l.Location != "" && l.Geometry == nil {
		return eris.Wrap(ErrInvalidListing, "location has no geometry")
	}
	return nil
}

// thumbnailFrom and thumbnailTo rewrite an upload URL into its 250px-wide
// rendition.
const (
	thumbnailFrom = "/upload"
	thumbnailTo   = "/upload/w_250"
)

// ThumbnailURL derives the edit-form preview URL from a stored image URL.
// Only the first "/upload" is rewritten; every other byte is unchanged.
func ThumbnailURL(url string) string {
	return strings.Replace(url, thumbnailFrom, thumbnailTo, 1)
}
