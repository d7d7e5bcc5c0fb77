// Package listing implements the listing workflows: geocode-then-save on
// create and update, populated reads, delete and reviews.
package listing

import (
	"context"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listings/internal/model"
	"github.com/sells-group/listings/internal/store"
	"github.com/sells-group/listings/internal/upload"
	"github.com/sells-group/listings/pkg/geocode"
)

var (
	// ErrGeocodeFailed is returned when the location yields no geocoding match.
	ErrGeocodeFailed = eris.New("listing: geocoding failed")
	// ErrImageRequired is returned when a create request carries no image.
	ErrImageRequired = eris.New("listing: image required")
)

// Upsert operations and outcomes reported to an Observer.
const (
	OpCreate = "create"
	OpUpdate = "update"

	OutcomeOK             = "ok"
	OutcomeGeocodeFailed  = "geocode_failed"
	OutcomePersistFailed  = "persist_failed"
	OutcomeNotFound       = "not_found"
	OutcomeImageRequired  = "image_required"
	OutcomeUploadFailed   = "upload_failed"
	OutcomeInvalidListing = "invalid"
)

// Observer receives the outcome of every create and update.
type Observer func(op, outcome string)

// Option configures the Service.
type Option func(*Service)

// WithObserver registers a callback for upsert outcomes.
func WithObserver(fn Observer) Option {
	return func(s *Service) {
		s.observe = fn
	}
}

// File is an uploaded image awaiting storage.
type File struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

// Service orchestrates the store, the geocoder and the uploader.
type Service struct {
	store    store.Store
	geocoder geocode.Client
	uploader upload.Uploader
	observe  Observer
}

// NewService creates a Service.
func NewService(st store.Store, gc geocode.Client, up upload.Uploader, opts ...Option) *Service {
	s := &Service{
		store:    st,
		geocoder: gc,
		uploader: up,
		observe:  func(string, string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Index returns every listing, unfiltered and unpaginated.
func (s *Service) Index(ctx context.Context) ([]model.Listing, error) {
	return s.store.ListListings(ctx)
}

// Show returns a listing with its reviews, their authors and its owner.
func (s *Service) Show(ctx context.Context, id string) (*model.Listing, error) {
	return s.store.GetListing(ctx, id, store.PopulateAll)
}

// EditForm returns the listing and the preview URL for its image.
func (s *Service) EditForm(ctx context.Context, id string) (*model.Listing, string, error) {
	l, err := s.store.GetListing(ctx, id, store.Populate{})
	if err != nil {
		return nil, "", err
	}
	return l, model.ThumbnailURL(l.Image.URL), nil
}

// Create geocodes the submitted location, stores the image and persists a
// new listing owned by ownerID. Nothing is persisted when geocoding fails.
func (s *Service) Create(ctx context.Context, ownerID string, in model.Input, img *File) (*model.Listing, error) {
	if img == nil {
		s.observe(OpCreate, OutcomeImageRequired)
		return nil, ErrImageRequired
	}

	l := &model.Listing{OwnerID: ownerID}
	in.Apply(l)

	if err := s.geocodeInto(ctx, l); err != nil {
		s.observe(OpCreate, OutcomeGeocodeFailed)
		return nil, err
	}

	stored, err := s.uploader.Upload(ctx, img.Reader, img.Filename, img.ContentType)
	if err != nil {
		s.observe(OpCreate, OutcomeUploadFailed)
		return nil, eris.Wrap(err, "listing: store image")
	}
	l.Image = stored

	if err := s.store.CreateListing(ctx, l); err != nil {
		s.discard(ctx, stored)
		s.observe(OpCreate, classify(err))
		return nil, eris.Wrap(err, "listing: create")
	}

	zap.L().Info("listing: created",
		zap.String("listing_id", l.ID),
		zap.String("owner_id", ownerID),
		zap.String("location", l.Location),
	)
	s.observe(OpCreate, OutcomeOK)
	return l, nil
}

// Update applies the submitted fields to an existing listing, geocodes the
// location again and saves the listing under the same id. img may be nil to
// keep the current image.
func (s *Service) Update(ctx context.Context, id string, in model.Input, img *File) (*model.Listing, error) {
	l, err := s.store.GetListing(ctx, id, store.Populate{})
	if err != nil {
		s.observe(OpUpdate, classify(err))
		return nil, err
	}
	in.Apply(l)

	if err := s.geocodeInto(ctx, l); err != nil {
		s.observe(OpUpdate, OutcomeGeocodeFailed)
		return nil, err
	}

	previous := l.Image
	var replaced bool
	if img != nil {
		stored, err := s.uploader.Upload(ctx, img.Reader, img.Filename, img.ContentType)
		if err != nil {
			s.observe(OpUpdate, OutcomeUploadFailed)
			return nil, eris.Wrap(err, "listing: store image")
		}
		l.Image = stored
		replaced = true
	}

	if err := s.store.UpdateListing(ctx, l); err != nil {
		if replaced {
			s.discard(ctx, l.Image)
		}
		s.observe(OpUpdate, classify(err))
		return nil, eris.Wrapf(err, "listing: update %s", id)
	}
	if replaced {
		s.discard(ctx, previous)
	}

	zap.L().Info("listing: updated", zap.String("listing_id", l.ID), zap.String("location", l.Location))
	s.observe(OpUpdate, OutcomeOK)
	return l, nil
}

// Delete removes the listing and its reviews without checking that it
// exists. The stored image is removed on a best-effort basis.
func (s *Service) Delete(ctx context.Context, id string) error {
	l, lookupErr := s.store.GetListing(ctx, id, store.Populate{})
	if err := s.store.DeleteListing(ctx, id); err != nil {
		return eris.Wrapf(err, "listing: delete %s", id)
	}
	switch {
	case lookupErr == nil:
		s.discard(ctx, l.Image)
	case !errors.Is(lookupErr, store.ErrNotFound):
		zap.L().Warn("listing: image not removed, lookup before delete failed",
			zap.String("listing_id", id), zap.Error(lookupErr))
	}
	zap.L().Info("listing: deleted", zap.String("listing_id", id))
	return nil
}

// AddReview attaches a review by authorID to the listing.
func (s *Service) AddReview(ctx context.Context, listingID, authorID string, rating int, comment string) (*model.Review, error) {
	r := &model.Review{ListingID: listingID, AuthorID: authorID, Rating: rating, Comment: comment}
	if err := s.store.CreateReview(ctx, r); err != nil {
		return nil, eris.Wrapf(err, "listing: add review to %s", listingID)
	}
	return r, nil
}

// Review returns one review, used for author checks.
func (s *Service) Review(ctx context.Context, reviewID string) (*model.Review, error) {
	return s.store.GetReview(ctx, reviewID)
}

// RemoveReview deletes a review from the listing.
func (s *Service) RemoveReview(ctx context.Context, listingID, reviewID string) error {
	return s.store.DeleteReview(ctx, listingID, reviewID)
}

// geocodeInto resolves l.Location and overwrites it with the formatted
// address. The geometry takes [longitude, latitude] from the first match.
func (s *Service) geocodeInto(ctx context.Context, l *model.Listing) error {
	results := s.geocoder.Forward(ctx, l.Location, 1)
	if len(results) == 0 {
		zap.L().Warn("listing: geocoding returned no match", zap.String("location", l.Location))
		return eris.Wrapf(ErrGeocodeFailed, "location %q", l.Location)
	}
	best := results[0]
	l.Location = best.Formatted
	l.Geometry = model.NewPoint(best.Longitude, best.Latitude)
	return nil
}

func (s *Service) discard(ctx context.Context, img model.Image) {
	if img.Filename == "" {
		return
	}
	if err := s.uploader.Delete(ctx, img.Filename); err != nil {
		zap.L().Warn("listing: discard image", zap.String("filename", img.Filename), zap.Error(err))
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, model.ErrInvalidListing):
		return OutcomeInvalidListing
	default:
		return OutcomePersistFailed
	}
}
