package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listings/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newBandraListing(ownerID string) *model.Listing {
	return &model.Listing{
		Title:       "Sea-facing flat",
		Description: "Two bedrooms near the promenade",
		Price:       1500,
		Location:    "Bandra, Mumbai, India",
		Geometry:    model.NewPoint(72.84, 19.05),
		Image:       model.Image{URL: "/upload/listings/abc.jpg", Filename: "listings/abc.jpg"},
		OwnerID:     ownerID,
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetListing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		l := newBandraListing("")
		require.NoError(t, s.CreateListing(ctx, l))
		assert.NotEmpty(t, l.ID)
		assert.False(t, l.CreatedAt.IsZero())

		got, err := s.GetListing(ctx, l.ID, Populate{})
		require.NoError(t, err)
		assert.Equal(t, "Sea-facing flat", got.Title)
		assert.Equal(t, "Bandra, Mumbai, India", got.Location)
		require.NotNil(t, got.Geometry)
		assert.Equal(t, model.PointType, got.Geometry.Type)
		assert.Equal(t, [2]float64{72.84, 19.05}, got.Geometry.Coordinates)
		assert.Equal(t, l.Image, got.Image)
		assert.Nil(t, got.Reviews)
		assert.Nil(t, got.Owner)
	})

	t.Run("CreateListingRejectsLocationWithoutGeometry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		l := newBandraListing("")
		l.Geometry = nil
		err := s.CreateListing(ctx, l)
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrInvalidListing))

		all, err := s.ListListings(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("GetListingNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetListing(context.Background(), "missing", PopulateAll)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("ListListingsInCreationOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, title := range []string{"First", "Second", "Third"} {
			l := newBandraListing("")
			l.Title = title
			require.NoError(t, s.CreateListing(ctx, l))
		}

		all, err := s.ListListings(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "First", all[0].Title)
		assert.Equal(t, "Third", all[2].Title)
	})

	t.Run("UpdateListingInPlace", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		l := newBandraListing("")
		require.NoError(t, s.CreateListing(ctx, l))
		id := l.ID

		l.Title = "Renovated flat"
		l.Location = "Juhu, Mumbai, India"
		l.Geometry = model.NewPoint(72.83, 19.10)
		require.NoError(t, s.UpdateListing(ctx, l))
		assert.Equal(t, id, l.ID)

		got, err := s.GetListing(ctx, id, Populate{})
		require.NoError(t, err)
		assert.Equal(t, "Renovated flat", got.Title)
		assert.Equal(t, "Juhu, Mumbai, India", got.Location)
		assert.Equal(t, [2]float64{72.83, 19.10}, got.Geometry.Coordinates)
	})

	t.Run("UpdateListingNotFound", func(t *testing.T) {
		s := newStore(t)
		l := newBandraListing("")
		l.ID = "missing"
		err := s.UpdateListing(context.Background(), l)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("DeleteListingCascadesReviews", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		l := newBandraListing("")
		require.NoError(t, s.CreateListing(ctx, l))
		r := &model.Review{ListingID: l.ID, Rating: 4, Comment: "Lovely view"}
		require.NoError(t, s.CreateReview(ctx, r))

		require.NoError(t, s.DeleteListing(ctx, l.ID))

		_, err := s.GetListing(ctx, l.ID, Populate{})
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = s.GetReview(ctx, r.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("DeleteListingIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.DeleteListing(ctx, "never-existed"))
		require.NoError(t, s.DeleteListing(ctx, "never-existed"))
	})

	t.Run("PopulateReviewsAuthorsAndOwner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		owner := &model.User{Username: "priya", Email: "priya@example.com", PasswordHash: "x"}
		require.NoError(t, s.CreateUser(ctx, owner))
		author := &model.User{Username: "arjun", Email: "arjun@example.com", PasswordHash: "x"}
		require.NoError(t, s.CreateUser(ctx, author))

		l := newBandraListing(owner.ID)
		require.NoError(t, s.CreateListing(ctx, l))
		require.NoError(t, s.CreateReview(ctx, &model.Review{ListingID: l.ID, AuthorID: author.ID, Rating: 5, Comment: "First"}))
		require.NoError(t, s.CreateReview(ctx, &model.Review{ListingID: l.ID, AuthorID: author.ID, Rating: 3, Comment: "Second"}))

		got, err := s.GetListing(ctx, l.ID, PopulateAll)
		require.NoError(t, err)
		require.NotNil(t, got.Owner)
		assert.Equal(t, "priya", got.Owner.Username)
		require.Len(t, got.Reviews, 2)
		assert.Equal(t, "First", got.Reviews[0].Comment)
		assert.Equal(t, "Second", got.Reviews[1].Comment)
		require.NotNil(t, got.Reviews[0].Author)
		assert.Equal(t, "arjun", got.Reviews[0].Author.Username)

		bare, err := s.GetListing(ctx, l.ID, Populate{Reviews: true})
		require.NoError(t, err)
		require.Len(t, bare.Reviews, 2)
		assert.Nil(t, bare.Reviews[0].Author)
		assert.Nil(t, bare.Owner)
	})

	t.Run("CreateReviewValidation", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		l := newBandraListing("")
		require.NoError(t, s.CreateListing(ctx, l))

		err := s.CreateReview(ctx, &model.Review{ListingID: l.ID, Rating: 6, Comment: "Too good"})
		assert.True(t, errors.Is(err, model.ErrInvalidReview))

		err = s.CreateReview(ctx, &model.Review{ListingID: "missing", Rating: 3, Comment: "Ghost"})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("DeleteReview", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		l := newBandraListing("")
		require.NoError(t, s.CreateListing(ctx, l))
		r := &model.Review{ListingID: l.ID, Rating: 2, Comment: "Noisy"}
		require.NoError(t, s.CreateReview(ctx, r))

		got, err := s.GetReview(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, l.ID, got.ListingID)

		require.NoError(t, s.DeleteReview(ctx, l.ID, r.ID))
		_, err = s.GetReview(ctx, r.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("Users", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u := &model.User{Username: "meera", Email: "meera@example.com", PasswordHash: "hash"}
		require.NoError(t, s.CreateUser(ctx, u))
		assert.NotEmpty(t, u.ID)

		byName, err := s.GetUserByUsername(ctx, "meera")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byName.ID)
		assert.Equal(t, "hash", byName.PasswordHash)

		byID, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "meera@example.com", byID.Email)

		err = s.CreateUser(ctx, &model.User{Username: "meera", Email: "other@example.com", PasswordHash: "x"})
		assert.True(t, errors.Is(err, ErrDuplicate))

		_, err = s.GetUserByUsername(ctx, "nobody")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLiteStore_ListingWithoutLocation(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	l := &model.Listing{Title: "Plot", Price: 0}
	require.NoError(t, s.CreateListing(ctx, l))

	got, err := s.GetListing(ctx, l.ID, Populate{})
	require.NoError(t, err)
	assert.Nil(t, got.Geometry)
	assert.Empty(t, got.Location)
}
