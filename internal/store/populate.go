package store

import (
	"context"
	"errors"

	"github.com/sells-group/listings/internal/model"
)

type userGetter func(ctx context.Context, id string) (*model.User, error)

type reviewLister func(ctx context.Context, listingID string, withAuthors bool) ([]model.Review, error)

// populateListing attaches the related records requested by pop. A dangling
// owner reference leaves Owner nil instead of failing the read.
func populateListing(ctx context.Context, l *model.Listing, pop Populate, getUser userGetter, listReviews reviewLister) error {
	if pop.Owner && l.OwnerID != "" {
		owner, err := getUser(ctx, l.OwnerID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		default:
			l.Owner = owner
		}
	}
	if pop.Reviews {
		reviews, err := listReviews(ctx, l.ID, pop.ReviewAuthors)
		if err != nil {
			return err
		}
		l.Reviews = reviews
	}
	return nil
}
