package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/listings/internal/model"
	"github.com/sells-group/listings/internal/store"
)

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		s.sessions.Error(w, MsgReviewFailed)
		http.Redirect(w, r, listingPath(id), http.StatusFound)
		return
	}
	rating, _ := strconv.Atoi(r.PostFormValue("rating"))

	_, err := s.listings.AddReview(r.Context(), id, currentUser(r).ID, rating, r.PostFormValue("comment"))
	switch {
	case err == nil:
		s.sessions.Success(w, MsgReviewCreated)
		http.Redirect(w, r, listingPath(id), http.StatusFound)
	case errors.Is(err, store.ErrNotFound):
		s.sessions.Error(w, MsgListingMissing)
		http.Redirect(w, r, "/listings", http.StatusFound)
	case errors.Is(err, model.ErrInvalidReview):
		zap.L().Info("web: invalid review", zap.String("listing_id", id), zap.Error(err))
		s.sessions.Error(w, MsgReviewFailed)
		http.Redirect(w, r, listingPath(id), http.StatusFound)
	default:
		zap.L().Error("web: create review", zap.String("listing_id", id), zap.Error(err))
		s.sessions.Error(w, MsgReviewFailed)
		http.Redirect(w, r, listingPath(id), http.StatusFound)
	}
}

// destroyReview lets only the author remove a review. A review that is
// already gone reports success.
func (s *Server) destroyReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reviewID := chi.URLParam(r, "reviewID")

	rv, err := s.listings.Review(r.Context(), reviewID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.sessions.Success(w, MsgReviewDeleted)
		http.Redirect(w, r, listingPath(id), http.StatusFound)
		return
	case err != nil:
		zap.L().Error("web: load review", zap.String("review_id", reviewID), zap.Error(err))
		s.sessions.Error(w, MsgSomethingWrong)
		http.Redirect(w, r, listingPath(id), http.StatusFound)
		return
	case rv.AuthorID != currentUser(r).ID || rv.ListingID != id:
		s.sessions.Error(w, MsgNotAuthor)
		http.Redirect(w, r, listingPath(id), http.StatusFound)
		return
	}

	if err := s.listings.RemoveReview(r.Context(), id, reviewID); err != nil && !errors.Is(err, store.ErrNotFound) {
		zap.L().Error("web: delete review", zap.String("review_id", reviewID), zap.Error(err))
		s.sessions.Error(w, MsgSomethingWrong)
		http.Redirect(w, r, listingPath(id), http.StatusFound)
		return
	}
	s.sessions.Success(w, MsgReviewDeleted)
	http.Redirect(w, r, listingPath(id), http.StatusFound)
}
