package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/listings/internal/model"
	"github.com/sells-group/listings/internal/store"
)

// apiListings returns every geocoded listing as a GeoJSON FeatureCollection.
func (s *Server) apiListings(w http.ResponseWriter, r *http.Request) {
	all, err := s.listings.Index(r.Context())
	if err != nil {
		zap.L().Error("web: api list listings", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	writeJSON(w, http.StatusOK, model.NewFeatureCollection(all))
}

func (s *Server) apiListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l, err := s.listings.Show(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "listing not found"})
	case err != nil:
		zap.L().Error("web: api get listing", zap.String("listing_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		writeJSON(w, http.StatusOK, l)
	}
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "error", "Page Not Found", "The page you are looking for does not exist.")
}
