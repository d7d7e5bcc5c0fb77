package web

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listings/internal/listing"
	"github.com/sells-group/listings/internal/model"
	"github.com/sells-group/listings/internal/store"
)

const newListingPath = "/listings/new"

type showData struct {
	Listing *model.Listing
	Map     model.MapView
	IsOwner bool
}

type editData struct {
	Listing   *model.Listing
	Thumbnail string
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	all, err := s.listings.Index(r.Context())
	if err != nil {
		zap.L().Error("web: list listings", zap.Error(err))
		s.render(w, r, http.StatusInternalServerError, "error", "Error", MsgSomethingWrong)
		return
	}
	s.render(w, r, http.StatusOK, "index", "All Listings", all)
}

func (s *Server) newForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "new", "New Listing", nil)
}

func (s *Server) show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l, err := s.listings.Show(r.Context(), id)
	if err != nil {
		s.listingMissing(w, r, id, err)
		return
	}
	u := currentUser(r)
	s.render(w, r, http.StatusOK, "show", l.Title, showData{
		Listing: l,
		Map:     model.NewMapView(l, s.mapDefs),
		IsOwner: u != nil && u.ID == l.OwnerID,
	})
}

func (s *Server) editForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	l, thumb, err := s.listings.EditForm(r.Context(), id)
	if err != nil {
		s.listingMissing(w, r, id, err)
		return
	}
	s.render(w, r, http.StatusOK, "edit", "Edit "+l.Title, editData{Listing: l, Thumbnail: thumb})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	in, img, cleanup, err := s.parseListingForm(w, r)
	defer cleanup()
	if err != nil {
		zap.L().Warn("web: parse listing form", zap.Error(err))
		s.sessions.Error(w, MsgCreateFailed)
		http.Redirect(w, r, newListingPath, http.StatusFound)
		return
	}

	l, err := s.listings.Create(r.Context(), currentUser(r).ID, in, img)
	switch {
	case err == nil:
		s.sessions.Success(w, MsgCreated)
		zap.L().Debug("web: listing created", zap.String("listing_id", l.ID))
		http.Redirect(w, r, "/listings", http.StatusFound)
	case errors.Is(err, listing.ErrImageRequired):
		s.sessions.Error(w, MsgImageRequired)
		http.Redirect(w, r, newListingPath, http.StatusFound)
	case errors.Is(err, listing.ErrGeocodeFailed):
		s.sessions.Error(w, MsgGeocodeFailed)
		http.Redirect(w, r, newListingPath, http.StatusFound)
	default:
		zap.L().Error("web: create listing", zap.Error(err))
		s.sessions.Error(w, MsgCreateFailed)
		http.Redirect(w, r, newListingPath, http.StatusFound)
	}
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	editPath := listingPath(id) + "/edit"

	in, img, cleanup, err := s.parseListingForm(w, r)
	defer cleanup()
	if err != nil {
		zap.L().Warn("web: parse listing form", zap.String("listing_id", id), zap.Error(err))
		s.sessions.Error(w, MsgUpdateFailed)
		http.Redirect(w, r, editPath, http.StatusFound)
		return
	}

	_, err = s.listings.Update(r.Context(), id, in, img)
	switch {
	case err == nil:
		s.sessions.Success(w, MsgUpdated)
		http.Redirect(w, r, listingPath(id), http.StatusFound)
	case errors.Is(err, store.ErrNotFound):
		s.sessions.Error(w, MsgListingMissing)
		http.Redirect(w, r, "/listings", http.StatusFound)
	case errors.Is(err, listing.ErrGeocodeFailed):
		s.sessions.Error(w, MsgGeocodeFailed)
		http.Redirect(w, r, editPath, http.StatusFound)
	default:
		zap.L().Error("web: update listing", zap.String("listing_id", id), zap.Error(err))
		s.sessions.Error(w, MsgUpdateFailed)
		http.Redirect(w, r, editPath, http.StatusFound)
	}
}

func (s *Server) destroy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.listings.Delete(r.Context(), id); err != nil {
		zap.L().Error("web: delete listing", zap.String("listing_id", id), zap.Error(err))
		s.sessions.Error(w, MsgDeleteFailed)
		http.Redirect(w, r, "/listings", http.StatusFound)
		return
	}
	s.sessions.Success(w, MsgDeleted)
	http.Redirect(w, r, "/listings", http.StatusFound)
}

// listingMissing redirects to the index with an error flash. Lookup
// failures other than not-found are logged but look the same to the user.
func (s *Server) listingMissing(w http.ResponseWriter, r *http.Request, id string, err error) {
	if !errors.Is(err, store.ErrNotFound) {
		zap.L().Error("web: load listing", zap.String("listing_id", id), zap.Error(err))
	}
	s.sessions.Error(w, MsgListingMissing)
	http.Redirect(w, r, "/listings", http.StatusFound)
}

// parseListingForm reads the listing fields and the optional image from a
// multipart or urlencoded body. The returned cleanup must always be called.
func (s *Server) parseListingForm(w http.ResponseWriter, r *http.Request) (model.Input, *listing.File, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return model.Input{}, nil, noop, eris.Wrap(err, "web: parse form")
	}

	in := model.Input{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Location:    r.FormValue("location"),
	}
	if raw := strings.TrimSpace(r.FormValue("price")); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.Input{}, nil, noop, eris.Wrapf(err, "web: parse price %q", raw)
		}
		in.Price = p
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	f, hdr, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return in, nil, cleanup, nil
	case err != nil:
		return model.Input{}, nil, cleanup, eris.Wrap(err, "web: read image")
	}
	if hdr.Size == 0 || hdr.Filename == "" {
		_ = f.Close()
		return in, nil, cleanup, nil
	}
	return in, imageFile(f, hdr), func() {
		_ = f.Close()
		cleanup()
	}, nil
}

func imageFile(f multipart.File, hdr *multipart.FileHeader) *listing.File {
	return &listing.File{
		Reader:      f,
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
	}
}
