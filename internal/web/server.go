// Package web serves the listings HTML pages, the JSON API and operational
// endpoints.
package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"

	"github.com/sells-group/listings/internal/listing"
	"github.com/sells-group/listings/internal/metrics"
	"github.com/sells-group/listings/internal/model"
	"github.com/sells-group/listings/internal/session"
	"github.com/sells-group/listings/internal/store"
)

const defaultMaxUploadBytes = 10 << 20

// Deps are the collaborators the Server needs.
type Deps struct {
	Listings *listing.Service
	Store    store.Store
	Sessions *session.Manager
	Metrics  *metrics.Metrics
	Map      model.MapDefaults

	// MaxUploadBytes caps multipart bodies. Zero means 10 MiB.
	MaxUploadBytes int64

	// Uploads, when set, serves locally stored images under UploadPrefix.
	Uploads      http.Handler
	UploadPrefix string
}

// Server holds request handlers and their dependencies.
type Server struct {
	listings  *listing.Service
	store     store.Store
	sessions  *session.Manager
	metrics   *metrics.Metrics
	mapDefs   model.MapDefaults
	maxUpload int64
	uploads   http.Handler
	uploadPfx string
	pages     *renderer
}

// NewServer parses templates and wires the handlers.
func NewServer(d Deps) (*Server, error) {
	if d.Listings == nil || d.Store == nil || d.Sessions == nil {
		return nil, eris.New("web: listings, store and sessions are required")
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = defaultMaxUploadBytes
	}
	if d.Map == (model.MapDefaults{}) {
		d.Map = model.DefaultMap
	}
	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}
	return &Server{
		listings:  d.Listings,
		store:     d.Store,
		sessions:  d.Sessions,
		metrics:   d.Metrics,
		mapDefs:   d.Map,
		maxUpload: d.MaxUploadBytes,
		uploads:   d.Uploads,
		uploadPfx: "/" + strings.Trim(d.UploadPrefix, "/"),
		pages:     pages,
	}, nil
}

// Router builds the chi router with every route and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(methodOverride)
	r.NotFound(s.loadUser(http.HandlerFunc(s.notFound)).ServeHTTP)

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	if s.uploads != nil && s.uploadPfx != "/" {
		r.Handle(s.uploadPfx+"/*", http.StripPrefix(s.uploadPfx, s.uploads))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/listings", s.apiListings)
		r.Get("/listings/{id}", s.apiListing)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.loadUser)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/listings", http.StatusFound)
		})

		r.Get("/signup", s.signupForm)
		r.Post("/signup", s.signup)
		r.Get("/login", s.loginForm)
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", s.index)
			r.With(s.requireLogin).Get("/new", s.newForm)
			r.With(s.requireLogin).Post("/", s.create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.show)
				r.With(s.requireLogin, s.requireOwner).Get("/edit", s.editForm)
				r.With(s.requireLogin, s.requireOwner).Put("/", s.update)
				r.With(s.requireLogin, s.requireOwner).Delete("/", s.destroy)

				r.With(s.requireLogin).Post("/reviews", s.createReview)
				r.With(s.requireLogin).Delete("/reviews/{reviewID}", s.destroyReview)
			})
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
