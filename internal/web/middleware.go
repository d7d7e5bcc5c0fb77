package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sells-group/listings/internal/model"
	"github.com/sells-group/listings/internal/store"
)

type ctxKey int

const userKey ctxKey = iota

// currentUser returns the signed-in user, or nil.
func currentUser(r *http.Request) *model.User {
	u, _ := r.Context().Value(userKey).(*model.User)
	return u
}

// accessLog logs each request and records it in the HTTP metrics.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		s.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// methodOverride lets HTML forms issue PUT and DELETE via POST ?_method=.
func methodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			switch m := strings.ToUpper(r.URL.Query().Get("_method")); m {
			case http.MethodPut, http.MethodPatch, http.MethodDelete:
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}

// loadUser resolves the session cookie into the current user.
func (s *Server) loadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.sessions.UserID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		u, err := s.store.GetUser(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.sessions.Logout(w)
			} else {
				zap.L().Error("web: load session user", zap.String("user_id", id), zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// requireLogin redirects anonymous visitors to the login page.
func (s *Server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) != nil {
			next.ServeHTTP(w, r)
			return
		}
		s.sessions.Error(w, MsgLoginRequired)
		target := "/login"
		if r.Method == http.MethodGet {
			target += "?next=" + url.QueryEscape(r.URL.RequestURI())
		}
		http.Redirect(w, r, target, http.StatusFound)
	})
}

// requireOwner rejects changes to listings the current user does not own.
// A listing that does not exist passes through, so deletes stay idempotent
// and the handler reports the missing listing.
func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		l, err := s.store.GetListing(r.Context(), id, store.Populate{})
		switch {
		case errors.Is(err, store.ErrNotFound):
			next.ServeHTTP(w, r)
		case err != nil:
			zap.L().Error("web: owner check", zap.String("listing_id", id), zap.Error(err))
			s.sessions.Error(w, MsgSomethingWrong)
			http.Redirect(w, r, "/listings", http.StatusFound)
		case l.OwnerID != currentUser(r).ID:
			s.sessions.Error(w, MsgNotOwner)
			http.Redirect(w, r, listingPath(id), http.StatusFound)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func listingPath(id string) string {
	return "/listings/" + url.PathEscape(id)
}

// safeNext accepts only local absolute paths as post-login redirect targets.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/listings"
	}
	return next
}
