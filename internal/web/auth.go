package web

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sells-group/listings/internal/model"
	"github.com/sells-group/listings/internal/store"
)

func (s *Server) signupForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "signup", "Sign up", nil)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.sessions.Error(w, MsgSignupInvalid)
		http.Redirect(w, r, "/signup", http.StatusFound)
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	if username == "" || email == "" || password == "" {
		s.sessions.Error(w, MsgSignupInvalid)
		http.Redirect(w, r, "/signup", http.StatusFound)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		zap.L().Error("web: hash password", zap.Error(err))
		s.sessions.Error(w, MsgSignupInvalid)
		http.Redirect(w, r, "/signup", http.StatusFound)
		return
	}

	u := &model.User{Username: username, Email: email, PasswordHash: string(hash)}
	if err := s.store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.sessions.Error(w, MsgUserExists)
		} else {
			zap.L().Error("web: create user", zap.String("username", username), zap.Error(err))
			s.sessions.Error(w, MsgSomethingWrong)
		}
		http.Redirect(w, r, "/signup", http.StatusFound)
		return
	}

	if err := s.sessions.Login(w, u.ID); err != nil {
		zap.L().Error("web: start session", zap.String("user_id", u.ID), zap.Error(err))
		s.sessions.Error(w, MsgSomethingWrong)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	zap.L().Info("web: user signed up", zap.String("user_id", u.ID), zap.String("username", username))
	s.sessions.Success(w, MsgWelcome)
	http.Redirect(w, r, "/listings", http.StatusFound)
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login", "Log in", safeNext(r.URL.Query().Get("next")))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.sessions.Error(w, MsgBadCredentials)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	u, err := s.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zap.L().Error("web: load user", zap.String("username", username), zap.Error(err))
		}
		s.sessions.Error(w, MsgBadCredentials)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.sessions.Error(w, MsgBadCredentials)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if err := s.sessions.Login(w, u.ID); err != nil {
		zap.L().Error("web: start session", zap.String("user_id", u.ID), zap.Error(err))
		s.sessions.Error(w, MsgSomethingWrong)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	s.sessions.Success(w, MsgWelcomeBack)
	http.Redirect(w, r, safeNext(r.PostFormValue("next")), http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(w)
	s.sessions.Success(w, MsgLoggedOut)
	http.Redirect(w, r, "/listings", http.StatusFound)
}
