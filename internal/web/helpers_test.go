package web

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sells-group/listings/internal/listing"
	"github.com/sells-group/listings/internal/metrics"
	"github.com/sells-group/listings/internal/model"
	"github.com/sells-group/listings/internal/session"
	"github.com/sells-group/listings/internal/store"
	"github.com/sells-group/listings/internal/upload"
	"github.com/sells-group/listings/pkg/geocode"
)

type stubGeocoder map[string]geocode.Result

func (g stubGeocoder) Forward(_ context.Context, query string, _ int) []geocode.Result {
	r, ok := g[query]
	if !ok {
		return nil
	}
	return []geocode.Result{r}
}

var bandra = geocode.Result{Formatted: "Bandra, Mumbai, India", Latitude: 19.05, Longitude: 72.84}

type testEnv struct {
	handler  http.Handler
	store    store.Store
	service  *listing.Service
	sessions *session.Manager
	owner    *model.User
	other    *model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith lets wrap replace the store the router sees. Fixtures are
// still written to the real store.
func newTestEnvWith(t *testing.T, wrap func(store.Store) store.Store) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	up, err := upload.NewLocal(t.TempDir(), "/upload")
	require.NoError(t, err)

	sessions, err := session.NewManager("test-secret", false)
	require.NoError(t, err)

	var routed store.Store = st
	if wrap != nil {
		routed = wrap(st)
	}
	svc := listing.NewService(st, stubGeocoder{"Bandra, Mumbai": bandra}, up)
	srv, err := NewServer(Deps{
		Listings:     svc,
		Store:        routed,
		Sessions:     sessions,
		Metrics:      metrics.New(),
		Uploads:      up.Handler(),
		UploadPrefix: up.URLPrefix(),
	})
	require.NoError(t, err)

	env := &testEnv{handler: srv.Router(), store: st, service: svc, sessions: sessions}
	env.owner = env.createUser(t, "owner", "secret-pw")
	env.other = env.createUser(t, "other", "secret-pw")
	return env
}

func (e *testEnv) createUser(t *testing.T, username, password string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{Username: username, Email: username + "@example.com", PasswordHash: string(hash)}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

// createListing stores a Bandra listing owned by e.owner through the service.
func (e *testEnv) createListing(t *testing.T) *model.Listing {
	t.Helper()
	l, err := e.service.Create(context.Background(), e.owner.ID, model.Input{
		Title:    "Sea view flat",
		Price:    1500,
		Location: "Bandra, Mumbai",
	}, &listing.File{Reader: strings.NewReader("png"), Filename: "flat.png", ContentType: "image/png"})
	require.NoError(t, err)
	return l
}

// sessionCookie returns a valid session cookie for u.
func (e *testEnv) sessionCookie(t *testing.T, u *model.User) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, e.sessions.Login(rec, u.ID))
	return findCookie(rec.Result(), session.SessionCookie)
}

func (e *testEnv) do(req *http.Request, as *model.User, t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	if as != nil {
		req.AddCookie(e.sessionCookie(t, as))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// flash decodes the flash cookie set on a response.
func (e *testEnv) flash(t *testing.T, rec *httptest.ResponseRecorder) *session.Flash {
	t.Helper()
	c := findCookie(rec.Result(), session.FlashCookie)
	if c == nil || c.Value == "" {
		return nil
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	return e.sessions.PopFlash(httptest.NewRecorder(), req)
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}
