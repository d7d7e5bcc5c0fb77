package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listings/internal/model"
)

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(Deps{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil), nil, t)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(httptest.NewRequest(http.MethodGet, "/health", nil), nil, t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), nil, t)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `listings_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRootRedirects(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil), nil, t)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/listings", rec.Header().Get("Location"))
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/nope", nil), nil, t)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page Not Found")
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/static/js/map.js", nil), nil, t)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "function initializeMap")
	assert.Contains(t, rec.Body.String(), "function listingView", "map widget accepts the API listing shape")
}

func TestUploadsServeThumbnailPath(t *testing.T) {
	env := newTestEnv(t)
	l := env.createListing(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, model.ThumbnailURL(l.Image.URL), nil), nil, t)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())
}

func TestAPIListings(t *testing.T) {
	env := newTestEnv(t)
	l := env.createListing(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/listings", nil), nil, t)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var fc model.FeatureCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, [2]float64{72.84, 19.05}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, l.ID, fc.Features[0].Properties["id"])
}

func TestAPIListing(t *testing.T) {
	env := newTestEnv(t)
	l := env.createListing(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/listings/"+l.ID, nil), nil, t)
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Bandra, Mumbai, India", got.Location)
	require.NotNil(t, got.Owner)
	assert.Equal(t, "owner", got.Owner.Username)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/listings/missing", nil), nil, t)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"listing not found"}`, rec.Body.String())
}

func TestAPICORS(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	req.Header.Set("Origin", "https://maps.example.com")

	rec := env.do(req, nil, t)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMethodOverride(t *testing.T) {
	var got string
	h := methodOverride(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = r.Method
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x?_method=delete", nil))
	assert.Equal(t, http.MethodDelete, got)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x?_method=TRACE", nil))
	assert.Equal(t, http.MethodPost, got)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x?_method=PUT", nil))
	assert.Equal(t, http.MethodGet, got)
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/listings/abc", safeNext("/listings/abc"))
	assert.Equal(t, "/listings", safeNext("https://evil.example.com"))
	assert.Equal(t, "/listings", safeNext("//evil.example.com"))
	assert.Equal(t, "/listings", safeNext(""))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "₹1,500", formatPrice(1500))
	assert.Equal(t, "₹2,500.5", formatPrice(2500.5))
	assert.Equal(t, "₹0", formatPrice(0))
}
