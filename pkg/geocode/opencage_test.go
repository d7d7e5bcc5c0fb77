package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCageForward_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, opencagePath, r.URL.Path)
		assert.Equal(t, "Bandra, Mumbai", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": {"code": 200, "message": "OK"},
			"results": [{
				"formatted": "Bandra, Mumbai, India",
				"confidence": 7,
				"geometry": {"lat": 19.05, "lng": 72.84}
			}]
		}`)
	}))
	defer srv.Close()

	rec := &outcomeRecorder{}
	c := newTestClient(t, Config{BaseURL: srv.URL}, WithObserver(rec.observe))

	results := c.Forward(context.Background(), "Bandra, Mumbai", 1)
	require.Len(t, results, 1)
	assert.Equal(t, "Bandra, Mumbai, India", results[0].Formatted)
	assert.InDelta(t, 19.05, results[0].Latitude, 1e-9)
	assert.InDelta(t, 72.84, results[0].Longitude, 1e-9)
	assert.Equal(t, 7, results[0].Confidence)
	assert.Equal(t, ProviderOpenCage, results[0].Source)
	assert.Equal(t, []string{OutcomeMatched}, rec.all())
}

func TestOpenCageForward_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status": {"code": 200, "message": "OK"}, "results": []}`)
	}))
	defer srv.Close()

	rec := &outcomeRecorder{}
	c := newTestClient(t, Config{BaseURL: srv.URL}, WithObserver(rec.observe))

	assert.Empty(t, c.Forward(context.Background(), "000 Nowhere Lane", 1))
	assert.Equal(t, []string{OutcomeNoMatch}, rec.all())
}

func TestOpenCageForward_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	rec := &outcomeRecorder{}
	c := newTestClient(t, Config{BaseURL: srv.URL}, WithObserver(rec.observe))

	assert.Nil(t, c.Forward(context.Background(), "Goa", 1))
	assert.Equal(t, []string{OutcomeError}, rec.all())
}

func TestOpenCageForward_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"results": [`)
	}))
	defer srv.Close()

	rec := &outcomeRecorder{}
	c := newTestClient(t, Config{BaseURL: srv.URL}, WithObserver(rec.observe))

	assert.Nil(t, c.Forward(context.Background(), "Goa", 1))
	assert.Equal(t, []string{OutcomeError}, rec.all())
}

func TestOpenCageForward_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, Config{BaseURL: url})
	assert.Nil(t, c.Forward(context.Background(), "Goa", 1))
}

func TestOpenCageForward_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = io.WriteString(w, `{"results": []}`)
	}))
	defer srv.Close()

	c := newTestClient(t, Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	assert.Nil(t, c.Forward(context.Background(), "Goa", 1))
	assert.Less(t, time.Since(start), time.Second)
}

func TestOpenCageForward_TruncatesToLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `{"results": [
			{"formatted": "A", "geometry": {"lat": 1, "lng": 2}},
			{"formatted": "B", "geometry": {"lat": 3, "lng": 4}},
			{"formatted": "C", "geometry": {"lat": 5, "lng": 6}}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, Config{BaseURL: srv.URL})
	results := c.Forward(context.Background(), "Springfield", 2)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].Formatted)
	assert.Equal(t, "B", results[1].Formatted)
}

func TestOpenCageForward_DefaultEndpoint(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, opencagePath, r.URL.Path)
		_, _ = io.WriteString(w, `{"results": [{"formatted": "Pune, India", "geometry": {"lat": 18.52, "lng": 73.85}}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, Config{}, WithHTTPClient(newRewriteClient(srv.URL, opencageBaseURL)))

	results := c.Forward(context.Background(), "Pune", 0)
	require.Len(t, results, 1)
	assert.Equal(t, "Pune, India", results[0].Formatted)
	assert.Equal(t, int32(1), calls.Load())
}

func TestForward_SkipsWithoutRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	rec := &outcomeRecorder{}
	c := newTestClient(t, Config{BaseURL: srv.URL}, WithObserver(rec.observe))
	assert.Nil(t, c.Forward(context.Background(), "   ", 1))

	noKey, err := NewClient(Config{BaseURL: srv.URL}, WithObserver(rec.observe))
	require.NoError(t, err)
	assert.Nil(t, noKey.Forward(context.Background(), "Goa", 1))

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, []string{OutcomeSkipped, OutcomeSkipped}, rec.all())
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "mapquest"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}
