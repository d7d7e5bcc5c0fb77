package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveUpsert(t *testing.T) {
	m := New()
	m.ObserveUpsert("create", "ok")
	m.ObserveUpsert("create", "ok")
	m.ObserveUpsert("update", "geocode_failed")

	assert.InDelta(t, 2, testutil.ToFloat64(m.UpsertsTotal.WithLabelValues("create", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.UpsertsTotal.WithLabelValues("update", "geocode_failed")), 0)
}

func TestObserveGeocode(t *testing.T) {
	m := New()
	m.ObserveGeocode("no_match")

	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeLookupsTotal.WithLabelValues("no_match")), 0)
}

func TestNew_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a, b := New(), New()
	a.ObserveGeocode("matched")
	assert.InDelta(t, 0, testutil.ToFloat64(b.GeocodeLookupsTotal.WithLabelValues("matched")), 0)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveUpsert("create", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `listings_upserts_total{op="create",outcome="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
