package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New(func() int { return 3 })

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/tournaments/{tournamentID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tournaments/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues("/tournaments/{tournamentID}", http.MethodGet, "418"))
	assert.Equal(t, 2.0, got)
}

func TestStatusSync(t *testing.T) {
	m := New(nil)
	m.StatusSync(4, nil)
	m.StatusSync(0, errors.New("db down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusSyncs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusSyncs.WithLabelValues("error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.statusChanged))
}

func TestHandler_ExposesWsGauge(t *testing.T) {
	m := New(func() int { return 5 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "volley_ws_clients 5"), "gauge missing from output")
}
