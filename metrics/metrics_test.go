package metrics

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestRouter(t *testing.T, m *HTTPMetrics) http.Handler {
	t.Helper()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Route("/users", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("[]")) })
		r.Post("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusCreated) })
	})
	return r
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	router := newTestRouter(t, m)
	for _, method := range []string{http.MethodGet, http.MethodGet, http.MethodPost, http.MethodPatch} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, "/users", nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	// GET 200, POST 201, PATCH 405 and the unmatched GET 404.
	assert.Equal(t, 4, testutil.CollectAndCount(m.requests))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inflight))

	total := sumCounter(t, reg, "user_registry_http_requests_total")
	assert.Equal(t, float64(5), total)
}

func TestHTTPMetrics_UnmatchedRouteLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	newTestRouter(t, m).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "unmatched", "404")))
}

func TestNewHTTPMetrics_RegistersTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	second, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	second.requests.WithLabelValues(http.MethodGet, "/users", "200").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(first.requests.WithLabelValues(http.MethodGet, "/users", "200")))
}

func TestRegisterDBStats(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(3)

	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterDBStats(reg, "primary", db))

	expected := `
# HELP go_sql_max_open_connections Maximum number of open connections to the database.
# TYPE go_sql_max_open_connections gauge
go_sql_max_open_connections{db_name="primary"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "go_sql_max_open_connections"))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	newTestRouter(t, m).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users", nil))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_registry_http_requests_total")
	assert.Contains(t, rec.Body.String(), "user_registry_http_request_duration_seconds")
}

// sumCounter adds up every series of the named counter family.
func sumCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}
