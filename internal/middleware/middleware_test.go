package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(mw ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(mw...)
	r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Delete("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return r
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	r := newTestRouter(m.Handler)

	serve(r, http.MethodGet, "/products/a")
	serve(r, http.MethodGet, "/products/b")
	serve(r, http.MethodDelete, "/products/a")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/products/{id}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("DELETE", "/products/{id}", "500")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestMetrics_UnmatchedRoute(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := newTestRouter(m.Handler)

	rec := serve(r, http.MethodGet, "/nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
}

func TestNewMetrics_PerRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}

func TestLogger_WritesOneLinePerRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := newTestRouter(chimiddleware.RequestID, Logger(logger))

	serve(r, http.MethodGet, "/products/42")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request completed", line["msg"])
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "/products/42", line["path"])
	assert.Equal(t, "/products/{id}", line["route"])
	assert.EqualValues(t, 200, line["status"])
	assert.EqualValues(t, 2, line["bytes"])
	assert.NotEmpty(t, line["requestID"])
}

func TestLogger_ServerErrorsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := newTestRouter(Logger(logger))

	serve(r, http.MethodDelete, "/products/42")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.EqualValues(t, 500, line["status"])
}
