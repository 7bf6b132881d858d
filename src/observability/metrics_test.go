package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	RequestsTotal.WithLabelValues("GET", "/test", "2xx").Add(0)
	RequestDuration.WithLabelValues("GET", "/test").Observe(0)
	TransformsTotal.WithLabelValues("imaging", "webp", "ok").Add(0)
	TransformDuration.WithLabelValues("imaging", "webp").Observe(0)
	BytesOut.WithLabelValues("webp").Add(0)
	SourceFetchFailures.WithLabelValues("local").Add(0)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	expected := map[string]bool{
		"imagekit_requests_total":              false,
		"imagekit_request_duration_seconds":    false,
		"imagekit_transforms_total":            false,
		"imagekit_transform_duration_seconds":  false,
		"imagekit_transform_bytes_total":       false,
		"imagekit_source_fetch_failures_total": false,
		"imagekit_build_images_total":          false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "metric %s not registered", name)
	}
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		status int
		class  string
	}{
		{"ok", http.StatusOK, "2xx"},
		{"not found", http.StatusNotFound, "4xx"},
		{"server error", http.StatusInternalServerError, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route := "/mw-" + tt.class
			before := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", route, tt.class))

			h := Middleware(route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("body"))
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, route, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "body", rec.Body.String())
			assert.Equal(t, before+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", route, tt.class)))
		})
	}
}

func TestStatusWriterDefaultsToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	n, err := sw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusOK, sw.status)
	assert.Equal(t, 5, sw.bytes)

	// later WriteHeader calls do not change the captured status
	sw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusOK, sw.status)
}
