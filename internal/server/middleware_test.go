package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/videocompress-api/internal/metrics"
)

func TestGuard_WrapsOnce(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := guard(rec)

	assert.Same(t, rw, guard(rw))
	assert.Same(t, rec, rw.Unwrap())
}

func TestGuard_SingleWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := guard(rec)
	assert.False(t, rw.Committed())

	_, err := rw.Write([]byte("video"))
	require.NoError(t, err)
	assert.True(t, rw.Committed())
	assert.Equal(t, http.StatusOK, rw.statusCode)

	// A late error status is dropped.
	rw.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, rw.statusCode)
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Run("before commit writes 500", func(t *testing.T) {
		h := RecoveryMiddleware(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	})

	t.Run("after commit leaves response alone", func(t *testing.T) {
		h := RecoveryMiddleware(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "video/mp4")
			_, _ = w.Write([]byte("partial"))
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "partial", rec.Body.String())
	})
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{"wildcard", []string{"*"}, "https://app.example", http.MethodPost, "https://app.example", http.StatusTeapot},
		{"listed origin", []string{"https://app.example"}, "https://app.example", http.MethodPost, "https://app.example", http.StatusTeapot},
		{"unlisted origin", []string{"https://app.example"}, "https://evil.example", http.MethodPost, "", http.StatusTeapot},
		{"preflight", []string{"*"}, "https://app.example", http.MethodOptions, "https://app.example", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/compress-video", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			CORSMiddleware(tt.allowed)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /compress-video", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	h := MetricsMiddleware(DefaultMetricsConfig())(mux)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/compress-video", "400")
	before := testutil.ToFloat64(counter)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/compress-video", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.HTTPRequestsInFlight))
}

func TestMetricsMiddleware_UnmatchedAndSkipped(t *testing.T) {
	h := MetricsMiddleware(DefaultMetricsConfig())(http.NewServeMux())

	unmatched := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before := testutil.ToFloat64(unmatched)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/1234", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(unmatched))

	health := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	before = testutil.ToFloat64(health)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, before, testutil.ToFloat64(health), "skipped paths are not recorded")
}

func TestChainMiddleware_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := ChainMiddleware(mw("a"), mw("b"), mw("c"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "c", "handler"}, order)
}
