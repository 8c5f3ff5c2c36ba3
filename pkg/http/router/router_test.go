package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/justinas/alice"
	"github.com/lintang-b-s/campusnav/pkg/http/usecases"
	"github.com/lintang-b-s/campusnav/pkg/metrics"
	"github.com/lintang-b-s/campusnav/pkg/panel"
	"github.com/lintang-b-s/campusnav/pkg/polyline"
	"github.com/lintang-b-s/campusnav/pkg/routeprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestHandler(t *testing.T, rateLimit RateLimit) http.Handler {
	t.Helper()
	estimator, err := metrics.NewEstimator(metrics.DefaultSpeedProfile())
	require.NoError(t, err)
	decoder, err := polyline.NewCachedDecoder(8)
	require.NoError(t, err)

	service := usecases.NewNavigationService(zap.NewNop(), routeprovider.NewStatic(""), decoder, estimator,
		usecases.NavigationConfig{
			Panel:      panel.ConfigForWindow(800, panel.DefaultMinRatio, panel.DefaultMaxRatio),
			FixTimeout: time.Second,
		})
	t.Cleanup(func() { service.Close(context.Background()) })

	return NewAPI(zap.NewNop()).Handler(zap.NewNop(), rateLimit, service)
}

func TestHeartbeat(t *testing.T) {
	h := newTestHandler(t, RateLimit{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ".", rec.Body.String())
}

func TestRequestID(t *testing.T) {
	h := newTestHandler(t, RateLimit{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/missing/snapshot", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/missing/snapshot", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-Id"))
}

func TestEnforceJSON(t *testing.T) {
	h := newTestHandler(t, RateLimit{})

	testCases := []struct {
		name        string
		contentType string
		want        int
	}{
		{name: "json", contentType: "application/json", want: http.StatusCreated},
		{name: "json with charset", contentType: "application/json; charset=utf-8", want: http.StatusCreated},
		{name: "plain text", contentType: "text/plain", want: http.StatusUnsupportedMediaType},
		{name: "missing", contentType: "", want: http.StatusUnsupportedMediaType},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"name":"Library"}`))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(t, RateLimit{Enabled: true, RPS: 0.001, Burst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/missing/snapshot", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/missing/snapshot", nil)
	req.Header.Set("X-Real-IP", "10.0.0.7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other clients have their own bucket")
}

func TestPanicIsRecoveredAndLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := alice.New(Labels, Logger(zap.New(core)), middleware.Recoverer).
		ThenFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	panics := logs.FilterMessage("panic while serving request").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "boom", panics[0].ContextMap()["panic"])
	assert.NotEmpty(t, panics[0].ContextMap()["request_id"])
}

func TestRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := alice.New(Labels, Logger(zap.New(core))).
		ThenFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			w.Write([]byte("tea"))
		})

	req := httptest.NewRequest(http.MethodGet, "/brew", nil)
	req.Header.Set("X-Request-Id", "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, int64(3), fields["bytes"])
	assert.Equal(t, "/brew", fields["path"])
	assert.Equal(t, "req-1", fields["request_id"])
}
