package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/nimctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("nimd", "GET", "/health", 200, 12*time.Millisecond)
	RecordConnection("tcp")
	SessionStarted()
	RecordMove("accepted")
	SessionEnded("win", 3*time.Second)
}

func TestFailFramesCountedByCode(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(failFrames.WithLabelValues("32"))
	RecordFailFrame(32)
	RecordFailFrame(32)
	if got := testutil.ToFloat64(failFrames.WithLabelValues("32")); got != before+2 {
		t.Fatalf("expected %v fail frames, got %v", before+2, got)
	}
}

func TestActiveSessionsGauge(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(activeSessions)
	SessionStarted()
	if got := testutil.ToFloat64(activeSessions); got != before+1 {
		t.Fatalf("expected gauge %v, got %v", before+1, got)
	}
	SessionEnded("forfeit", time.Second)
	if got := testutil.ToFloat64(activeSessions); got != before {
		t.Fatalf("expected gauge back at %v, got %v", before, got)
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(log.Logger), RequestMetricsMiddleware("test"))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK || rec.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected request id header, got %d %q", rec.Code, rec.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get(RequestIDHeader) != "abc" {
		t.Fatalf("incoming request id not kept: %q", rec.Header().Get(RequestIDHeader))
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("test", "GET", "unmatched", "404")); got < 1 {
		t.Fatalf("unmatched route not counted")
	}
}
