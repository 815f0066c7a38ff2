package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"hydroponics_controller/internal/metrics"
	"hydroponics_controller/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRequestLatency_ObservesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(&service.Service{}, nil)
	r.Use(h.requestLatency)
	r.GET("/api/v1/devices/:kind", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.CollectAndCount(metrics.HttpRequestLatencySeconds)

	for _, p := range []string{"/api/v1/devices/pump", "/api/v1/devices/light", "/nowhere"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
	}

	// Two label sets at most: the route template and "unmatched".
	after := testutil.CollectAndCount(metrics.HttpRequestLatencySeconds)
	if after-before > 2 {
		t.Fatalf("expected at most 2 new series, got %d", after-before)
	}
	if after == 0 {
		t.Fatalf("no latency series recorded")
	}
}
