package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRequestLogger_LevelsAndRouteLabels(t *testing.T) {
	gin.SetMode(gin.ReleaseMode)
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.WarnLevel)

	var label string
	r := gin.New()
	r.Use(RequestLogger(logger), RequestMetricsMiddleware())
	r.GET("/healthz", func(c *gin.Context) {
		label = routeLabel(c)
		c.Status(http.StatusOK)
	})
	r.NoRoute(func(c *gin.Context) {
		label = routeLabel(c)
		c.Status(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if label != "/healthz" {
		t.Fatalf("label=%q", label)
	}
	if buf.Len() != 0 {
		t.Fatalf("successful request logged above debug: %q", buf.String())
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/frames/123", nil))
	if label != "unmatched" {
		t.Fatalf("label=%q", label)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected one record, got %q: %v", buf.String(), err)
	}
	if rec["level"] != "warn" || rec["path"] != "/frames/123" || rec["status"] != float64(404) {
		t.Fatalf("record=%v", rec)
	}
}
