package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSandboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSandboxMetrics(reg)

	m.ObserveResult(context.Background(), "ok")
	m.ObserveResult(context.Background(), "ok")
	m.ObserveResult(context.Background(), "time_limit")
	m.ObserveStage(context.Background(), "compile", 300*time.Millisecond)

	if got := testutil.ToFloat64(m.results.WithLabelValues("ok")); got != 2 {
		t.Fatalf("ok results = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.results.WithLabelValues("time_limit")); got != 1 {
		t.Fatalf("time_limit results = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Fatalf("expected one stage series, got %d", n)
	}
}

func TestJudgeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJudgeMetrics(reg)

	m.ObserveRequest("judged")
	m.SetMachineLoad("127.0.0.1:8081", 3)
	m.SetMachinesOnline(2)
	m.MachineOffline("127.0.0.1:8081")

	if got := testutil.ToFloat64(m.requests.WithLabelValues("judged")); got != 1 {
		t.Fatalf("judged = %v", got)
	}
	if got := testutil.ToFloat64(m.machineLoad.WithLabelValues("127.0.0.1:8081")); got != 0 {
		t.Fatalf("offline machine load = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.machinesOnline); got != 2 {
		t.Fatalf("online = %v", got)
	}
	if got := testutil.ToFloat64(m.offlineTotal.WithLabelValues("127.0.0.1:8081")); got != 1 {
		t.Fatalf("offline total = %v", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := NewRegistry()
	NewSandboxMetrics(reg).ObserveResult(context.Background(), "ok")

	router := gin.New()
	router.GET("/metrics", Handler(reg))
	router.GET("/healthz", Healthz)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `codejudge_sandbox_results_total{status="ok"} 1`) {
		t.Fatalf("metric missing from body:\n%s", w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", w.Code)
	}
}
