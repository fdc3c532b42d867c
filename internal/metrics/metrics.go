// Package metrics exposes Prometheus collectors for both servers.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codejudge"

// NewRegistry returns a registry preloaded with process and Go runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return reg
}

// Handler serves reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) gin.HandlerFunc {
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return gin.WrapH(h)
}

// SandboxMetrics records compile-server pipeline outcomes.
type SandboxMetrics struct {
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewSandboxMetrics registers the sandbox collectors on reg.
func NewSandboxMetrics(reg prometheus.Registerer) *SandboxMetrics {
	m := &SandboxMetrics{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "results_total",
			Help:      "Compile-and-run attempts by result status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "duration_seconds",
			Help:      "Time spent per pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage"}),
	}
	reg.MustRegister(m.results, m.duration)
	return m
}

func (m *SandboxMetrics) ObserveStage(_ context.Context, stage string, elapsed time.Duration) {
	m.duration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *SandboxMetrics) ObserveResult(_ context.Context, status string) {
	m.results.WithLabelValues(status).Inc()
}

// JudgeMetrics records oj-server dispatch and fleet state.
type JudgeMetrics struct {
	requests       *prometheus.CounterVec
	machineLoad    *prometheus.GaugeVec
	machinesOnline prometheus.Gauge
	offlineTotal   *prometheus.CounterVec
}

// NewJudgeMetrics registers the judge controller collectors on reg.
func NewJudgeMetrics(reg prometheus.Registerer) *JudgeMetrics {
	m := &JudgeMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "judge",
			Name:      "requests_total",
			Help:      "Judge dispatch attempts by outcome.",
		}, []string{"outcome"}),
		machineLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "machine_load",
			Help:      "In-flight requests per compile server.",
		}, []string{"machine"}),
		machinesOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "machines_online",
			Help:      "Compile servers currently eligible for selection.",
		}),
		offlineTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "machine_offline_total",
			Help:      "Times a compile server was quarantined.",
		}, []string{"machine"}),
	}
	reg.MustRegister(m.requests, m.machineLoad, m.machinesOnline, m.offlineTotal)
	return m
}

func (m *JudgeMetrics) ObserveRequest(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *JudgeMetrics) SetMachineLoad(machine string, load uint64) {
	m.machineLoad.WithLabelValues(machine).Set(float64(load))
}

func (m *JudgeMetrics) SetMachinesOnline(n int) {
	m.machinesOnline.Set(float64(n))
}

func (m *JudgeMetrics) MachineOffline(machine string) {
	m.offlineTotal.WithLabelValues(machine).Inc()
	m.machineLoad.WithLabelValues(machine).Set(0)
}

// Healthz answers liveness checks.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
