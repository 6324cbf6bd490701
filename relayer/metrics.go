package relayer

import (
	"fmt"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromMetrics is safe to use through a nil pointer, which records nothing.
type PromMetrics struct {
	Registry         *prometheus.Registry
	StageTransitions *prometheus.CounterVec
	Failures         *prometheus.CounterVec
	InFlight         *prometheus.GaugeVec
	AttestationPolls *prometheus.CounterVec
	Evicted          prometheus.Counter
}

func NewPromMetrics() *PromMetrics {
	reg := prometheus.NewRegistry()

	// labels
	var (
		transitionLabels = []string{"src_chain", "dest_chain", "stage"}
		failureLabels    = []string{"src_chain", "dest_chain", "reason"}
		routeLabels      = []string{"src_chain", "dest_chain"}
		pollLabels       = []string{"outcome"}
	)

	m := &PromMetrics{
		Registry: reg,
		StageTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cctp_orchestrator_stage_transitions_total",
			Help: "Transfers entering each stage: approve, burn, awaiting_attestation, mint, done, failed",
		}, transitionLabels),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cctp_orchestrator_failures_total",
			Help: "Transfers that entered the failed stage, by error code",
		}, failureLabels),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cctp_orchestrator_transfers_in_flight",
			Help: "Number of transfers that are neither done nor failed",
		}, routeLabels),
		AttestationPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cctp_orchestrator_attestation_polls_total",
			Help: "Attestation service lookups by outcome: pending, complete, error",
		}, pollLabels),
		Evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cctp_orchestrator_evicted_total",
			Help: "Terminal transfers removed by the retention sweep",
		}),
	}

	reg.MustRegister(m.StageTransitions)
	reg.MustRegister(m.Failures)
	reg.MustRegister(m.InFlight)
	reg.MustRegister(m.AttestationPolls)
	reg.MustRegister(m.Evicted)

	return m
}

// InitPromMetrics creates the collectors and exposes them on address:port/metrics.
func InitPromMetrics(address string, port int16, logger log.Logger) *PromMetrics {
	m := NewPromMetrics()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}))
		server := &http.Server{
			Addr:        fmt.Sprintf("%s:%d", address, port),
			Handler:     mux,
			ReadTimeout: 3 * time.Second,
		}
		if err := server.ListenAndServe(); err != nil {
			logger.Error("Metrics server stopped", "error", err)
		}
	}()

	return m
}

func (m *PromMetrics) IncTransition(srcChain, destChain, stage string) {
	if m == nil {
		return
	}
	m.StageTransitions.WithLabelValues(srcChain, destChain, stage).Inc()
}

func (m *PromMetrics) IncFailure(srcChain, destChain, reason string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(srcChain, destChain, reason).Inc()
}

func (m *PromMetrics) IncInFlight(srcChain, destChain string) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(srcChain, destChain).Inc()
}

func (m *PromMetrics) DecInFlight(srcChain, destChain string) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(srcChain, destChain).Dec()
}

func (m *PromMetrics) IncAttestationPoll(outcome string) {
	if m == nil {
		return
	}
	m.AttestationPolls.WithLabelValues(outcome).Inc()
}

func (m *PromMetrics) AddEvicted(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Evicted.Add(float64(n))
}
