package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metricsTimer struct {
	mu                   sync.Mutex
	previousAttestation  time.Time
	previousPartialSign  time.Time
	previousLedgerSubmit time.Time
}

func newMetricsTimer() *metricsTimer {
	now := time.Now()
	return &metricsTimer{
		previousAttestation:  now,
		previousPartialSign:  now,
		previousLedgerSubmit: now,
	}
}

func (mt *metricsTimer) SetPreviousAttestation(t time.Time) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.previousAttestation = t
}

func (mt *metricsTimer) SetPreviousPartialSign(t time.Time) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.previousPartialSign = t
}

func (mt *metricsTimer) SetPreviousLedgerSubmit(t time.Time) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.previousLedgerSubmit = t
}

func (mt *metricsTimer) UpdatePrometheusMetrics() {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	SecondsSinceLastAttestation.Set(time.Since(mt.previousAttestation).Seconds())
	SecondsSinceLastPartialSign.Set(time.Since(mt.previousPartialSign).Seconds())
	SecondsSinceLastLedgerSubmit.Set(time.Since(mt.previousLedgerSubmit).Seconds())
}

// StartMetrics refreshes the "seconds since" gauges until ctx is done.
func StartMetrics(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			MetricsTimeKeeper.UpdatePrometheusMetrics()
		}
	}
}

var (
	MetricsTimeKeeper = newMetricsTimer()

	// Coordinator
	TotalAttestationRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_total_attestation_requests",
		Help: "Total attestation requests started by the coordinator",
	})
	TotalAttestations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_total_attestations",
		Help: "Total threshold signatures produced and verified",
	})
	TotalInsufficientQuorum = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_error_total_insufficient_quorum",
		Help: "Total times fewer than threshold agreeing participants responded",
	})
	TotalInvalidPartialSignatures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_error_total_invalid_partial_signatures",
			Help: "Total partial signatures dropped because they failed verification",
		},
		[]string{"participant"},
	)
	TotalInvalidCombinedSignatures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_error_total_invalid_combined_signatures",
		Help: "Total combined signatures that failed verification against the group key",
	})
	TotalDisagreements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_total_value_disagreements",
		Help: "Total attestations where participants reported different values",
	})
	TotalParticipantErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_error_total_participant_requests",
			Help: "Total failed requests to a participant (transport or no decision)",
		},
		[]string{"participant"},
	)
	TotalLateResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_total_late_responses",
			Help: "Total participant responses discarded because quorum was already reached",
		},
		[]string{"participant"},
	)
	ParticipantLatency = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "oracle_participant_request_seconds",
			Help:       "Participant extract request latency in seconds",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"participant"},
	)
	QuorumLag = promauto.NewSummary(prometheus.SummaryOpts{
		Name:       "oracle_quorum_lag_seconds",
		Help:       "Time from fan-out until threshold agreeing partial signatures were collected",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	})
	ParticipantHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oracle_participant_healthy",
			Help: "1 if the participant passed its last health check",
		},
		[]string{"participant"},
	)
	ParticipantRTT = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oracle_participant_rtt_milliseconds",
			Help: "Round trip time of the last health check",
		},
		[]string{"participant"},
	)

	// Participant
	TotalExtractRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_participant_total_extract_requests",
		Help: "Total extract requests served by this participant",
	})
	TotalNoDecision = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_participant_total_no_decision",
		Help: "Total extract requests where no rate decision was found",
	})
	TotalPartialSignatures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_participant_total_partial_signatures",
		Help: "Total partial signatures produced",
	})
	TotalPartialSignErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_participant_error_total_partial_sign",
		Help: "Total partial signing failures, including self-check failures",
	})
	ExtractLatency = promauto.NewSummary(prometheus.SummaryOpts{
		Name:       "oracle_participant_extract_seconds",
		Help:       "Time spent resolving a rate decision from input text",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	})

	// Ledger
	TotalLedgerSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_total_ledger_submissions",
		Help: "Total attestations submitted to the ledger",
	})
	TotalLedgerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_error_total_ledger_submissions",
		Help: "Total failed ledger submissions after retries",
	})
	TotalLedgerRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_total_ledger_retries",
		Help: "Total ledger request retries, including endpoint rotation",
	})

	SecondsSinceLastAttestation = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_seconds_since_last_attestation",
		Help: "Seconds since the coordinator last produced a threshold signature",
	})
	SecondsSinceLastPartialSign = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_seconds_since_last_partial_sign",
		Help: "Seconds since this participant last produced a partial signature",
	})
	SecondsSinceLastLedgerSubmit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_seconds_since_last_ledger_submit",
		Help: "Seconds since the last successful ledger submission",
	})
)
