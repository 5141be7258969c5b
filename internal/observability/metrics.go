package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	clockTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crgctl",
			Subsystem: "clock",
			Name:      "ticks_total",
			Help:      "Clock edges driven per domain.",
		},
		[]string{"system", "domain"},
	)
	domainReset = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "crgctl",
			Subsystem: "clock",
			Name:      "domain_reset",
			Help:      "1 while the domain is held in reset.",
		},
		[]string{"system", "domain"},
	)
	sequencerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "crgctl",
			Subsystem: "sequencer",
			Name:      "state",
			Help:      "Current sequencer state (0=ARMED .. 4=RELEASED).",
		},
		[]string{"system"},
	)
	sequencerCountdown = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "crgctl",
			Subsystem: "sequencer",
			Name:      "countdown",
			Help:      "Current countdown value per stage.",
		},
		[]string{"system", "stage"},
	)
	sequencerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crgctl",
			Subsystem: "sequencer",
			Name:      "transitions_total",
			Help:      "Sequencer state transitions.",
		},
		[]string{"system", "from", "to"},
	)
	externalResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crgctl",
			Subsystem: "sequencer",
			Name:      "external_resets_total",
			Help:      "External reset assertions.",
		},
		[]string{"system"},
	)
	releaseTicks = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crgctl",
			Subsystem: "sequencer",
			Name:      "release_primary_ticks",
			Help:      "Primary-domain ticks from arm to release.",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 10),
		},
		[]string{"system"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crgctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Status server requests by sequencer state at response time.",
		},
		[]string{"system", "method", "path", "state", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crgctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"system", "method", "path"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			clockTicks,
			domainReset,
			sequencerState,
			sequencerCountdown,
			sequencerTransitions,
			externalResets,
			releaseTicks,
			httpRequests,
			httpDuration,
		)
	})
}

// ClockTicks returns the tick counter for one domain. Callers on a tick path
// should resolve it once and keep the handle.
func ClockTicks(system, domain string) prometheus.Counter {
	RegisterMetrics()
	return clockTicks.WithLabelValues(system, domain)
}

func SetDomainReset(system, domain string, asserted bool) {
	RegisterMetrics()
	v := 0.0
	if asserted {
		v = 1
	}
	domainReset.WithLabelValues(system, domain).Set(v)
}

func SetSequencerState(system string, state int) {
	RegisterMetrics()
	sequencerState.WithLabelValues(system).Set(float64(state))
}

func SetCountdowns(system string, stage1, stage2 uint32) {
	RegisterMetrics()
	sequencerCountdown.WithLabelValues(system, "1").Set(float64(stage1))
	sequencerCountdown.WithLabelValues(system, "2").Set(float64(stage2))
}

func RecordTransition(system, from, to string) {
	RegisterMetrics()
	sequencerTransitions.WithLabelValues(system, from, to).Inc()
}

func RecordExternalReset(system string) {
	RegisterMetrics()
	externalResets.WithLabelValues(system).Inc()
}

func RecordRelease(system string, primaryTicks uint64) {
	RegisterMetrics()
	releaseTicks.WithLabelValues(system).Observe(float64(primaryTicks))
}

// RecordHTTPRequest counts one status-server request. state is the sequencer
// state the request was answered in.
func RecordHTTPRequest(system, method, path, state string, status int, elapsed time.Duration) {
	RegisterMetrics()
	httpRequests.WithLabelValues(system, method, path, state, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(system, method, path).Observe(elapsed.Seconds())
}
