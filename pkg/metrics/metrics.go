package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics records outbound marketplace API calls.
type GatewayMetrics struct {
	duration *prometheus.HistogramVec
	calls    *prometheus.CounterVec
}

// NewGatewayMetrics registers the gateway metrics on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_call_duration_seconds",
		Help:    "Duration of marketplace API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"role", "endpoint"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_calls_total",
		Help: "Marketplace API calls by outcome.",
	}, []string{"role", "endpoint", "outcome"})
	reg.MustRegister(duration, calls)
	return &GatewayMetrics{duration: duration, calls: calls}
}

// Observe records one call.
func (g *GatewayMetrics) Observe(role, endpoint, outcome string, d time.Duration) {
	if g == nil || g.calls == nil {
		return
	}
	role = normalizeLabel(role)
	endpoint = normalizeLabel(endpoint)
	g.duration.WithLabelValues(role, endpoint).Observe(d.Seconds())
	g.calls.WithLabelValues(role, endpoint, normalizeLabel(outcome)).Inc()
}

// PollMetrics counts background poll ticks (order tracking, rider location push).
type PollMetrics struct {
	ticks *prometheus.CounterVec
}

// NewPollMetrics registers the poll tick counter.
func NewPollMetrics(reg prometheus.Registerer) *PollMetrics {
	if reg == nil {
		return &PollMetrics{}
	}
	ticks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "poll_ticks_total",
		Help: "Background poll ticks by loop and result.",
	}, []string{"loop", "result"})
	reg.MustRegister(ticks)
	return &PollMetrics{ticks: ticks}
}

// Tick records a tick result: ok, error or skipped.
func (p *PollMetrics) Tick(loop, result string) {
	if p == nil || p.ticks == nil {
		return
	}
	p.ticks.WithLabelValues(normalizeLabel(loop), normalizeLabel(result)).Inc()
}

// OTPMetrics counts passcode issuance and verification outcomes.
type OTPMetrics struct {
	sent     *prometheus.CounterVec
	verified *prometheus.CounterVec
}

// NewOTPMetrics registers the OTP counters.
func NewOTPMetrics(reg prometheus.Registerer) *OTPMetrics {
	if reg == nil {
		return &OTPMetrics{}
	}
	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_send_total",
		Help: "OTP send requests by outcome.",
	}, []string{"outcome"})
	verified := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_verify_total",
		Help: "OTP verify requests by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(sent, verified)
	return &OTPMetrics{sent: sent, verified: verified}
}

func (o *OTPMetrics) Sent(outcome string) {
	if o == nil || o.sent == nil {
		return
	}
	o.sent.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (o *OTPMetrics) Verified(outcome string) {
	if o == nil || o.verified == nil {
		return
	}
	o.verified.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
