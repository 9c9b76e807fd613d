package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestGatewayMetricsExportsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGatewayMetrics(reg)
	m.Observe("customer", "getCart", "ok", 120*time.Millisecond)
	m.Observe("customer", "getCart", "error", 30*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "gateway_calls_total", map[string]string{"endpoint": "getCart", "outcome": "ok"}); err != nil {
		t.Fatalf("fetch ok: %v", err)
	} else if got != 1 {
		t.Fatalf("expected ok=1, got %f", got)
	}

	mf := findMetricFamily(mfs, "gateway_call_duration_seconds")
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatalf("expected one histogram series")
	}
	if got := mf.GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
		t.Fatalf("expected 2 samples, got %d", got)
	}
}

func TestPollAndOTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	poll := NewPollMetrics(reg)
	otp := NewOTPMetrics(reg)

	poll.Tick("tracking", "skipped")
	poll.Tick("tracking", "skipped")
	otp.Sent("")
	otp.Verified("expired")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, _ := fetchCounterValue(mfs, "poll_ticks_total", map[string]string{"loop": "tracking", "result": "skipped"}); got != 2 {
		t.Fatalf("expected skipped=2, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "otp_send_total", map[string]string{"outcome": "unknown"}); got != 1 {
		t.Fatalf("expected empty outcome normalized to unknown, got %f", got)
	}
	if got, _ := fetchCounterValue(mfs, "otp_verify_total", map[string]string{"outcome": "expired"}); got != 1 {
		t.Fatalf("expected expired=1, got %f", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewGatewayMetrics(nil).Observe("a", "b", "c", time.Second)
	NewPollMetrics(nil).Tick("a", "b")
	var m *OTPMetrics
	m.Sent("ok")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
