package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meridian-gw/meridian/pkg/telemetry"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for k, v := range labels {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == k && lp.GetValue() == v {
						found = true
						break
					}
				}
				if !found {
					continue metric
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func TestCollectorRecordsAttempts(t *testing.T) {
	c := NewCollector(nil)

	c.RecordAttempt(telemetry.Attempt{
		Provider:   "openai",
		Model:      "gpt-4o",
		Outcome:    "success",
		Latency:    250 * time.Millisecond,
		TokensUsed: 128,
	})
	c.RecordAttempt(telemetry.Attempt{
		Provider: "openai",
		Model:    "gpt-4o",
		Outcome:  "retryable",
		Latency:  time.Second,
	})

	labels := map[string]string{"provider": "openai", "model": "gpt-4o"}

	if got := gatherValue(t, c.Registry(), "meridian_gateway_attempts_total",
		map[string]string{"provider": "openai", "outcome": "success"}); got != 1 {
		t.Errorf("success attempts = %v, want 1", got)
	}
	if got := gatherValue(t, c.Registry(), "meridian_gateway_attempts_total",
		map[string]string{"provider": "openai", "outcome": "retryable"}); got != 1 {
		t.Errorf("retryable attempts = %v, want 1", got)
	}
	if got := gatherValue(t, c.Registry(), "meridian_gateway_tokens_total", labels); got != 128 {
		t.Errorf("tokens = %v, want 128", got)
	}
	if got := gatherValue(t, c.Registry(), "meridian_gateway_attempt_latency_seconds", labels); got != 2 {
		t.Errorf("latency samples = %v, want 2", got)
	}
}

func TestCollectorTracksBreakerState(t *testing.T) {
	c := NewCollector(nil)

	c.RecordTransition(telemetry.Transition{Provider: "openai", From: "closed", To: "open"})
	if got := gatherValue(t, c.Registry(), "meridian_gateway_breaker_state",
		map[string]string{"provider": "openai"}); got != 2 {
		t.Errorf("state after open = %v, want 2", got)
	}

	c.RecordTransition(telemetry.Transition{Provider: "openai", From: "open", To: "half_open"})
	if got := gatherValue(t, c.Registry(), "meridian_gateway_breaker_state",
		map[string]string{"provider": "openai"}); got != 1 {
		t.Errorf("state after half_open = %v, want 1", got)
	}

	c.RecordTransition(telemetry.Transition{Provider: "openai", From: "half_open", To: "closed"})
	if got := gatherValue(t, c.Registry(), "meridian_gateway_breaker_state",
		map[string]string{"provider": "openai"}); got != 0 {
		t.Errorf("state after closed = %v, want 0", got)
	}

	if got := gatherValue(t, c.Registry(), "meridian_gateway_breaker_transitions_total",
		map[string]string{"provider": "openai", "to": "open"}); got != 1 {
		t.Errorf("transitions to open = %v, want 1", got)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	c := NewCollector(nil)
	c.RecordAttempt(telemetry.Attempt{
		Provider: "anthropic",
		Model:    "claude-sonnet",
		Outcome:  "success",
		Latency:  100 * time.Millisecond,
	})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !strings.Contains(string(body), "meridian_gateway_attempts_total") {
		t.Error("exposition output missing attempt counter")
	}
}
