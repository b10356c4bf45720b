package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCheckoutMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.IncInitiated("ok")
	m.IncInitiated("OK")
	m.IncInitiated("auth_required")
	m.IncTerminal("Settled")

	if got := testutil.ToFloat64(m.initiated.WithLabelValues("ok")); got != 2 {
		t.Fatalf("expected 2 ok initiations got %v", got)
	}
	if got := testutil.ToFloat64(m.initiated.WithLabelValues("auth_required")); got != 1 {
		t.Fatalf("expected 1 auth_required initiation got %v", got)
	}
	if got := testutil.ToFloat64(m.terminal.WithLabelValues("settled")); got != 1 {
		t.Fatalf("expected 1 settled terminal got %v", got)
	}
}

func TestCheckoutMetricsNilSafe(t *testing.T) {
	var m *CheckoutMetrics
	m.IncInitiated("ok")
	m.IncTerminal("settled")

	m = NewCheckoutMetrics(nil)
	m.IncInitiated("ok")
	m.IncTerminal("settled")
}

func TestNormalizeLabel(t *testing.T) {
	if got := normalizeLabel("  Settled "); got != "settled" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := normalizeLabel(""); got != "unknown" {
		t.Fatalf("empty labels map to unknown, got %q", got)
	}
}
