package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout attempt outcomes.
type CheckoutMetrics struct {
	initiated *prometheus.CounterVec
	terminal  *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	initiated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_initiated_total",
		Help: "Checkout initiations by result.",
	}, []string{"result"})
	terminal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_terminal_total",
		Help: "Checkout attempts reaching a terminal state.",
	}, []string{"state"})
	reg.MustRegister(initiated, terminal)
	return &CheckoutMetrics{
		initiated: initiated,
		terminal:  terminal,
	}
}

// IncInitiated increments the initiation counter for the given result.
func (c *CheckoutMetrics) IncInitiated(result string) {
	if c == nil || c.initiated == nil {
		return
	}
	c.initiated.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncTerminal increments the terminal-state counter.
func (c *CheckoutMetrics) IncTerminal(state string) {
	if c == nil || c.terminal == nil {
		return
	}
	c.terminal.WithLabelValues(normalizeLabel(state)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
