package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// KindOK labels successful calls.
const KindOK = "ok"

var (
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_mcp_tool_calls_total",
			Help: "Total number of tool calls by tool and outcome kind",
		},
		[]string{"tool", "kind"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "domain_mcp_tool_duration_seconds",
			Help:    "Duration of tool calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	RegistrationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_mcp_registration_fallbacks_total",
			Help: "Registration lookups that fell back to legacy whois, by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordCall updates the call counters. kind is an error kind or KindOK.
func RecordCall(tool, kind string, d time.Duration) {
	if kind == "" {
		kind = KindOK
	}
	ToolCallsTotal.WithLabelValues(tool, kind).Inc()
	ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// RecordFallback counts one fallback to the legacy registration path.
func RecordFallback(outcome string) {
	RegistrationFallbacks.WithLabelValues(outcome).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
