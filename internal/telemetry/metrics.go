package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"voice-agent-console/internal/httpclient"
)

var (
	upstreamRequestsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voice_console",
			Name:      "upstream_requests_total",
			Help:      "Total requests made to the voice backend API.",
		},
		[]string{"operation", "outcome"}, // outcome: ok, request_error, proxy_intercepted, malformed, transport
	)

	upstreamRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voice_console",
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of requests to the voice backend API.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	sessionTransitionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voice_console",
			Name:      "session_transitions_total",
			Help:      "Call-session state transitions.",
		},
		[]string{"vendor", "to"},
	)

	sessionsOpenGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "voice_console",
			Name:      "sessions_open",
			Help:      "Call-session panels currently open.",
		},
	)

	formSubmissionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voice_console",
			Name:      "form_submissions_total",
			Help:      "Form submissions by outcome.",
		},
		[]string{"form", "outcome"}, // outcome: ok, invalid, failed
	)
)

// ObserveUpstream records one facade call.
func ObserveUpstream(operation string, start time.Time, err error) {
	upstreamRequestDurationHist.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	upstreamRequestsCounter.WithLabelValues(operation, Outcome(err)).Inc()
}

// Outcome classifies an upstream error for labelling.
func Outcome(err error) string {
	var re *httpclient.RequestError
	var me *httpclient.MalformedResponseError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &re):
		return "request_error"
	case errors.Is(err, httpclient.ErrProxyIntercepted):
		return "proxy_intercepted"
	case errors.As(err, &me):
		return "malformed"
	default:
		return "transport"
	}
}

func SessionTransition(vendor, to string) {
	sessionTransitionsCounter.WithLabelValues(vendor, to).Inc()
}

func SessionOpened() { sessionsOpenGauge.Inc() }

func SessionClosed() { sessionsOpenGauge.Dec() }

func FormSubmission(form, outcome string) {
	formSubmissionsCounter.WithLabelValues(form, outcome).Inc()
}
