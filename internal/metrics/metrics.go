// Package metrics exposes Prometheus instrumentation for the ordering
// service.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cafevoz/cafevoz/pkg/order"
	"github.com/cafevoz/cafevoz/pkg/session"
)

// Session outcomes used as counter labels.
const (
	OutcomeConfirmed     = "confirmed"
	OutcomeNoOrder       = "no_order"
	OutcomeNotUnderstood = "not_understood"
	OutcomeError         = "error"
)

// Metrics holds every collector the service records.
type Metrics struct {
	registry *prometheus.Registry

	SessionsStarted   prometheus.Counter
	SessionsCompleted *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
	SessionDuration   prometheus.Histogram

	FramesForwarded  prometheus.Counter
	TranscriptDeltas prometheus.Counter

	OrdersParsed prometheus.Counter
	OrderItems   prometheus.Histogram
	OrderTotal   prometheus.Histogram

	SynthesisRequests prometheus.Counter
	SynthesisFailures prometheus.Counter

	HTTPRequests *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "cafevoz_sessions_started_total",
			Help: "Total number of voice sessions started",
		}),
		SessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cafevoz_sessions_completed_total",
			Help: "Total number of voice sessions completed, by outcome",
		}, []string{"outcome"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cafevoz_active_sessions",
			Help: "Number of voice sessions currently running (0 or 1)",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cafevoz_session_duration_seconds",
			Help:    "Duration of voice sessions from start to idle",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1s to ~2 minutes
		}),

		FramesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "cafevoz_frames_forwarded_total",
			Help: "Total number of audio frames forwarded to the transcription stream",
		}),
		TranscriptDeltas: factory.NewCounter(prometheus.CounterOpts{
			Name: "cafevoz_transcript_deltas_total",
			Help: "Total number of incremental transcript events received",
		}),

		OrdersParsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "cafevoz_orders_parsed_total",
			Help: "Total number of orders successfully parsed from transcripts",
		}),
		OrderItems: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cafevoz_order_items",
			Help:    "Number of line items per parsed order",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		OrderTotal: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cafevoz_order_total",
			Help:    "Monetary total per parsed order",
			Buckets: prometheus.ExponentialBuckets(500, 2, 10),
		}),

		SynthesisRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "cafevoz_synthesis_requests_total",
			Help: "Total number of confirmation synthesis calls",
		}),
		SynthesisFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "cafevoz_synthesis_failures_total",
			Help: "Total number of failed confirmation synthesis calls",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cafevoz_http_requests_total",
			Help: "Total number of HTTP API requests",
		}, []string{"method", "path", "status"}),
	}
}

// Observer returns a controller event callback that keeps the session
// collectors current. Register it with Controller.OnEvent.
func (m *Metrics) Observer() func(session.Event) {
	var mu sync.Mutex
	starts := make(map[string]time.Time)

	return func(ev session.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.Type {
		case session.EventState:
			switch ev.State {
			case session.StateConnecting:
				if _, seen := starts[ev.SessionID]; !seen {
					starts[ev.SessionID] = time.Now()
					m.SessionsStarted.Inc()
					m.ActiveSessions.Set(1)
				}
			case session.StateIdle:
				if started, seen := starts[ev.SessionID]; seen {
					delete(starts, ev.SessionID)
					m.ActiveSessions.Set(0)
					m.SessionDuration.Observe(time.Since(started).Seconds())
					m.SessionsCompleted.WithLabelValues(outcomeFor(ev.Status)).Inc()
				}
			}
		case session.EventTranscript:
			m.TranscriptDeltas.Inc()
		case session.EventOrder:
			m.OrdersParsed.Inc()
			m.OrderItems.Observe(float64(len(ev.Lines)))
			m.OrderTotal.Observe(order.Total(ev.Lines))
		}
	}
}

func outcomeFor(status string) string {
	switch status {
	case session.StatusConfirmed:
		return OutcomeConfirmed
	case session.StatusNoOrder:
		return OutcomeNoOrder
	case session.StatusNotUnderstood:
		return OutcomeNotUnderstood
	default:
		return OutcomeError
	}
}

// RecordHTTPRequest counts one API request.
func (m *Metrics) RecordHTTPRequest(method, path, status string) {
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
}

// RecordSynthesis counts one confirmation synthesis attempt.
func (m *Metrics) RecordSynthesis(err error) {
	m.SynthesisRequests.Inc()
	if err != nil {
		m.SynthesisFailures.Inc()
	}
}

// Hooks returns controller hooks feeding the frame and synthesis
// counters. Pass it in session.Config alongside Observer.
func (m *Metrics) Hooks() session.Hooks {
	return session.Hooks{
		FrameForwarded:  m.FramesForwarded.Inc,
		SynthesisResult: m.RecordSynthesis,
	}
}

// Handler returns the /metrics scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the scrape endpoint on its own listener until ctx is
// cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
