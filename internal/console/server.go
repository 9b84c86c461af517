// Package console is the operator-facing HTTP surface. It wires the API
// facade, the form layer and the call-session registry behind a chi router.
package console

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"voice-agent-console/internal/callsession"
	"voice-agent-console/internal/logger"
	"voice-agent-console/internal/types"
)

// Backend is the part of the API facade the console calls.
type Backend interface {
	StartWebCall(ctx context.Context, driverName, loadNumber string) (types.StartWebCallResponse, error)
	TriggerCall(ctx context.Context, p types.CallTriggerPayload) (map[string]any, error)
	StartVoice(ctx context.Context, vendor string, req types.StartVoiceRequest) (types.StartVoiceResponse, error)
	ListResults(ctx context.Context, loadNumber string) ([]types.ResultRecord, error)
	ListConversations(ctx context.Context, f types.ConversationFilters, page, limit int) (types.ConversationPage, error)
	ConversationsCSVURL(f types.ConversationFilters) string
	Snapshot(ctx context.Context, view types.View) (types.MetricsSnapshot, error)
	ListAgents(ctx context.Context) ([]types.Agent, error)
	CreateAgent(ctx context.Context, in types.AgentInput) (types.Agent, error)
}

// Readiness reports whether the backend answered the last probe.
type Readiness interface {
	Ready() bool
}

type Settings struct {
	PageLimit   int
	ExportLimit int
}

type Server struct {
	backend  Backend
	sessions *callsession.Registry
	ready    Readiness
	settings Settings
	log      *logger.Logger
}

func New(backend Backend, sessions *callsession.Registry, ready Readiness, settings Settings, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	if settings.PageLimit <= 0 {
		settings.PageLimit = 20
	}
	if settings.ExportLimit <= 0 {
		settings.ExportLimit = 5000
	}
	return &Server{
		backend:  backend,
		sessions: sessions,
		ready:    ready,
		settings: settings,
		log:      log.Component("console"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(metricsMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/console", func(r chi.Router) {
		r.Post("/calls/trigger", s.triggerCall)
		r.Post("/calls/web", s.startWebCall)
		r.Post("/calls/pipecat", s.startPipecatCall)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.openSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.closeSession)
				r.Post("/join", s.joinSession)
				r.Post("/end", s.endSession)
				r.Post("/events", s.relayEvent)
			})
		})

		r.Get("/results", s.listResults)
		r.Get("/conversations", s.listConversations)
		r.Get("/conversations/export.csv", s.exportCSV)
		r.Get("/conversations/export.xlsx", s.exportXLSX)
		r.Get("/analytics", s.analytics)
		r.Get("/agents", s.listAgents)
		r.Post("/agents", s.createAgent)
	})
	return r
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "upstream unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// requestLog logs one line per request with the chi request id.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		entry := s.log.WithRequest(r)
		if id := middleware.GetReqID(r.Context()); id != "" {
			entry = entry.WithField("req_id", id)
		}
		entry = entry.WithField("status", ww.Status()).WithField("duration_ms", time.Since(start).Milliseconds())
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Info("request handled")
	})
}

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voice_console",
			Name:      "http_requests_total",
			Help:      "Console HTTP requests.",
		},
		[]string{"method", "path", "status_code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voice_console",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of console HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unknown"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestDurationSeconds.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
	})
}
