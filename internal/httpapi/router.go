// Package httpapi exposes the Conversation Service over HTTP.
package httpapi

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"paidchat/internal/chatservice"
	"paidchat/internal/domain"
	"paidchat/internal/observability"
)

// Backend is the Conversation Service as seen by the handlers.
type Backend interface {
	ProcessMessage(ctx context.Context, in chatservice.Incoming) (*chatservice.Result, error)
	History(ctx context.Context, agentID string) ([]*domain.StoredMessage, error)
	CurrentCost(ctx context.Context, agentID string) (float64, error)
	Agents(ctx context.Context) ([]*domain.Agent, error)
	CreateAgent(ctx context.Context, req chatservice.NewAgent) (*domain.Agent, error)
	AgentStats(ctx context.Context, agentID string) (*domain.AgentStats, error)
}

// Options for creating the router.
type Options struct {
	Backend Backend
	// Ready reports backing store health for /health. Optional.
	Ready func(ctx context.Context) error
	// RequestTimeout bounds every request; defaults to 30s.
	RequestTimeout time.Duration
	Logger         *log.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	h := &handlers{backend: opts.Backend, ready: opts.Ready, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	r.Get("/health", h.health)
	r.Handle("/metrics", observability.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Use(middleware.AllowContentType("application/json"))

		r.Post("/chat", h.sendMessage)
		r.Get("/chat/messages", h.history)
		r.Get("/chat/cost", h.cost)
		r.Get("/agents", h.listAgents)
		r.Post("/agents", h.createAgent)
		r.Get("/agents/{id}/stats", h.agentStats)
	})
	return r
}

// instrument records request count and latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = r.Method + " " + rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.RecordHTTPRequest(route, strconv.Itoa(status), time.Since(start).Seconds())
	})
}
