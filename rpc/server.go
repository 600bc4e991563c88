package rpc

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"synthd/core/events"
	"synthd/native/engine"
	"synthd/native/token"
	"synthd/observability/metrics"
)

// Server exposes the engine's operation and read-only surfaces over HTTP.
type Server struct {
	logger  *slog.Logger
	engine  *engine.Engine
	bank    *token.Bank
	sink    *events.Sink
	metrics *metrics.EngineMetrics
	limit   *RateLimit
}

// Option adjusts server construction.
type Option func(*Server)

// WithFaucet enables the development faucet backed by the reference bank.
func WithFaucet(bank *token.Bank) Option {
	return func(s *Server) { s.bank = bank }
}

// WithEventSink exposes the buffered audit events on /v1/events.
func WithEventSink(sink *events.Sink) Option {
	return func(s *Server) { s.sink = sink }
}

// WithRateLimit bounds request throughput per client.
func WithRateLimit(limit *RateLimit) Option {
	return func(s *Server) { s.limit = limit }
}

// NewServer constructs the HTTP server around the engine.
func NewServer(logger *slog.Logger, eng *engine.Engine, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:  logger,
		engine:  eng,
		metrics: metrics.Engine(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	if s.limit != nil {
		r.Use(s.limit.Middleware())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/deposit", s.handleDeposit)
		v1.Post("/deposit-and-mint", s.handleDepositAndMint)
		v1.Post("/redeem", s.handleRedeem)
		v1.Post("/redeem-and-burn", s.handleRedeemAndBurn)
		v1.Post("/mint", s.handleMint)
		v1.Post("/burn", s.handleBurn)
		v1.Post("/liquidate", s.handleLiquidate)
		v1.Post("/approve", s.handleApprove)

		v1.Get("/positions/{address}", s.handlePosition)
		v1.Get("/positions/{address}/health", s.handleHealthFactor)
		v1.Get("/params", s.handleParams)
		v1.Get("/assets", s.handleAssets)
		if s.sink != nil {
			v1.Get("/events", s.handleEvents)
		}
		if s.bank != nil {
			v1.Post("/faucet", s.handleFaucet)
		}
	})
	return r
}
