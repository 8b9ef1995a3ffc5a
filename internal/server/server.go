// Package server exposes the HTTP surface: webhook intake, job triggers,
// health, metrics.
package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chainstage/internal/model"
)

// Ingestor accepts webhook deliveries.
type Ingestor interface {
	Ingest(ctx context.Context, path string, body []byte, headers http.Header, url, method string) model.Receipt
}

// Refresher runs the incremental transform for one stream.
type Refresher interface {
	Refresh(ctx context.Context, stream string) (model.RefreshResult, error)
}

// Discoverer runs the contract discovery job.
type Discoverer interface {
	Run(ctx context.Context) (model.DiscoveryResult, error)
}

// Validator runs metadata validation over pending contracts.
type Validator interface {
	Run(ctx context.Context, limit int) (model.ValidationResult, error)
}

// Resolver runs reserve resolution over pool contracts.
type Resolver interface {
	Run(ctx context.Context, limit int) (model.ReserveResult, error)
}

// Services bundles the job implementations behind the handlers.
type Services struct {
	Ingestor  Ingestor
	Refresher Refresher
	Discovery Discoverer
	Validator Validator
	Resolver  Resolver
}

// Config carries the handler knobs.
type Config struct {
	AuthToken     string
	ValidateLimit int
	ReserveLimit  int
}

// Server routes HTTP traffic to the ingestion and job services.
type Server struct {
	svc    Services
	cfg    Config
	logger *zap.Logger
}

func New(svc Services, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ValidateLimit <= 0 {
		cfg.ValidateLimit = 50
	}
	if cfg.ReserveLimit <= 0 {
		cfg.ReserveLimit = 20
	}
	return &Server{svc: svc, cfg: cfg, logger: logger}
}

// Handler builds the route table. The webhook endpoint is never auth-gated;
// job endpoints are gated only when a token is configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("POST /webhook/{path...}", s.handleWebhook)

	mux.HandleFunc("POST /jobs/refresh/{stream}", s.requireAuth(s.handleRefresh))
	mux.HandleFunc("GET /jobs/refresh/{stream}", s.requireAuth(s.handleRefresh))
	mux.HandleFunc("POST /jobs/discover", s.requireAuth(s.handleDiscover))
	mux.HandleFunc("POST /jobs/validate", s.requireAuth(s.handleValidate))
	mux.HandleFunc("POST /jobs/resolve-reserves", s.requireAuth(s.handleResolveReserves))

	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return instrument(mux)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
