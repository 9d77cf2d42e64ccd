package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	domrerank "github.com/kailas-cloud/rerank-proxy/internal/domain/rerank"
	logpkg "github.com/kailas-cloud/rerank-proxy/internal/logger"
	"github.com/kailas-cloud/rerank-proxy/internal/metrics"
	healthuc "github.com/kailas-cloud/rerank-proxy/internal/usecase/health"
	rerankuc "github.com/kailas-cloud/rerank-proxy/internal/usecase/rerank"
)

const defaultMaxBodyBytes = 10 << 20

// ErrorResponse is the body of every proxy failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// errorKind labels a failure for logs and metrics. The HTTP answer is 500 for every kind.
type errorKind struct {
	sentinel error
	kind     string
}

var errorKinds = []errorKind{
	{domrerank.ErrInvalidRequest, "invalid_request"},
	{domrerank.ErrBackendTimeout, "backend_timeout"},
	{domrerank.ErrBackendUnavailable, "backend_unavailable"},
	{domrerank.ErrMalformedResponse, "malformed_response"},
	{domrerank.ErrInvalidIndex, "invalid_index"},
	{domrerank.ErrInvalidScore, "invalid_score"},
}

// Server is the HTTP surface of the proxy.
type Server struct {
	rerank       *rerankuc.Service
	health       *healthuc.Service
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewServer creates an HTTP API server.
func NewServer(rerank *rerankuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{
		rerank:       rerank,
		health:       health,
		logger:       logger,
		maxBodyBytes: defaultMaxBodyBytes,
	}
}

// WithMaxBodyBytes limits the size of inbound request bodies.
func (s *Server) WithMaxBodyBytes(n int64) *Server {
	if n > 0 {
		s.maxBodyBytes = n
	}
	return s
}

// Handler returns the router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := gochi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Post("/rerank", s.Rerank)
	// Platform deployments point at arbitrary base paths; every other POST is a rerank call too.
	r.Post("/*", s.Rerank)

	return r
}

// Rerank handles POST /rerank.
func (s *Server) Rerank(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		s.handleError(w, r, fmt.Errorf("read request body: %w: %w", domrerank.ErrInvalidRequest, err))
		return
	}

	out, err := s.rerank.Rerank(r.Context(), body)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if out.Forwarded() {
		logpkg.FromContext(r.Context()).Info("forwarding backend error response",
			zap.Int("status", out.Status),
			zap.Int("bytes", len(out.Raw)),
		)
		writeRaw(w, out.Status, out.Raw)
		return
	}

	writeJSON(w, out.Status, out.Response)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	kind := classifyError(err)
	metrics.RerankErrorsTotal.WithLabelValues(kind).Inc()

	log := logpkg.FromContext(r.Context())
	if kind == "internal" {
		log.Error("rerank failed", zap.String("kind", kind), zap.Error(err))
	} else {
		log.Warn("rerank failed", zap.String("kind", kind), zap.Error(err))
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "proxy error: " + err.Error()})
}

func classifyError(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw writes a backend body byte for byte.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
