package rerank

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	domrerank "github.com/kailas-cloud/rerank-proxy/internal/domain/rerank"
	logpkg "github.com/kailas-cloud/rerank-proxy/internal/logger"
	"github.com/kailas-cloud/rerank-proxy/internal/metrics"
)

// Outcome is what the proxy writes back: either a normalized response or a forwarded backend reply.
type Outcome struct {
	Status   int
	Response *domrerank.Response
	Raw      []byte
	Shape    domrerank.Shape
}

// Forwarded reports whether the backend reply is passed through untranslated.
func (o Outcome) Forwarded() bool { return o.Response == nil }

// Service runs the rerank pipeline. Stateless and safe for concurrent use.
type Service struct {
	backend Backend
}

// New creates a Service.
func New(backend Backend) *Service {
	return &Service{backend: backend}
}

// Rerank translates a platform request body, calls the backend and translates the reply back.
// A non-200 backend reply is returned as-is for the caller to forward.
func (s *Service) Rerank(ctx context.Context, body []byte) (Outcome, error) {
	log := logpkg.FromContext(ctx)

	in, err := domrerank.ParseInbound(body)
	if err != nil {
		return Outcome{}, err
	}
	req := domrerank.TranslateRequest(in)

	log.Debug("rerank request translated",
		zap.ByteString("inbound", body),
		zap.String("query", req.Query),
		zap.Int("documents", len(req.Texts)),
		zap.Any("backend_request", req),
	)

	reply, err := s.backend.Rerank(ctx, req)
	if err != nil {
		return Outcome{}, fmt.Errorf("call rerank backend: %w", err)
	}

	log.Debug("rerank backend replied",
		zap.Int("status", reply.StatusCode),
		zap.ByteString("body", reply.Body),
	)

	if reply.StatusCode != http.StatusOK {
		metrics.RerankForwardedTotal.WithLabelValues(strconv.Itoa(reply.StatusCode)).Inc()
		return Outcome{Status: reply.StatusCode, Raw: reply.Body}, nil
	}

	raw, err := domrerank.ParseBackendResult(reply.Body)
	if err != nil {
		return Outcome{}, err
	}
	resp, err := domrerank.Normalize(raw, in.Documents)
	if err != nil {
		return Outcome{}, fmt.Errorf("normalize %s response: %w", raw.Shape(), err)
	}

	metrics.RerankResultsTotal.WithLabelValues(raw.Shape().String()).Inc()
	if raw.Shape() == domrerank.ShapeUnknown {
		log.Warn("unrecognized backend response shape, returning no results",
			zap.ByteString("body", reply.Body),
		)
	}
	log.Debug("rerank response normalized",
		zap.Stringer("shape", raw.Shape()),
		zap.Int("results", len(resp.Results)),
		zap.Any("response", resp),
	)

	return Outcome{Status: http.StatusOK, Response: &resp, Shape: raw.Shape()}, nil
}
