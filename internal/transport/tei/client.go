// Package tei is the HTTP client for a text-embeddings-inference style rerank backend.
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rerank-proxy/internal/domain/rerank"
	"github.com/kailas-cloud/rerank-proxy/internal/metrics"
)

const healthPath = "/health"

// Config holds the backend location and call deadline.
type Config struct {
	Host    string
	Port    int
	Path    string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client calls the rerank backend. Safe for concurrent use.
type Client struct {
	http      *http.Client
	rerankURL string
	healthURL string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewClient creates a backend client. A zero Timeout leaves calls bounded only by the caller's context.
func NewClient(cfg *Config) *Client {
	hostPort := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	rerankURL := url.URL{Scheme: "http", Host: hostPort, Path: cfg.Path}
	healthURL := url.URL{Scheme: "http", Host: hostPort, Path: healthPath}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		rerankURL: rerankURL.String(),
		healthURL: healthURL.String(),
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// URL returns the rerank endpoint the client posts to.
func (c *Client) URL() string { return c.rerankURL }

// Rerank posts the payload and returns the backend status and body whatever the status is.
// Transport failures wrap rerank.ErrBackendTimeout or rerank.ErrBackendUnavailable.
func (c *Client) Rerank(ctx context.Context, req rerank.BackendRequest) (rerank.BackendReply, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return rerank.BackendReply{}, fmt.Errorf("encode backend request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rerankURL, bytes.NewReader(payload))
	if err != nil {
		return rerank.BackendReply{}, fmt.Errorf("create backend request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return rerank.BackendReply{}, c.transportError(err, time.Since(start))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return rerank.BackendReply{}, c.transportError(err, time.Since(start))
	}

	status := strconv.Itoa(resp.StatusCode)
	metrics.BackendRequestsTotal.WithLabelValues(status).Inc()
	metrics.BackendRequestDuration.WithLabelValues("response").Observe(time.Since(start).Seconds())

	return rerank.BackendReply{StatusCode: resp.StatusCode, Body: body}, nil
}

// HealthCheck probes the backend health endpoint. Any non-2xx answer is an error.
func (c *Client) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("backend health: %w", classify(err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend health status %d: %w", resp.StatusCode, rerank.ErrBackendUnavailable)
	}
	return nil
}

func (c *Client) transportError(err error, elapsed time.Duration) error {
	kind := classify(err)

	errType := "unavailable"
	if errors.Is(kind, rerank.ErrBackendTimeout) {
		errType = "timeout"
	}
	metrics.BackendRequestsTotal.WithLabelValues("error").Inc()
	metrics.BackendErrorsTotal.WithLabelValues(errType).Inc()
	metrics.BackendRequestDuration.WithLabelValues("error").Observe(elapsed.Seconds())

	c.logger.Warn("rerank backend call failed",
		zap.String("url", c.rerankURL),
		zap.String("error_type", errType),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %w", kind, err)
}

// classify maps a transport error to its sentinel.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return rerank.ErrBackendTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return rerank.ErrBackendTimeout
	}
	return rerank.ErrBackendUnavailable
}
