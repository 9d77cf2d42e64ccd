package rerank

import (
	"context"

	domrerank "github.com/kailas-cloud/rerank-proxy/internal/domain/rerank"
)

// Backend performs one rerank round trip and returns the raw status and body.
type Backend interface {
	Rerank(ctx context.Context, req domrerank.BackendRequest) (domrerank.BackendReply, error)
}
