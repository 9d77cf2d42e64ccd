package health

import "context"

// BackendChecker checks rerank backend availability.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}
