package rerank

import "errors"

var (
	// ErrInvalidRequest signals an inbound body that is not a JSON object.
	ErrInvalidRequest = errors.New("invalid rerank request")
	// ErrMalformedResponse signals a backend body that is not valid JSON.
	ErrMalformedResponse = errors.New("malformed backend response")
	// ErrInvalidIndex signals a backend item whose index is not an integer.
	ErrInvalidIndex = errors.New("invalid result index")
	// ErrInvalidScore signals a backend score that cannot be coerced to a finite number.
	ErrInvalidScore = errors.New("invalid relevance score")
	// ErrBackendUnavailable signals a failed backend round trip.
	ErrBackendUnavailable = errors.New("rerank backend unavailable")
	// ErrBackendTimeout signals a backend call that exceeded its deadline.
	ErrBackendTimeout = errors.New("rerank backend timeout")
)
