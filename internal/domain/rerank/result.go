package rerank

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Shape identifies which backend response layout was received.
type Shape int

const (
	// ShapeUnknown is any JSON value without a recognized layout. It normalizes to no results.
	ShapeUnknown Shape = iota
	// ShapeList is a top-level array of scored items.
	ShapeList
	// ShapeResults is an object carrying scored items under "results".
	ShapeResults
	// ShapeScores is an object carrying bare scores under "scores"; position is the index.
	ShapeScores
)

// String returns the shape name used in logs and metric labels.
func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeResults:
		return "results"
	case ShapeScores:
		return "scores"
	default:
		return "unknown"
	}
}

// item is one scored entry of a list or results layout, keyed by field name.
type item map[string]json.RawMessage

// BackendResult is a decoded backend response tagged with its layout.
type BackendResult struct {
	shape  Shape
	items  []item
	scores []json.RawMessage
}

// Shape returns the detected layout.
func (r BackendResult) Shape() Shape { return r.shape }

// Len returns the number of entries that will be normalized.
func (r BackendResult) Len() int {
	if r.shape == ShapeScores {
		return len(r.scores)
	}
	return len(r.items)
}

// ParseBackendResult decodes a backend body and detects its layout.
// Arrays win over objects, and "results" wins over "scores".
// Anything else is ShapeUnknown rather than an error; only invalid JSON fails.
func ParseBackendResult(body []byte) (BackendResult, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return BackendResult{}, fmt.Errorf("decode backend body: %w", ErrMalformedResponse)
	}

	switch trimmed[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return BackendResult{}, fmt.Errorf("decode backend list: %w: %w", ErrMalformedResponse, err)
		}
		return BackendResult{shape: ShapeList, items: objectItems(elems)}, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return BackendResult{}, fmt.Errorf("decode backend object: %w: %w", ErrMalformedResponse, err)
		}
		if raw, ok := obj["results"]; ok {
			return BackendResult{shape: ShapeResults, items: objectItems(arrayElems(raw))}, nil
		}
		if raw, ok := obj["scores"]; ok {
			return BackendResult{shape: ShapeScores, scores: arrayElems(raw)}, nil
		}
	}
	return BackendResult{shape: ShapeUnknown}, nil
}

// arrayElems returns the elements of a JSON array, or nil for any other value.
func arrayElems(raw json.RawMessage) []json.RawMessage {
	var elems []json.RawMessage
	if json.Unmarshal(raw, &elems) != nil {
		return nil
	}
	return elems
}

// objectItems keeps the elements that are JSON objects and skips the rest.
func objectItems(elems []json.RawMessage) []item {
	items := make([]item, 0, len(elems))
	for _, elem := range elems {
		trimmed := bytes.TrimSpace(elem)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		var it item
		if json.Unmarshal(trimmed, &it) != nil {
			continue
		}
		items = append(items, it)
	}
	return items
}
