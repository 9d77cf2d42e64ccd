// Package rerank translates between the platform rerank schema and the backend rerank schema.
package rerank

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TruncationDirection selects which side of an over-long text the backend cuts.
type TruncationDirection string

const (
	// TruncateLeft drops tokens from the start of the text.
	TruncateLeft TruncationDirection = "Left"
	// TruncateRight drops tokens from the end of the text.
	TruncateRight TruncationDirection = "Right"
)

// InboundRequest is a rerank call in the platform schema.
// The position of each document is the index reported back in results.
type InboundRequest struct {
	Query     string
	Documents []string
}

// BackendRequest is the payload sent to the reranking backend.
type BackendRequest struct {
	Query               string              `json:"query"`
	Texts               []string            `json:"texts"`
	Truncate            bool                `json:"truncate"`
	TruncationDirection TruncationDirection `json:"truncation_direction"`
	RawScores           bool                `json:"raw_scores"`
}

// BackendReply is the status and raw body returned by the backend.
type BackendReply struct {
	StatusCode int
	Body       []byte
}

// ParseInbound decodes a platform rerank body.
// Only a body that is not a JSON object fails; missing or mistyped fields fall back to defaults.
func ParseInbound(body []byte) (InboundRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return InboundRequest{}, fmt.Errorf("decode request body: %w: %w", ErrInvalidRequest, err)
	}
	if fields == nil {
		return InboundRequest{}, fmt.Errorf("request body must be a JSON object: %w", ErrInvalidRequest)
	}

	var req InboundRequest
	if raw, ok := fields["query"]; ok {
		var q string
		if json.Unmarshal(raw, &q) == nil {
			req.Query = q
		}
	}
	if raw, ok := fields["documents"]; ok {
		req.Documents = decodeDocuments(raw)
	}
	if req.Documents == nil {
		req.Documents = []string{}
	}
	return req, nil
}

// decodeDocuments keeps every array element so positions stay aligned with backend indexes.
// Non-string elements are kept as their compact JSON text.
func decodeDocuments(raw json.RawMessage) []string {
	var elems []json.RawMessage
	if json.Unmarshal(raw, &elems) != nil {
		return nil
	}

	docs := make([]string, 0, len(elems))
	for _, elem := range elems {
		var s string
		if json.Unmarshal(elem, &s) == nil && isJSONString(elem) {
			docs = append(docs, s)
			continue
		}
		var buf bytes.Buffer
		if json.Compact(&buf, elem) != nil {
			docs = append(docs, string(elem))
			continue
		}
		docs = append(docs, buf.String())
	}
	return docs
}

// isJSONString reports whether raw holds a string literal (null also decodes into a string).
func isJSONString(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '"'
}

// TranslateRequest builds the backend payload. Truncation and score policy are fixed.
func TranslateRequest(in InboundRequest) BackendRequest {
	texts := make([]string, len(in.Documents))
	copy(texts, in.Documents)

	return BackendRequest{
		Query:               in.Query,
		Texts:               texts,
		Truncate:            true,
		TruncationDirection: TruncateRight,
		RawScores:           false,
	}
}
