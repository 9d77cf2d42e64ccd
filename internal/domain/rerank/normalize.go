package rerank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Backend item field names, in lookup priority order.
const (
	fieldCorpusID       = "corpus_id"
	fieldIndex          = "index"
	fieldScore          = "score"
	fieldRelevanceScore = "relevance_score"
)

// Document carries the text of a reranked document.
type Document struct {
	Text string `json:"text"`
}

// Result is one reranked document in the platform schema.
type Result struct {
	Index          int      `json:"index"`
	Document       Document `json:"document"`
	RelevanceScore float64  `json:"relevance_score"`
}

// Response is the platform rerank response.
type Response struct {
	Results []Result `json:"results"`
}

// Normalize converts a backend result into the platform response, sorted by score descending.
// Equal scores keep the order in which the backend reported them.
//
// Missing index or score fields default to 0, and an index outside documents yields empty text.
// A present index that is not an integer, or a score that is not a finite number, fails.
func Normalize(raw BackendResult, documents []string) (Response, error) {
	results := make([]Result, 0, raw.Len())

	switch raw.shape {
	case ShapeList, ShapeResults:
		for i, it := range raw.items {
			index, err := it.index()
			if err != nil {
				return Response{}, fmt.Errorf("result %d: %w", i, err)
			}
			score, err := it.score()
			if err != nil {
				return Response{}, fmt.Errorf("result %d: %w", i, err)
			}
			results = append(results, newResult(index, score, documents))
		}
	case ShapeScores:
		for i, rawScore := range raw.scores {
			score, err := coerceScore(rawScore)
			if err != nil {
				return Response{}, fmt.Errorf("score %d: %w", i, err)
			}
			results = append(results, newResult(i, score, documents))
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})

	return Response{Results: results}, nil
}

func newResult(index int, score float64, documents []string) Result {
	var text string
	if index >= 0 && index < len(documents) {
		text = documents[index]
	}
	return Result{
		Index:          index,
		Document:       Document{Text: text},
		RelevanceScore: score,
	}
}

func (it item) lookup(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := it[k]; ok {
			return raw, true
		}
	}
	return nil, false
}

func (it item) index() (int, error) {
	raw, ok := it.lookup(fieldCorpusID, fieldIndex)
	if !ok {
		return 0, nil
	}
	n, ok := decodeNumber(raw)
	if !ok {
		return 0, fmt.Errorf("%s is not a number: %w", bytes.TrimSpace(raw), ErrInvalidIndex)
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, fmt.Errorf("%s is not an integer: %w", n, ErrInvalidIndex)
	}
	return v, nil
}

func (it item) score() (float64, error) {
	raw, ok := it.lookup(fieldScore, fieldRelevanceScore)
	if !ok {
		return 0, nil
	}
	return coerceScore(raw)
}

// coerceScore accepts JSON numbers and numeric strings.
func coerceScore(raw json.RawMessage) (float64, error) {
	var (
		f   float64
		err error
	)
	if n, ok := decodeNumber(raw); ok {
		f, err = n.Float64()
	} else {
		var s string
		if !isJSONString(raw) || json.Unmarshal(raw, &s) != nil {
			return 0, fmt.Errorf("%s is not numeric: %w", bytes.TrimSpace(raw), ErrInvalidScore)
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	if err != nil {
		return 0, fmt.Errorf("%s is not numeric: %w", bytes.TrimSpace(raw), ErrInvalidScore)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s is not finite: %w", bytes.TrimSpace(raw), ErrInvalidScore)
	}
	return f, nil
}

// decodeNumber returns raw as a json.Number when it holds a JSON number literal.
func decodeNumber(raw json.RawMessage) (json.Number, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if dec.Decode(&v) != nil {
		return "", false
	}
	n, ok := v.(json.Number)
	return n, ok
}
