package chi

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rerank-proxy/internal/transport/tei"
	healthuc "github.com/kailas-cloud/rerank-proxy/internal/usecase/health"
	rerankuc "github.com/kailas-cloud/rerank-proxy/internal/usecase/rerank"
)

// newProxy wires the real backend client against a fake backend, as main does.
func newProxy(t *testing.T, backend http.Handler) http.Handler {
	t.Helper()

	upstream := httptest.NewServer(backend)
	t.Cleanup(upstream.Close)

	return newProxyFor(t, upstream.URL, time.Second)
}

func newProxyFor(t *testing.T, backendURL string, timeout time.Duration) http.Handler {
	t.Helper()

	u, err := url.Parse(backendURL)
	if err != nil {
		t.Fatalf("parse backend url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	client := tei.NewClient(&tei.Config{
		Host:    host,
		Port:    port,
		Path:    "/rerank",
		Timeout: timeout,
		Logger:  zap.NewNop(),
	})

	return NewServer(rerankuc.New(client), healthuc.New(client), zap.NewNop()).Handler()
}

func backendReturning(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func postRerank(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rerank", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, rr.Body.String())
	}
	return resp
}

func TestRerank_ListResponse(t *testing.T) {
	var sent map[string]any
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&sent)
		_, _ = w.Write([]byte(`[{"corpus_id":1,"score":0.9},{"corpus_id":0,"score":0.4}]`))
	})

	rr := postRerank(t, newProxy(t, backend), `{"query":"a","documents":["x","y"]}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type: %s", ct)
	}

	want := `{"results":[{"index":1,"document":{"text":"y"},"relevance_score":0.9},` +
		`{"index":0,"document":{"text":"x"},"relevance_score":0.4}]}`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Errorf("unexpected body:\ngot:  %s\nwant: %s", got, want)
	}

	if sent["query"] != "a" || sent["truncation_direction"] != "Right" {
		t.Errorf("unexpected backend payload: %v", sent)
	}
}

func TestRerank_ResultsAndScoresShapes(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		request string
		want    string
	}{
		{
			name:    "dict with results",
			backend: `{"results":[{"index":0,"relevance_score":0.5}]}`,
			request: `{"query":"q","documents":["only"]}`,
			want:    `{"results":[{"index":0,"document":{"text":"only"},"relevance_score":0.5}]}`,
		},
		{
			name:    "dict with scores",
			backend: `{"scores":[0.2,0.8]}`,
			request: `{"query":"q","documents":["a","b"]}`,
			want: `{"results":[{"index":1,"document":{"text":"b"},"relevance_score":0.8},` +
				`{"index":0,"document":{"text":"a"},"relevance_score":0.2}]}`,
		},
		{
			name:    "out of range index",
			backend: `[{"corpus_id":5,"score":0.3}]`,
			request: `{"query":"q","documents":["a","b"]}`,
			want:    `{"results":[{"index":5,"document":{"text":""},"relevance_score":0.3}]}`,
		},
		{
			name:    "unrecognized shape",
			backend: `{"model":"bge"}`,
			request: `{"query":"q","documents":["a"]}`,
			want:    `{"results":[]}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := postRerank(t, newProxy(t, backendReturning(http.StatusOK, tc.backend)), tc.request)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
			}
			if got := strings.TrimSpace(rr.Body.String()); got != tc.want {
				t.Errorf("unexpected body:\ngot:  %s\nwant: %s", got, tc.want)
			}
		})
	}
}

func TestRerank_ForwardsBackendErrorVerbatim(t *testing.T) {
	body := `{"detail":"overloaded"}`
	rr := postRerank(t, newProxy(t, backendReturning(http.StatusServiceUnavailable, body)),
		`{"query":"a","documents":["x"]}`)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !bytes.Equal(rr.Body.Bytes(), []byte(body)) {
		t.Errorf("body must be forwarded byte for byte, got %q", rr.Body.String())
	}
}

func TestRerank_InvalidJSON(t *testing.T) {
	called := false
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	rr := postRerank(t, newProxy(t, backend), `{"query": "a", "documents": [`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); !strings.HasPrefix(resp.Error, "proxy error: ") {
		t.Errorf("unexpected error message: %q", resp.Error)
	}
	if called {
		t.Error("backend must not be called for an invalid request")
	}
}

func TestRerank_BackendDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	backendURL := upstream.URL
	upstream.Close()

	rr := postRerank(t, newProxyFor(t, backendURL, time.Second), `{"query":"a","documents":["x"]}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if !strings.Contains(resp.Error, "rerank backend unavailable") {
		t.Errorf("expected the underlying cause in the message, got %q", resp.Error)
	}
}

func TestRerank_BackendTimeout(t *testing.T) {
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer upstream.Close()
	defer close(release)

	rr := postRerank(t, newProxyFor(t, upstream.URL, 50*time.Millisecond), `{"query":"a","documents":["x"]}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); !strings.Contains(resp.Error, "rerank backend timeout") {
		t.Errorf("expected timeout in message, got %q", resp.Error)
	}
}

func TestRerank_MalformedBackendBody(t *testing.T) {
	rr := postRerank(t, newProxy(t, backendReturning(http.StatusOK, "not json")), `{"query":"a"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	decodeError(t, rr)
}

func TestRerank_NonNumericScore(t *testing.T) {
	rr := postRerank(t, newProxy(t, backendReturning(http.StatusOK, `[{"index":0,"score":"high"}]`)),
		`{"query":"a","documents":["x"]}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); !strings.Contains(resp.Error, "invalid relevance score") {
		t.Errorf("unexpected error message: %q", resp.Error)
	}
}

func TestRerank_BodyTooLarge(t *testing.T) {
	upstream := httptest.NewServer(backendReturning(http.StatusOK, `[]`))
	defer upstream.Close()

	u, _ := url.Parse(upstream.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	client := tei.NewClient(&tei.Config{Host: host, Port: port, Path: "/rerank", Timeout: time.Second})
	h := NewServer(rerankuc.New(client), healthuc.New(client), zap.NewNop()).WithMaxBodyBytes(16).Handler()

	rr := postRerank(t, h, `{"query":"a long query that exceeds the limit","documents":[]}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	decodeError(t, rr)
}

func TestRerank_AnyPostPath(t *testing.T) {
	h := newProxy(t, backendReturning(http.StatusOK, `{"scores":[0.1]}`))

	req := httptest.NewRequest(http.MethodPost, "/v1/rerank", strings.NewReader(`{"query":"a","documents":["x"]}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRerank_SetsRequestID(t *testing.T) {
	rr := postRerank(t, newProxy(t, backendReturning(http.StatusOK, `[]`)), `{"query":"a"}`)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name          string
		backendStatus int
		wantStatus    int
		wantReport    healthuc.Status
	}{
		{"backend healthy", http.StatusOK, http.StatusOK, healthuc.Healthy},
		{"backend unhealthy", http.StatusServiceUnavailable, http.StatusServiceUnavailable, healthuc.Degraded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newProxy(t, backendReturning(tc.backendStatus, ""))

			req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			var report healthuc.Report
			if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
				t.Fatalf("decode report: %v", err)
			}
			if report.Status != tc.wantReport {
				t.Errorf("expected %q, got %q", tc.wantReport, report.Status)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newProxy(t, backendReturning(http.StatusOK, `[]`))

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.Len() == 0 {
		t.Error("expected non-empty metrics exposition")
	}
}

func TestClassifyError(t *testing.T) {
	if got := classifyError(io.EOF); got != "internal" {
		t.Errorf("expected internal for unknown errors, got %q", got)
	}
}
