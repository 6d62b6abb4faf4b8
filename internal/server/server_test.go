// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/papermap/internal/chat"
	"github.com/pdiddy/papermap/pkg/types"
)

type fakeSearch struct {
	query string
	max   int
	err   error
}

func (f *fakeSearch) Run(_ context.Context, query string, maxResults int) (*types.SearchResponse, error) {
	f.query, f.max = query, maxResults
	if f.err != nil {
		return nil, f.err
	}
	return &types.SearchResponse{
		Papers:          []types.Paper{{ID: "1706.03762", Title: "Attention Is All You Need"}},
		Categories:      []types.Category{},
		CitationLinks:   []types.CitationLink{},
		Query:           query,
		ExpandedQueries: []string{query},
		MaxCitations:    42,
	}, nil
}

type fakeParser struct {
	submitted string
	cached    bool
	err       error
}

func (f *fakeParser) Submit(_ context.Context, id, url string) (types.SubmitResult, error) {
	f.submitted = id + " " + url
	if f.err != nil {
		return types.SubmitResult{}, f.err
	}
	if f.cached {
		return types.SubmitResult{DocumentID: id, Status: types.JobCompleted, Progress: 100, Cached: true, Content: "text"}, nil
	}
	return types.SubmitResult{JobID: "job-1", DocumentID: id, Status: types.JobPending}, nil
}

func (f *fakeParser) Status(_ context.Context, jobID string) (types.JobSnapshot, error) {
	if jobID != "job-1" {
		return types.JobSnapshot{}, fmt.Errorf("%w: job %s", types.ErrNotFound, jobID)
	}
	return types.JobSnapshot{JobID: jobID, DocumentID: "1706.03762", Status: types.JobFailed, Progress: 10, Error: "pdf download returned HTTP 404"}, nil
}

type fakeChat struct {
	req chat.Request
	err error
}

func (f *fakeChat) Chat(_ context.Context, req chat.Request) (*chat.Reply, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &chat.Reply{Response: "answer", PapersParsed: []string{"1706.03762"}, PapersQueued: []string{}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

// --- routes ---

func TestHealth(t *testing.T) {
	h := New(&fakeSearch{}, &fakeParser{}, &fakeChat{}, nil).Routes()
	rec, out := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSearch(t *testing.T) {
	search := &fakeSearch{}
	h := New(search, &fakeParser{}, &fakeChat{}, nil).Routes()

	rec, out := do(t, h, http.MethodPost, "/api/search", `{"query": "transformers", "max_results": 50}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "transformers", search.query)
	assert.Equal(t, 50, search.max)
	assert.Equal(t, float64(42), out["max_citations"])
	assert.Equal(t, []any{"transformers"}, out["expanded_queries"])
	assert.Equal(t, []any{}, out["citation_links"])
	papers := out["papers"].([]any)
	assert.Equal(t, "1706.03762", papers[0].(map[string]any)["arxiv_id"])
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"empty query", `{"query": "  "}`, nil, http.StatusBadRequest},
		{"bad json", `{"query":`, nil, http.StatusBadRequest},
		{"negative max", `{"query": "q", "max_results": -1}`, nil, http.StatusBadRequest},
		{"huge max", `{"query": "q", "max_results": 5000}`, nil, http.StatusBadRequest},
		{"upstream down", `{"query": "q"}`, fmt.Errorf("%w: arxiv returned HTTP 503", types.ErrUpstreamUnavailable), http.StatusBadGateway},
		{"timeout", `{"query": "q"}`, context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unexpected", `{"query": "q"}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&fakeSearch{err: tt.err}, &fakeParser{}, &fakeChat{}, nil).Routes()
			rec, out := do(t, h, http.MethodPost, "/api/search", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestSearchMaxResultsBounds(t *testing.T) {
	h := New(&fakeSearch{}, &fakeParser{}, &fakeChat{}, nil).Routes()

	rec, out := do(t, h, http.MethodPost, "/api/search", `{"query": "q", "max_results": 1001}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["error"], "between 0 and 1000 (0 = default)")

	rec, _ = do(t, h, http.MethodPost, "/api/search", `{"query": "q", "max_results": 0}`)
	assert.Equal(t, http.StatusOK, rec.Code, "0 selects the configured default")
}

func TestParseSubmitAndStatus(t *testing.T) {
	parser := &fakeParser{}
	h := New(&fakeSearch{}, parser, &fakeChat{}, nil).Routes()

	rec, out := do(t, h, http.MethodPost, "/api/parse-paper", `{"arxiv_id": "1706.03762", "pdf_url": "https://arxiv.org/pdf/1706.03762"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "1706.03762 https://arxiv.org/pdf/1706.03762", parser.submitted)
	assert.Equal(t, "job-1", out["job_id"])
	assert.Equal(t, "pending", out["status"])
	assert.Equal(t, false, out["cached"])

	rec, out = do(t, h, http.MethodGet, "/api/parse-paper/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "failed", out["status"])
	assert.Equal(t, "pdf download returned HTTP 404", out["error"])
	assert.NotContains(t, out, "content")

	rec, _ = do(t, h, http.MethodGet, "/api/parse-paper/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseSubmitCached(t *testing.T) {
	h := New(&fakeSearch{}, &fakeParser{cached: true}, &fakeChat{}, nil).Routes()
	rec, out := do(t, h, http.MethodPost, "/api/parse-paper", `{"arxiv_id": "1706.03762", "pdf_url": "u"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["cached"])
	assert.Equal(t, "text", out["content"])
	assert.NotContains(t, out, "job_id")
}

func TestParseSubmitValidation(t *testing.T) {
	parser := &fakeParser{err: fmt.Errorf("%w: document id cannot be empty", types.ErrValidation)}
	h := New(&fakeSearch{}, parser, &fakeChat{}, nil).Routes()
	rec, _ := do(t, h, http.MethodPost, "/api/parse-paper", `{"pdf_url": "u"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatDefaults(t *testing.T) {
	c := &fakeChat{}
	h := New(&fakeSearch{}, &fakeParser{}, c, nil).Routes()

	body := `{"message": "why?", "papers": [{"arxiv_id": "1706.03762", "title": "T", "abstract": "A", "pdf_url": "u"}], "history": [{"role": "user", "content": "hi"}]}`
	rec, out := do(t, h, http.MethodPost, "/api/chat", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "answer", out["response"])
	assert.Equal(t, []any{"1706.03762"}, out["papers_parsed"])

	assert.True(t, c.req.ParsePDFs)
	assert.True(t, c.req.UseWebSearch)
	assert.Equal(t, "why?", c.req.Message)
	assert.Equal(t, "u", c.req.Papers[0].PDFURL)
	assert.Equal(t, []types.ChatMessage{{Role: "user", Content: "hi"}}, c.req.History)

	_, _ = do(t, h, http.MethodPost, "/api/chat", `{"message": "m", "papers": [], "parse_pdfs": false, "use_web_search": false}`)
	assert.False(t, c.req.ParsePDFs)
	assert.False(t, c.req.UseWebSearch)
}

func TestChatErrors(t *testing.T) {
	h := New(&fakeSearch{}, &fakeParser{}, &fakeChat{err: fmt.Errorf("%w: message cannot be empty", types.ErrValidation)}, nil).Routes()
	rec, out := do(t, h, http.MethodPost, "/api/chat", `{"message": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["error"], "message cannot be empty")
}

func TestPreflight(t *testing.T) {
	h := New(&fakeSearch{}, &fakeParser{}, &fakeChat{}, nil).Routes()
	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(&fakeSearch{}, &fakeParser{}, &fakeChat{}, nil).ListenAndServe(ctx, "127.0.0.1:0")
	}()
	cancel()
	assert.NoError(t, <-done)
}
