// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/papermap/internal/llm"
	"github.com/pdiddy/papermap/internal/websearch"
	"github.com/pdiddy/papermap/pkg/types"
)

// groundingResults is the number of web snippets added to the expansion prompt.
const groundingResults = 3

var expansionPromptTmpl = template.Must(template.New("expansion").Parse(`You help researchers search arXiv. Expand the research query below into {{.N}} complementary arXiv search queries. Cover distinct subtopics, methods and common synonyms so the union of results maps the field. Keep each query short (2-6 words) and free of boolean operators.

Query: "{{.Query}}"
{{if .Web}}
Recent context from the web:
{{.Web}}
{{end}}
Return ONLY JSON:
{"queries": ["first query", "second query"]}`))

// QueryExpander turns one user query into the queries sent to the paper source.
type QueryExpander interface {
	Expand(ctx context.Context, query string) []string
}

// Expander asks a language model for complementary queries, optionally
// grounded by web snippets.
type Expander struct {
	LLM         llm.Completer
	Web         websearch.Searcher
	N           int
	Temperature float64
	Logger      *zap.Logger
}

type expansionReply struct {
	Queries []string `json:"queries"`
}

// Expand returns up to N distinct queries. It never fails: any model or
// parse error yields the original query alone.
func (e *Expander) Expand(ctx context.Context, query string) []string {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := []string{query}
	if e.LLM == nil {
		return fallback
	}

	n := e.N
	if n <= 0 {
		n = 6
	}

	var buf bytes.Buffer
	data := struct {
		N     int
		Query string
		Web   string
	}{n, query, websearch.Summary(ctx, e.Web, query, groundingResults, logger)}
	if err := expansionPromptTmpl.Execute(&buf, data); err != nil {
		logger.Warn("rendering expansion prompt", zap.Error(err))
		return fallback
	}

	reply, err := e.LLM.Complete(ctx, []types.ChatMessage{{Role: llm.RoleUser, Content: buf.String()}}, e.Temperature)
	if err != nil {
		logger.Warn("query expansion failed, using original query", zap.Error(err))
		return fallback
	}

	var parsed expansionReply
	if err := llm.DecodeJSON(reply, &parsed); err != nil {
		logger.Warn("query expansion reply not parseable, using original query", zap.Error(err))
		return fallback
	}

	seen := make(map[string]bool)
	var queries []string
	for _, q := range parsed.Queries {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, q)
		if len(queries) == n {
			break
		}
	}
	if len(queries) == 0 {
		return fallback
	}
	return queries
}
