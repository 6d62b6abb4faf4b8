// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chat answers questions about a set of papers. The prompt carries
// each paper's abstract plus whatever full text is already cached; it never
// waits for extraction.
package chat

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/papermap/internal/contentcache"
	"github.com/pdiddy/papermap/internal/llm"
	"github.com/pdiddy/papermap/internal/websearch"
	"github.com/pdiddy/papermap/pkg/types"
)

const (
	defaultContentChars = 15000
	defaultWebResults   = 3
	truncationMarker    = "...[truncated]"
)

var systemPromptTmpl = template.Must(template.New("chat").Parse(`You are a research assistant helping analyze academic papers.

You have access to the following papers:

{{.Papers}}
{{- if .Web}}

Web Search Results:
{{.Web}}
{{- end}}

Guidelines:
- Answer questions based on the paper content provided
- Cite specific papers when making claims (use arxiv ID)
- If information isn't in the papers, say so clearly
- Be concise but thorough
- For technical questions, explain concepts clearly`))

// Submitter queues background extraction of a document.
type Submitter interface {
	Submit(ctx context.Context, documentID, sourceURL string) (types.SubmitResult, error)
}

// Request is one chat turn.
type Request struct {
	Message      string
	Papers       []types.PaperContext
	History      []types.ChatMessage
	ParsePDFs    bool
	UseWebSearch bool
}

// Reply is the model's answer and the cache state it was built from.
type Reply struct {
	Response string `json:"response" yaml:"response"`

	// PapersParsed lists papers whose extracted text was in the prompt.
	PapersParsed []string `json:"papers_parsed" yaml:"papers_parsed"`

	// PapersQueued lists papers submitted for extraction by this request.
	PapersQueued []string `json:"papers_queued" yaml:"papers_queued"`
}

// Composer builds the prompt and calls the model once per request.
type Composer struct {
	LLM    llm.Completer
	Cache  contentcache.Cache
	Parser Submitter
	Web    websearch.Searcher

	ContentChars int
	WebResults   int
	Temperature  float64
	Logger       *zap.Logger
}

// NewComposer wires a Composer from configuration. parser and web may be nil.
func NewComposer(cfg types.ChatConfig, temperature float64, completer llm.Completer, cache contentcache.Cache, parser Submitter, web websearch.Searcher, logger *zap.Logger) *Composer {
	return &Composer{
		LLM:          completer,
		Cache:        cache,
		Parser:       parser,
		Web:          web,
		ContentChars: cfg.ContentChars,
		WebResults:   cfg.WebResults,
		Temperature:  temperature,
		Logger:       logger,
	}
}

// Chat answers req.Message. With ParsePDFs set, papers without cached text
// are queued for extraction; their text is used by later turns.
func (c *Composer) Chat(ctx context.Context, req Request) (*Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message cannot be empty", types.ErrValidation)
	}
	if len(req.Papers) == 0 {
		return nil, fmt.Errorf("%w: at least one paper is required for context", types.ErrValidation)
	}
	logger := c.logger()

	reply := &Reply{PapersParsed: []string{}, PapersQueued: []string{}}
	contents := make(map[string]string, len(req.Papers))
	for _, p := range req.Papers {
		content, ok := c.cached(ctx, p.ID)
		if ok {
			contents[p.ID] = content
			reply.PapersParsed = append(reply.PapersParsed, p.ID)
			continue
		}
		if req.ParsePDFs && c.queue(ctx, p) {
			reply.PapersQueued = append(reply.PapersQueued, p.ID)
		}
	}

	var web string
	if req.UseWebSearch {
		web = websearch.Summary(ctx, c.Web, message, c.webResults(), logger)
	}

	system, err := c.systemPrompt(req.Papers, contents, web)
	if err != nil {
		return nil, err
	}

	msgs := make([]types.ChatMessage, 0, len(req.History)+2)
	msgs = append(msgs, types.ChatMessage{Role: llm.RoleSystem, Content: system})
	for _, m := range req.History {
		if (m.Role != llm.RoleUser && m.Role != llm.RoleAssistant) || m.Content == "" {
			continue
		}
		msgs = append(msgs, m)
	}
	msgs = append(msgs, types.ChatMessage{Role: llm.RoleUser, Content: message})

	resp, err := c.LLM.Complete(ctx, msgs, c.Temperature)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	reply.Response = resp

	logger.Info("chat answered",
		zap.Int("papers", len(req.Papers)),
		zap.Strings("papers_parsed", reply.PapersParsed),
		zap.Strings("papers_queued", reply.PapersQueued),
		zap.Bool("web", web != ""))
	return reply, nil
}

func (c *Composer) cached(ctx context.Context, id string) (string, bool) {
	if c.Cache == nil {
		return "", false
	}
	content, ok, err := c.Cache.Get(ctx, id)
	if err != nil {
		c.logger().Warn("content cache read failed", zap.String("document_id", id), zap.Error(err))
		return "", false
	}
	return content, ok
}

// queue submits p for extraction and reports whether a job is now running
// or pending for it.
func (c *Composer) queue(ctx context.Context, p types.PaperContext) bool {
	if c.Parser == nil || p.PDFURL == "" {
		return false
	}
	res, err := c.Parser.Submit(ctx, p.ID, p.PDFURL)
	if err != nil {
		c.logger().Warn("queueing paper for parsing failed", zap.String("document_id", p.ID), zap.Error(err))
		return false
	}
	return !res.Cached
}

func (c *Composer) systemPrompt(papers []types.PaperContext, contents map[string]string, web string) (string, error) {
	limit := c.ContentChars
	if limit <= 0 {
		limit = defaultContentChars
	}

	sections := make([]string, len(papers))
	for i, p := range papers {
		var sb strings.Builder
		fmt.Fprintf(&sb, "**%s** (arxiv:%s)\n", p.Title, p.ID)
		fmt.Fprintf(&sb, "Abstract: %s\n", p.Abstract)
		if content, ok := contents[p.ID]; ok {
			fmt.Fprintf(&sb, "\nFull Paper Content:\n%s\n", Truncate(content, limit))
		}
		sections[i] = sb.String()
	}

	var buf bytes.Buffer
	data := struct{ Papers, Web string }{strings.Join(sections, "\n---\n"), web}
	if err := systemPromptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering chat prompt: %w", err)
	}
	return buf.String(), nil
}

// Truncate keeps the first n characters of s, marking the cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + truncationMarker
}

func (c *Composer) webResults() int {
	if c.WebResults <= 0 {
		return defaultWebResults
	}
	return c.WebResults
}

func (c *Composer) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
