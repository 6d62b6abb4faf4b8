// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/papermap/internal/httputil"
	"github.com/pdiddy/papermap/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

const (
	defaultArxivPageSize = 100
	defaultArxivDelay    = 3 * time.Second
)

// PaperSource searches an external paper index.
type PaperSource interface {
	Search(ctx context.Context, query string, maxResults int) ([]types.Paper, error)
}

// ArxivSource queries the arXiv Atom API. All requests made through one
// ArxivSource, from any goroutine, are spaced at least Delay apart.
type ArxivSource struct {
	Client     *http.Client
	UserAgent  string
	PageSize   int
	Delay      time.Duration
	MaxRetries int
	Logger     *zap.Logger

	throttle throttle
}

// NewArxivSource builds a source from the search and HTTP configuration.
func NewArxivSource(cfg types.SearchConfig, httpCfg types.HTTPConfig, logger *zap.Logger) *ArxivSource {
	return &ArxivSource{
		Client:    &http.Client{Timeout: httpCfg.Timeout},
		UserAgent: httpCfg.UserAgent,
		PageSize:  cfg.ArxivPageSize,
		Delay:     cfg.ArxivDelay,
		Logger:    logger,
	}
}

// Search pages through results until maxResults papers are collected or the
// feed runs dry. A failure on the first page is returned; a failure on a
// later page ends the search with the papers already collected.
func (a *ArxivSource) Search(ctx context.Context, query string, maxResults int) ([]types.Paper, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty arXiv query", types.ErrValidation)
	}
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pageSize := a.PageSize
	if pageSize <= 0 {
		pageSize = defaultArxivPageSize
	}

	var papers []types.Paper
	for start := 0; len(papers) < maxResults; start += pageSize {
		want := min(pageSize, maxResults-len(papers))
		page, err := a.fetchPage(ctx, query, start, want)
		if err != nil {
			if len(papers) == 0 {
				return nil, err
			}
			logger.Warn("arXiv paging stopped early, keeping partial results",
				zap.String("query", query), zap.Int("papers", len(papers)), zap.Error(err))
			break
		}
		papers = append(papers, page...)
		if len(page) < want {
			break
		}
	}

	if len(papers) > maxResults {
		papers = papers[:maxResults]
	}
	return papers, nil
}

func (a *ArxivSource) fetchPage(ctx context.Context, query string, start, count int) ([]types.Paper, error) {
	delay := a.Delay
	if delay <= 0 {
		delay = defaultArxivDelay
	}
	params := url.Values{
		"search_query": {query},
		"start":        {strconv.Itoa(start)},
		"max_results":  {strconv.Itoa(count)},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating arXiv request: %w", err)
	}
	if a.UserAgent != "" {
		req.Header.Set("User-Agent", a.UserAgent)
	}

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	// Every attempt, retries included, takes its own throttle slot.
	resp, err := httputil.DoWithRetryOptions(ctx, client, req, httputil.RetryOptions{
		MaxRetries: a.MaxRetries,
		MinBackoff: delay,
		BeforeAttempt: func(ctx context.Context) error {
			return a.throttle.wait(ctx, delay)
		},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, httputil.Unavailable("arXiv", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus("arXiv", resp); err != nil {
		return nil, err
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: parsing arXiv response: %v", types.ErrUpstreamUnavailable, err)
	}

	papers := make([]types.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		if p, ok := entry.paper(); ok {
			papers = append(papers, p)
		}
	}
	return papers, nil
}

// throttle hands out request slots at least spacing apart.
type throttle struct {
	mu   sync.Mutex
	next time.Time
}

func (t *throttle) wait(ctx context.Context, spacing time.Duration) error {
	t.mu.Lock()
	now := time.Now()
	at := t.next
	if at.Before(now) {
		at = now
	}
	t.next = at.Add(spacing)
	t.mu.Unlock()

	d := time.Until(at)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Authors    []arxivAuthor   `xml:"author"`
	Links      []arxivLink     `xml:"link"`
	Categories []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// paper converts an entry. Entries without an /abs/ id (such as the error
// entry arXiv returns for malformed queries) are skipped.
func (e arxivEntry) paper() (types.Paper, bool) {
	id := extractArxivID(e.ID)
	if id == "" {
		return types.Paper{}, false
	}

	p := types.Paper{
		ID:       id,
		Title:    collapseSpace(e.Title),
		Abstract: collapseSpace(e.Summary),
		PDFURL:   "https://arxiv.org/pdf/" + id,
	}
	for _, a := range e.Authors {
		if len(p.Authors) == types.MaxAuthors {
			break
		}
		p.Authors = append(p.Authors, collapseSpace(a.Name))
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		p.Published = t
	}
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			p.PDFURL = l.Href
			break
		}
	}
	for _, c := range e.Categories {
		if c.Term != "" {
			p.Categories = append(p.Categories, c.Term)
		}
	}
	return p, true
}

// extractArxivID returns the identifier after "/abs/" in an entry id URL,
// version suffix included (e.g. "http://arxiv.org/abs/2301.07041v1" →
// "2301.07041v1").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(idURL[idx+len(prefix):])
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
