// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package websearch provides the web search collaborator used to ground
// query expansion and chat replies. The only backend scrapes the DuckDuckGo
// HTML endpoint, which needs no API key.
package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/pdiddy/papermap/internal/httputil"
	"github.com/pdiddy/papermap/pkg/types"
)

// duckDuckGoBase is the DuckDuckGo HTML search endpoint. Package-level var
// for test substitution.
var duckDuckGoBase = "https://html.duckduckgo.com/html/"

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher runs a web search and returns at most maxResults hits.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// DuckDuckGo implements Searcher against the DuckDuckGo HTML endpoint.
type DuckDuckGo struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
}

// Search fetches the results page for query and parses its result blocks.
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty web search query", types.ErrValidation)
	}
	if maxResults <= 0 {
		return nil, nil
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, duckDuckGoBase+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("creating web search request: %w", err)
	}
	ua := d.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, httputil.Unavailable("DuckDuckGo", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus("DuckDuckGo", resp); err != nil {
		return nil, err
	}

	return parseResults(io.LimitReader(resp.Body, maxBodyBytes), maxResults)
}

// parseResults walks the page for result blocks. A block is any element
// whose class list contains "result" and that holds a "result__a" link.
func parseResults(r io.Reader, maxResults int) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing web search page: %w", err)
	}

	var results []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") {
			if res := extractResult(n); res.Title != "" && res.URL != "" {
				results = append(results, res)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) Result {
	var res Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				res.Title = textContent(n)
				res.URL = unwrapRedirect(attr(n, "href"))
			case hasClass(n, "result__snippet"):
				res.Snippet = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return res
}

// unwrapRedirect returns the target of a DuckDuckGo "/l/?uddg=" redirect
// link, or href unchanged.
func unwrapRedirect(href string) string {
	if !strings.Contains(href, "/l/?") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Summary runs a search and formats the hits as "- title: snippet" lines.
// Web context is optional everywhere it is used, so failures are logged and
// yield an empty summary.
func Summary(ctx context.Context, s Searcher, query string, maxResults int, logger *zap.Logger) string {
	if s == nil {
		return ""
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	results, err := s.Search(ctx, query, maxResults)
	if err != nil {
		logger.Warn("web search failed", zap.String("query", query), zap.Error(err))
		return ""
	}

	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("- %s: %s", r.Title, r.Snippet))
	}
	return strings.Join(lines, "\n")
}
