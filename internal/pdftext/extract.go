// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdftext turns a PDF at a URL into plain text. Pages are rendered
// to PNG by a bounded worker pool, transcribed by a vision model under a
// concurrency limit shared by every extraction in the process, and joined
// back in page order.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/papermap/internal/httputil"
	"github.com/pdiddy/papermap/internal/llm"
	"github.com/pdiddy/papermap/pkg/types"
)

const (
	defaultDPI           = 150
	defaultRenderWorkers = 10
	defaultFetchTimeout  = 60 * time.Second

	// defaultMaxPDFBytes bounds a download.
	defaultMaxPDFBytes = 100 << 20
)

// Progress milestones reported through ProgressFunc.
const (
	ProgressFetched  = 10
	ProgressRendered = 30
	ProgressPages    = 95
)

const pagePrompt = "Extract all text content from this research paper page. Include section headers, body text, equations (describe them), figure captions, and table contents. Be thorough but concise."

// ErrNoText is returned when no page produced any text.
var ErrNoText = errors.New("no text extracted from document")

// ProgressFunc receives a percentage in [0, 100]. Calls may come from
// several goroutines but never concurrently.
type ProgressFunc func(percent int)

// Extractor converts PDFs to text. One Extractor is meant to be shared so
// that Limiter bounds vision calls across all documents. A nil Limiter
// leaves vision calls unbounded.
type Extractor struct {
	Renderer Renderer
	VLM      llm.VisionCompleter
	Limiter  *semaphore.Weighted

	RenderWorkers int
	DPI           int
	FetchTimeout  time.Duration
	// MaxBytes rejects larger downloads; 0 means 100 MiB.
	MaxBytes      int64
	Client        *http.Client
	UserAgent     string
	Logger        *zap.Logger
}

// NewExtractor wires an Extractor from configuration.
func NewExtractor(cfg types.ParseConfig, httpCfg types.HTTPConfig, renderer Renderer, vlm llm.VisionCompleter, logger *zap.Logger) *Extractor {
	concurrency := cfg.VLMConcurrency
	if concurrency <= 0 {
		concurrency = 15
	}
	return &Extractor{
		Renderer:      renderer,
		VLM:           vlm,
		Limiter:       semaphore.NewWeighted(int64(concurrency)),
		RenderWorkers: cfg.RenderWorkers,
		DPI:           cfg.DPI,
		FetchTimeout:  cfg.FetchTimeout,
		Client:        &http.Client{},
		UserAgent:     httpCfg.UserAgent,
		Logger:        logger,
	}
}

// Extract downloads sourceURL and returns its text as "[Page N]" sections
// separated by blank lines. Pages whose rendering or transcription failed
// are left out. A failed download is an error; so is a document with no
// text at all.
func (e *Extractor) Extract(ctx context.Context, sourceURL string, progress ProgressFunc) (string, error) {
	logger := e.logger().With(zap.String("url", sourceURL))
	report := serialize(progress)

	pdf, err := e.fetch(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	report(ProgressFetched)

	doc, err := e.Renderer.Open(ctx, pdf)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	pages := doc.NumPages()
	if pages == 0 {
		return "", ErrNoText
	}
	images := e.render(ctx, doc, pages, logger)
	report(ProgressRendered)

	texts := e.transcribe(ctx, images, report, logger)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var sections []string
	for i, text := range texts {
		if text == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("[Page %d]\n%s", i+1, text))
	}
	logger.Info("document extracted", zap.Int("pages", pages), zap.Int("pages_with_text", len(sections)))
	if len(sections) == 0 {
		return "", ErrNoText
	}
	return strings.Join(sections, "\n\n"), nil
}

func (e *Extractor) fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	timeout := e.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: bad source url: %v", types.ErrValidation, err)
	}
	if e.UserAgent != "" {
		req.Header.Set("User-Agent", e.UserAgent)
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, httputil.Unavailable("pdf download", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus("pdf download", resp); err != nil {
		return nil, err
	}
	limit := e.MaxBytes
	if limit <= 0 {
		limit = defaultMaxPDFBytes
	}
	pdf, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, httputil.Unavailable("pdf download", err)
	}
	if int64(len(pdf)) > limit {
		return nil, fmt.Errorf("%w: pdf exceeds %d bytes", types.ErrValidation, limit)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: pdf download returned an empty body", types.ErrUpstreamUnavailable)
	}
	return pdf, nil
}

// render rasterizes every page with at most RenderWorkers in flight. A page
// that fails to render stays nil.
func (e *Extractor) render(ctx context.Context, doc Document, pages int, logger *zap.Logger) [][]byte {
	workers := e.RenderWorkers
	if workers <= 0 {
		workers = defaultRenderWorkers
	}
	dpi := e.DPI
	if dpi <= 0 {
		dpi = defaultDPI
	}

	images := make([][]byte, pages)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range pages {
		g.Go(func() error {
			png, err := doc.RenderPage(ctx, i, dpi)
			if err != nil {
				logger.Warn("page render failed", zap.Int("page", i+1), zap.Error(err))
				return nil
			}
			images[i] = png
			return nil
		})
	}
	g.Wait()
	return images
}

// transcribe sends each rendered page to the vision model. Results are
// indexed by page, so completion order does not matter.
func (e *Extractor) transcribe(ctx context.Context, images [][]byte, report ProgressFunc, logger *zap.Logger) []string {
	texts := make([]string, len(images))
	total := len(images)

	var mu sync.Mutex
	done := 0
	finish := func() {
		mu.Lock()
		done++
		pct := ProgressRendered + (ProgressPages-ProgressRendered)*done/total
		mu.Unlock()
		report(pct)
	}

	var wg sync.WaitGroup
	for i, png := range images {
		if png == nil {
			finish()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer finish()
			if e.Limiter != nil {
				if err := e.Limiter.Acquire(ctx, 1); err != nil {
					return
				}
				defer e.Limiter.Release(1)
			}

			text, err := e.VLM.CompleteWithImage(ctx, pagePrompt, png)
			if err != nil {
				logger.Warn("page transcription failed", zap.Int("page", i+1), zap.Error(err))
				return
			}
			texts[i] = strings.TrimSpace(text)
		}()
	}
	wg.Wait()
	return texts
}

func (e *Extractor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// serialize wraps fn so it is never called concurrently and never sees a
// value lower than one it already reported.
func serialize(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return func(int) {}
	}
	var mu sync.Mutex
	last := 0
	return func(pct int) {
		mu.Lock()
		defer mu.Unlock()
		if pct <= last {
			return
		}
		last = pct
		fn(pct)
	}
}
