// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdftext

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/pdiddy/papermap/internal/container"
	"github.com/pdiddy/papermap/pkg/types"
)

// Renderer opens a PDF for page rasterization.
type Renderer interface {
	Open(ctx context.Context, pdf []byte) (Document, error)
}

// Document is an opened PDF. RenderPage must be safe for concurrent use;
// page indexes are zero-based.
type Document interface {
	NumPages() int
	RenderPage(ctx context.Context, page, dpi int) ([]byte, error)
	Close() error
}

// NewRenderer returns the backend selected by cfg.Renderer.
func NewRenderer(ctx context.Context, cfg types.ParseConfig) (Renderer, error) {
	switch cfg.Renderer {
	case types.RendererFitz, "":
		return FitzRenderer{}, nil
	case types.RendererPoppler:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, fmt.Errorf("poppler renderer: %w", err)
		}
		if err := rt.ImageExists(ctx, cfg.PopplerImage); err != nil {
			return nil, fmt.Errorf("poppler renderer: %w", err)
		}
		return &PopplerRenderer{Runtime: rt, Image: cfg.PopplerImage}, nil
	default:
		return nil, fmt.Errorf("%w: unknown renderer %q", types.ErrValidation, cfg.Renderer)
	}
}

// --- MuPDF ---

// FitzRenderer rasterizes pages in-process with MuPDF.
type FitzRenderer struct{}

// Open parses pdf once to count pages. Concurrent renders each borrow their
// own MuPDF handle, since a handle serializes its calls.
func (FitzRenderer) Open(_ context.Context, pdf []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	d := &fitzDocument{data: pdf, pages: doc.NumPage()}
	d.idle = append(d.idle, doc)
	return d, nil
}

type fitzDocument struct {
	data  []byte
	pages int

	mu     sync.Mutex
	idle   []*fitz.Document
	closed bool
}

func (d *fitzDocument) NumPages() int { return d.pages }

func (d *fitzDocument) RenderPage(ctx context.Context, page, dpi int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := d.acquire()
	if err != nil {
		return nil, err
	}
	defer d.release(doc)

	png, err := doc.ImagePNG(page, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("rendering page %d: %w", page+1, err)
	}
	return png, nil
}

func (d *fitzDocument) acquire() (*fitz.Document, error) {
	d.mu.Lock()
	if n := len(d.idle); n > 0 {
		doc := d.idle[n-1]
		d.idle = d.idle[:n-1]
		d.mu.Unlock()
		return doc, nil
	}
	d.mu.Unlock()

	doc, err := fitz.NewFromMemory(d.data)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	return doc, nil
}

func (d *fitzDocument) release(doc *fitz.Document) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		doc.Close()
		return
	}
	d.idle = append(d.idle, doc)
}

func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	var firstErr error
	for _, doc := range d.idle {
		if err := doc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.idle = nil
	return firstErr
}

// --- Poppler ---

// PopplerRenderer rasterizes pages with pdfinfo and pdftoppm inside a
// container, feeding the PDF on stdin.
type PopplerRenderer struct {
	Runtime container.Runtime
	Image   string
}

func (r *PopplerRenderer) Open(ctx context.Context, pdf []byte) (Document, error) {
	var out bytes.Buffer
	if err := r.Runtime.Run(ctx, r.Image, []string{"pdfinfo", "-"}, bytes.NewReader(pdf), &out); err != nil {
		return nil, fmt.Errorf("reading pdf info: %w", err)
	}
	pages, err := parsePageCount(out.String())
	if err != nil {
		return nil, err
	}
	return &popplerDocument{r: r, data: pdf, pages: pages}, nil
}

type popplerDocument struct {
	r     *PopplerRenderer
	data  []byte
	pages int
}

func (d *popplerDocument) NumPages() int { return d.pages }

func (d *popplerDocument) RenderPage(ctx context.Context, page, dpi int) ([]byte, error) {
	n := strconv.Itoa(page + 1)
	args := []string{"pdftoppm", "-png", "-r", strconv.Itoa(dpi), "-f", n, "-l", n, "-"}

	var out bytes.Buffer
	if err := d.r.Runtime.Run(ctx, d.r.Image, args, bytes.NewReader(d.data), &out); err != nil {
		return nil, fmt.Errorf("rendering page %s: %w", n, err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("rendering page %s: empty image", n)
	}
	return out.Bytes(), nil
}

func (d *popplerDocument) Close() error { return nil }

// parsePageCount reads the "Pages:" line of pdfinfo output.
func parsePageCount(info string) (int, error) {
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Pages" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("parsing page count %q: %w", value, err)
		}
		return n, nil
	}
	return 0, errors.New("pdfinfo output has no page count")
}
