// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/papermap/internal/httputil"
	"github.com/pdiddy/papermap/pkg/types"
)

const atomEntry = `
  <entry>
    <id>http://arxiv.org/abs/%[1]s</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is
      All You Need %[1]s</title>
    <summary>  The dominant sequence transduction models
  are based on recurrent networks.</summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <author><name>Niki Parmar</name></author>
    <author><name>Jakob Uszkoreit</name></author>
    <author><name>Llion Jones</name></author>
    <author><name>Aidan N. Gomez</name></author>
    <link href="http://arxiv.org/abs/%[1]s" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/%[1]s" rel="related" type="application/pdf"/>
    <category term="cs.CL" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
  </entry>`

func atomFeed(ids ...string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><feed xmlns="http://www.w3.org/2005/Atom">`)
	for _, id := range ids {
		fmt.Fprintf(&sb, atomEntry, id)
	}
	sb.WriteString(`</feed>`)
	return sb.String()
}

func withArxivServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	t.Cleanup(func() { arxivAPIBase = old })
	return ts
}

func TestArxivSourceParsesEntries(t *testing.T) {
	ts := withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "attention", r.URL.Query().Get("search_query"))
		assert.Equal(t, "0", r.URL.Query().Get("start"))
		assert.Equal(t, "relevance", r.URL.Query().Get("sortBy"))
		assert.Equal(t, "papermap-test", r.Header.Get("User-Agent"))
		w.Write([]byte(atomFeed("1706.03762v7")))
	})

	src := &ArxivSource{Client: ts.Client(), UserAgent: "papermap-test", Delay: time.Millisecond}
	got, err := src.Search(context.Background(), "attention", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	p := got[0]
	assert.Equal(t, "1706.03762v7", p.ID, "version suffix is kept")
	assert.Equal(t, "Attention Is All You Need 1706.03762v7", p.Title)
	assert.Equal(t, "The dominant sequence transduction models are based on recurrent networks.", p.Abstract)
	assert.Len(t, p.Authors, types.MaxAuthors)
	assert.Equal(t, "Llion Jones", p.Authors[4])
	assert.Equal(t, "http://arxiv.org/pdf/1706.03762v7", p.PDFURL)
	assert.Equal(t, []string{"cs.CL", "cs.LG"}, p.Categories)
	assert.Equal(t, 2017, p.Published.Year())
}

func TestArxivSourcePages(t *testing.T) {
	var starts []string
	var mu sync.Mutex
	ts := withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		starts = append(starts, r.URL.Query().Get("start")+"/"+r.URL.Query().Get("max_results"))
		mu.Unlock()

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		n, _ := strconv.Atoi(r.URL.Query().Get("max_results"))
		var ids []string
		for i := start; i < start+n; i++ {
			ids = append(ids, fmt.Sprintf("2401.%05d", i))
		}
		w.Write([]byte(atomFeed(ids...)))
	})

	src := &ArxivSource{Client: ts.Client(), PageSize: 2, Delay: time.Millisecond}
	got, err := src.Search(context.Background(), "q", 5)
	require.NoError(t, err)

	assert.Len(t, got, 5)
	assert.Equal(t, []string{"0/2", "2/2", "4/1"}, starts)
	assert.Equal(t, "2401.00004", got[4].ID)
}

func TestArxivSourceStopsOnShortPage(t *testing.T) {
	var calls atomic.Int32
	ts := withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte(atomFeed("a1", "a2")))
	})

	src := &ArxivSource{Client: ts.Client(), PageSize: 10, Delay: time.Millisecond}
	got, err := src.Search(context.Background(), "q", 50)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestArxivSourceKeepsPartialResults(t *testing.T) {
	var calls atomic.Int32
	ts := withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) > 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(atomFeed("a1", "a2")))
	})

	src := &ArxivSource{Client: ts.Client(), PageSize: 2, Delay: time.Millisecond}
	got, err := src.Search(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestArxivSourceFirstPageFailure(t *testing.T) {
	ts := withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	src := &ArxivSource{Client: ts.Client(), Delay: time.Millisecond}
	_, err := src.Search(context.Background(), "q", 10)
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
}

func TestArxivSourceSkipsErrorEntry(t *testing.T) {
	ts := withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"><entry><id>http://arxiv.org/api/errors#incorrect_id</id><title>Error</title></entry></feed>`))
	})

	src := &ArxivSource{Client: ts.Client(), Delay: time.Millisecond}
	got, err := src.Search(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestArxivSourceSpacesConcurrentRequests(t *testing.T) {
	var mu sync.Mutex
	var times []time.Time
	ts := withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		w.Write([]byte(atomFeed()))
	})

	const spacing = 25 * time.Millisecond
	src := &ArxivSource{Client: ts.Client(), Delay: spacing}

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src.Search(context.Background(), fmt.Sprintf("q%d", i), 5)
		}()
	}
	wg.Wait()

	require.Len(t, times, 4)
	first, last := times[0], times[0]
	for _, tm := range times {
		if tm.Before(first) {
			first = tm
		}
		if tm.After(last) {
			last = tm
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 2*spacing)
}

func TestArxivSourceRetriesKeepSpacing(t *testing.T) {
	old := httputil.RetryBaseDelay
	httputil.RetryBaseDelay = time.Millisecond
	t.Cleanup(func() { httputil.RetryBaseDelay = old })

	var mu sync.Mutex
	var times []time.Time
	ts := withArxivServer(t, func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		first := len(times) == 1
		mu.Unlock()
		if first {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(atomFeed()))
	})

	const spacing = 80 * time.Millisecond
	src := &ArxivSource{Client: ts.Client(), Delay: spacing}

	var wg sync.WaitGroup
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := src.Search(context.Background(), fmt.Sprintf("q%d", i), 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, times, 3, "two queries plus one retry")
	slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })
	for i := 1; i < len(times); i++ {
		// Allow for loopback delivery jitter on top of the send-side spacing.
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), spacing-10*time.Millisecond, "requests %d and %d too close", i-1, i)
	}
}

func TestArxivSourceEmptyQuery(t *testing.T) {
	_, err := (&ArxivSource{}).Search(context.Background(), " ", 10)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041v1"},
		{"http://arxiv.org/abs/hep-th/9901001v2", "hep-th/9901001v2"},
		{"http://arxiv.org/api/errors#incorrect_id", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractArxivID(tt.in))
	}
}
