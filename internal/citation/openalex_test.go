// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/papermap/pkg/types"
)

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1706.03762v7", "10.48550/arxiv.1706.03762"},
		{"1706.03762", "10.48550/arxiv.1706.03762"},
		{"2301.12345v12", "10.48550/arxiv.2301.12345"},
		{"hep-th/9901001v1", "10.48550/arxiv.hep-th/9901001"},
		{" 2401.00001v2 ", "10.48550/arxiv.2401.00001"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalKey(tt.in), "input %q", tt.in)
	}
}

// fakeOpenAlex serves works keyed by lowercase DOI and records each filter.
type fakeOpenAlex struct {
	works   map[string]work
	filters []string
	calls   atomic.Int32
	failOn  int32
}

func (f *fakeOpenAlex) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := f.calls.Add(1)
		if n == f.failOn {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		filter := r.URL.Query().Get("filter")
		f.filters = append(f.filters, filter)
		require.True(t, strings.HasPrefix(filter, "doi:"))
		assert.Equal(t, "id,doi,cited_by_count,referenced_works", r.URL.Query().Get("select"))

		var resp worksResponse
		for _, doi := range strings.Split(strings.TrimPrefix(filter, "doi:"), "|") {
			if wk, ok := f.works[doi]; ok {
				resp.Results = append(resp.Results, wk)
			}
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func newTestResolver(t *testing.T, f *fakeOpenAlex, batch int) *OpenAlex {
	t.Helper()
	ts := httptest.NewServer(f.handler(t))
	t.Cleanup(ts.Close)

	old := openAlexWorksBase
	openAlexWorksBase = ts.URL
	t.Cleanup(func() { openAlexWorksBase = old })

	return &OpenAlex{Client: ts.Client(), BatchSize: batch, MaxRetries: 1}
}

func TestResolveCountsAndIntraSetReferences(t *testing.T) {
	f := &fakeOpenAlex{works: map[string]work{
		"10.48550/arxiv.1706.03762": {
			ID: "https://openalex.org/W1", DOI: "https://doi.org/10.48550/arxiv.1706.03762",
			CitedByCount: 90000,
		},
		"10.48550/arxiv.1810.04805": {
			ID: "https://openalex.org/W2", DOI: "https://doi.org/10.48550/arxiv.1810.04805",
			CitedByCount: 70000,
			// Cites W1 (in set) and W99 (outside the set).
			ReferencedWorks: []string{"https://openalex.org/W1", "https://openalex.org/W99"},
		},
	}}
	r := newTestResolver(t, f, 50)

	ids := []string{"1706.03762v7", "1810.04805v2", "9999.99999v1"}
	got := r.Resolve(context.Background(), ids)

	require.Len(t, got, 3, "every input id has an entry")
	assert.Equal(t, types.CitationRecord{CitationCount: 90000}, got["1706.03762v7"])
	assert.Equal(t, types.CitationRecord{CitationCount: 70000, References: []string{"1706.03762v7"}}, got["1810.04805v2"])
	assert.Equal(t, types.CitationRecord{}, got["9999.99999v1"])
}

func TestResolveBatches(t *testing.T) {
	f := &fakeOpenAlex{works: map[string]work{}}
	r := newTestResolver(t, f, 2)

	ids := []string{"0001.00001", "0001.00002", "0001.00003", "0001.00004", "0001.00005"}
	got := r.Resolve(context.Background(), ids)

	assert.Len(t, got, 5)
	require.Len(t, f.filters, 3)
	assert.Equal(t, "doi:10.48550/arxiv.0001.00001|10.48550/arxiv.0001.00002", f.filters[0])
	assert.Equal(t, "doi:10.48550/arxiv.0001.00005", f.filters[2])
}

func TestResolveBatchSizeClamped(t *testing.T) {
	f := &fakeOpenAlex{works: map[string]work{}}
	r := newTestResolver(t, f, 500)

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("2401.%05d", i)
	}
	r.Resolve(context.Background(), ids)
	assert.Len(t, f.filters, 3, "120 ids in batches of at most 50")
}

func TestResolveFailedBatchIsNotFatal(t *testing.T) {
	f := &fakeOpenAlex{
		failOn: 1,
		works: map[string]work{
			"10.48550/arxiv.0001.00003": {ID: "W3", DOI: "https://doi.org/10.48550/arxiv.0001.00003", CitedByCount: 3},
		},
	}
	r := newTestResolver(t, f, 2)

	got := r.Resolve(context.Background(), []string{"0001.00001", "0001.00002", "0001.00003"})
	assert.Equal(t, types.CitationRecord{}, got["0001.00001"])
	assert.Equal(t, types.CitationRecord{}, got["0001.00002"])
	assert.Equal(t, 3, got["0001.00003"].CitationCount)
}

func TestResolveExactKeyMatchOnly(t *testing.T) {
	// A DOI that merely contains the requested id must not match.
	f := &fakeOpenAlex{works: map[string]work{
		"10.48550/arxiv.1706.0376": {ID: "W1", DOI: "https://doi.org/10.48550/arxiv.1706.03762", CitedByCount: 5},
	}}
	r := newTestResolver(t, f, 50)

	got := r.Resolve(context.Background(), []string{"1706.0376"})
	assert.Equal(t, types.CitationRecord{}, got["1706.0376"])
}

func TestResolveUnreachable(t *testing.T) {
	old := openAlexWorksBase
	openAlexWorksBase = "http://127.0.0.1:1"
	defer func() { openAlexWorksBase = old }()

	got := (&OpenAlex{}).Resolve(context.Background(), []string{"a", "b"})
	assert.Equal(t, map[string]types.CitationRecord{"a": {}, "b": {}}, got)
}
