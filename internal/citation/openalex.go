// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citation resolves citation counts and intra-set reference edges
// for arXiv papers through the OpenAlex works API.
package citation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/papermap/internal/httputil"
	"github.com/pdiddy/papermap/pkg/types"
)

// openAlexWorksBase is the OpenAlex works endpoint. Declared as a var so
// tests can substitute an httptest server.
var openAlexWorksBase = "https://api.openalex.org/works"

// MaxBatchSize is the largest OR-filter OpenAlex accepts in one call.
const MaxBatchSize = 50

// arxivDOIPrefix is the DataCite prefix arXiv registers DOIs under.
const arxivDOIPrefix = "10.48550/arxiv."

var versionSuffix = regexp.MustCompile(`v\d+$`)

// Resolver maps paper identifiers to citation records. The returned map has
// an entry for every input identifier; unresolved ones hold the zero record.
type Resolver interface {
	Resolve(ctx context.Context, ids []string) map[string]types.CitationRecord
}

// CanonicalKey returns the lowercased arXiv DOI for an identifier with any
// version suffix stripped, e.g. "1706.03762v7" → "10.48550/arxiv.1706.03762".
func CanonicalKey(id string) string {
	id = strings.TrimSpace(id)
	id = versionSuffix.ReplaceAllString(id, "")
	return strings.ToLower(arxivDOIPrefix + id)
}

// keyFromDOI normalizes a DOI as OpenAlex reports it ("https://doi.org/...").
func keyFromDOI(doi string) string {
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	return strings.ToLower(doi)
}

// OpenAlex resolves identifiers in batches through a DOI OR-filter.
type OpenAlex struct {
	Client    *http.Client
	Email     string
	UserAgent string
	// BatchSize is clamped to [1, MaxBatchSize]; zero means MaxBatchSize.
	BatchSize  int
	MaxRetries int
	Logger     *zap.Logger
}

type worksResponse struct {
	Results []work `json:"results"`
}

type work struct {
	ID              string   `json:"id"`
	DOI             string   `json:"doi"`
	CitedByCount    int      `json:"cited_by_count"`
	ReferencedWorks []string `json:"referenced_works"`
}

// Resolve looks up every identifier. A failed batch leaves its identifiers
// at the zero record and does not affect other batches.
func (o *OpenAlex) Resolve(ctx context.Context, ids []string) map[string]types.CitationRecord {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make(map[string]types.CitationRecord, len(ids))
	byKey := make(map[string][]string)
	var keys []string
	for _, id := range ids {
		out[id] = types.CitationRecord{}
		key := CanonicalKey(id)
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], id)
	}

	batch := o.BatchSize
	if batch <= 0 || batch > MaxBatchSize {
		batch = MaxBatchSize
	}

	var works []work
	for start := 0; start < len(keys); start += batch {
		end := min(start+batch, len(keys))
		got, err := o.fetchBatch(ctx, keys[start:end])
		if err != nil {
			logger.Warn("citation batch failed",
				zap.Int("batch_start", start), zap.Int("batch_size", end-start), zap.Error(err))
			continue
		}
		works = append(works, got...)
	}

	// OpenAlex work id → identifiers in this set, so referenced_works can be
	// mapped back without further calls.
	byWork := make(map[string][]string, len(works))
	for _, w := range works {
		if members, ok := byKey[keyFromDOI(w.DOI)]; ok && w.ID != "" {
			byWork[w.ID] = members
		}
	}

	for _, w := range works {
		members, ok := byKey[keyFromDOI(w.DOI)]
		if !ok {
			continue
		}
		var refs []string
		seen := make(map[string]bool)
		for _, ref := range w.ReferencedWorks {
			for _, target := range byWork[ref] {
				if !seen[target] {
					seen[target] = true
					refs = append(refs, target)
				}
			}
		}
		for _, id := range members {
			rec := types.CitationRecord{CitationCount: w.CitedByCount}
			for _, r := range refs {
				if r != id {
					rec.References = append(rec.References, r)
				}
			}
			out[id] = rec
		}
	}

	logger.Debug("citations resolved", zap.Int("papers", len(ids)), zap.Int("works", len(works)))
	return out
}

func (o *OpenAlex) fetchBatch(ctx context.Context, keys []string) ([]work, error) {
	params := url.Values{
		"filter":   {"doi:" + strings.Join(keys, "|")},
		"per_page": {strconv.Itoa(len(keys))},
		"select":   {"id,doi,cited_by_count,referenced_works"},
	}
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAlexWorksBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAlex request: %w", err)
	}
	if o.UserAgent != "" {
		req.Header.Set("User-Agent", o.UserAgent)
	}

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, o.MaxRetries)
	if err != nil {
		return nil, httputil.Unavailable("OpenAlex", err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus("OpenAlex", resp); err != nil {
		return nil, err
	}

	var wr worksResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("%w: parsing OpenAlex response: %v", types.ErrUpstreamUnavailable, err)
	}
	return wr.Results, nil
}
