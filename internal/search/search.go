// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search turns a free-text research query into a clustered,
// projected and citation-linked paper set. The Pipeline expands the query,
// fetches candidates from a rate-limited paper source, deduplicates them,
// embeds and clusters them, then names clusters and resolves citations
// concurrently.
package search

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/papermap/internal/citation"
	"github.com/pdiddy/papermap/internal/cluster"
	"github.com/pdiddy/papermap/internal/llm"
	"github.com/pdiddy/papermap/pkg/types"
)

// Stage is a pipeline state. Stages only move forward.
type Stage int

const (
	StageExpanding Stage = iota
	StageFetching
	StageEmbedding
	StageClustering
	StageEnriching
	StageDone
)

var stageNames = [...]string{"expanding", "fetching", "embedding", "clustering", "enriching", "done"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// ClusterNamer labels the clusters of a paper set.
type ClusterNamer interface {
	Name(ctx context.Context, query string, papers []types.Paper) map[int]types.ClusterLabel
}

// Pipeline runs one search end to end. A Pipeline is safe for concurrent
// Run calls as long as NewRand returns a fresh generator per call.
type Pipeline struct {
	Expander  QueryExpander
	Source    PaperSource
	Embedder  llm.Embedder
	Namer     ClusterNamer
	Citations citation.Resolver
	Config    types.SearchConfig

	// NewRand seeds k-means for one run. Nil uses the global source.
	NewRand func() *rand.Rand
	// OnStage is called on every stage transition.
	OnStage func(Stage)
	Logger  *zap.Logger
}

// Run executes the pipeline. maxResults <= 0 uses Config.MaxResults.
func (p *Pipeline) Run(ctx context.Context, query string, maxResults int) (*types.SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", types.ErrValidation)
	}
	if maxResults <= 0 {
		maxResults = p.Config.MaxResults
	}
	logger := p.logger().With(zap.String("query", query))
	started := time.Now()

	p.enter(StageExpanding)
	queries := []string{query}
	if p.Expander != nil {
		queries = p.Expander.Expand(ctx, query)
	}
	logger.Info("queries expanded", zap.Strings("queries", queries))

	p.enter(StageFetching)
	papers, err := p.fetch(ctx, queries, maxResults)
	if err != nil {
		return nil, err
	}
	logger.Info("papers fetched", zap.Int("papers", len(papers)))

	resp := &types.SearchResponse{
		Papers:          papers,
		Categories:      []types.Category{},
		CitationLinks:   []types.CitationLink{},
		Query:           query,
		ExpandedQueries: queries,
	}
	if len(papers) < 2 {
		logger.Info("too few papers to cluster", zap.Int("papers", len(papers)))
		p.enter(StageDone)
		return resp, nil
	}

	p.enter(StageEmbedding)
	vectors, err := p.embed(ctx, papers)
	if err != nil {
		return nil, err
	}

	p.enter(StageClustering)
	if err := p.layout(papers, vectors); err != nil {
		return nil, err
	}

	p.enter(StageEnriching)
	labels, records := p.enrich(ctx, query, papers)
	applyEnrichment(resp, labels, records)

	p.enter(StageDone)
	logger.Info("search complete",
		zap.Int("papers", len(papers)),
		zap.Int("categories", len(resp.Categories)),
		zap.Int("citation_links", len(resp.CitationLinks)),
		zap.Duration("elapsed", time.Since(started)))
	return resp, nil
}

// fetch issues one source search per query, starting query i after
// i×ArxivDelay, and merges the results in query order. A query whose fetch
// fails contributes nothing; the stage fails only when every query failed.
func (p *Pipeline) fetch(ctx context.Context, queries []string, maxResults int) ([]types.Paper, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("%w: no paper source configured", types.ErrUpstreamUnavailable)
	}
	perQuery := max(p.Config.MinPerQuery, maxResults/len(queries))
	spacing := p.Config.ArxivDelay

	batches := make([][]types.Paper, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			if err := sleepCtx(ctx, time.Duration(i)*spacing); err != nil {
				errs[i] = err
				return nil
			}
			batches[i], errs[i] = p.Source.Search(ctx, q, perQuery)
			if errs[i] != nil {
				p.logger().Warn("paper fetch failed", zap.String("expanded_query", q), zap.Error(errs[i]))
			}
			return nil
		})
	}
	g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(queries) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: every paper fetch failed: %v", types.ErrUpstreamUnavailable, errs[0])
	}

	return Dedup(batches, maxResults), nil
}

// Dedup merges batches in order, keeping the first occurrence of each
// identifier, and truncates to maxResults.
func Dedup(batches [][]types.Paper, maxResults int) []types.Paper {
	seen := make(map[string]bool)
	var out []types.Paper
	for _, batch := range batches {
		for _, paper := range batch {
			if seen[paper.ID] {
				continue
			}
			seen[paper.ID] = true
			out = append(out, paper)
		}
	}
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// EmbeddingText is the text embedded for a paper: its title and the start
// of its abstract.
func EmbeddingText(paper types.Paper, abstractChars int) string {
	abstract := paper.Abstract
	if abstractChars > 0 {
		if r := []rune(abstract); len(r) > abstractChars {
			abstract = string(r[:abstractChars])
		}
	}
	return paper.Title + ". " + abstract
}

func (p *Pipeline) embed(ctx context.Context, papers []types.Paper) ([][]float64, error) {
	if p.Embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", types.ErrUpstreamUnavailable)
	}
	texts := make([]string, len(papers))
	for i, paper := range papers {
		texts[i] = EmbeddingText(paper, p.Config.EmbedAbstractChars)
	}

	vectors, err := p.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding papers: %w", err)
	}
	if len(vectors) != len(papers) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d papers", types.ErrUpstreamUnavailable, len(vectors), len(papers))
	}
	if err := cluster.CheckDimensions(vectors); err != nil {
		return nil, fmt.Errorf("%w: embeddings: %v", types.ErrUpstreamUnavailable, err)
	}
	return vectors, nil
}

// layout assigns clusters, 2D positions and neighbors from one vector set.
func (p *Pipeline) layout(papers []types.Paper, vectors [][]float64) error {
	k := min(cluster.Count(len(papers)), len(papers))
	var rng *rand.Rand
	if p.NewRand != nil {
		rng = p.NewRand()
	}

	labels, err := cluster.AssignClusters(vectors, k, rng)
	if err != nil {
		return fmt.Errorf("clustering papers: %w", err)
	}
	points, err := cluster.ProjectTo2D(vectors)
	if err != nil {
		return fmt.Errorf("projecting papers: %w", err)
	}
	neighbors := cluster.NearestNeighbors(vectors, p.Config.Neighbors)

	for i := range papers {
		papers[i].Cluster = types.IntPtr(labels[i])
		papers[i].X = types.FloatPtr(points[i].X)
		papers[i].Y = types.FloatPtr(points[i].Y)
		ids := make([]string, len(neighbors[i]))
		for j, n := range neighbors[i] {
			ids[j] = papers[n].ID
		}
		papers[i].Neighbors = ids
	}
	p.logger().Debug("papers laid out", zap.Int("clusters", k), zap.Int("papers", len(papers)))
	return nil
}

// enrich runs cluster naming and citation resolution concurrently. Neither
// can fail; both degrade to placeholder output.
func (p *Pipeline) enrich(ctx context.Context, query string, papers []types.Paper) (map[int]types.ClusterLabel, map[string]types.CitationRecord) {
	var labels map[int]types.ClusterLabel
	var records map[string]types.CitationRecord

	var g errgroup.Group
	g.Go(func() error {
		if p.Namer != nil {
			labels = p.Namer.Name(ctx, query, papers)
		}
		return nil
	})
	g.Go(func() error {
		if p.Citations != nil {
			ids := make([]string, len(papers))
			for i, paper := range papers {
				ids[i] = paper.ID
			}
			records = p.Citations.Resolve(ctx, ids)
		}
		return nil
	})
	g.Wait()
	return labels, records
}

// applyEnrichment writes names, categories, citation counts and intra-set
// links into resp.
func applyEnrichment(resp *types.SearchResponse, labels map[int]types.ClusterLabel, records map[string]types.CitationRecord) {
	inSet := make(map[string]bool, len(resp.Papers))
	for _, paper := range resp.Papers {
		inSet[paper.ID] = true
	}

	for i := range resp.Papers {
		paper := &resp.Papers[i]
		if paper.Cluster != nil {
			label, ok := labels[*paper.Cluster]
			if !ok {
				label = cluster.PlaceholderLabel(*paper.Cluster)
			}
			paper.ClusterName = types.StringPtr(label.Name)
		}

		rec := records[paper.ID]
		paper.CitationCount = types.IntPtr(rec.CitationCount)
		paper.References = []string{}
		for _, ref := range rec.References {
			if !inSet[ref] || ref == paper.ID {
				continue
			}
			paper.References = append(paper.References, ref)
			resp.CitationLinks = append(resp.CitationLinks, types.CitationLink{Source: paper.ID, Target: ref})
		}
		resp.MaxCitations = max(resp.MaxCitations, rec.CitationCount)
	}

	resp.Categories = cluster.BuildCategories(resp.Papers, labels)
}

func (p *Pipeline) enter(s Stage) {
	p.logger().Debug("search stage", zap.Stringer("stage", s))
	if p.OnStage != nil {
		p.OnStage(s)
	}
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
