// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/papermap/internal/chat"
	"github.com/pdiddy/papermap/internal/citation"
	"github.com/pdiddy/papermap/internal/cluster"
	"github.com/pdiddy/papermap/internal/contentcache"
	"github.com/pdiddy/papermap/internal/llm"
	"github.com/pdiddy/papermap/internal/parsejob"
	"github.com/pdiddy/papermap/internal/pdftext"
	"github.com/pdiddy/papermap/internal/search"
	"github.com/pdiddy/papermap/internal/websearch"
	"github.com/pdiddy/papermap/pkg/types"
)

// app is the wired service graph shared by every subcommand. The single
// Extractor carries the process-wide vision call limit.
type app struct {
	cfg      types.Config
	logger   *zap.Logger
	cache    contentcache.Cache
	jobs     *parsejob.Manager
	pipeline *search.Pipeline
	composer *chat.Composer
}

func newApp(ctx context.Context, cfg types.Config, logger *zap.Logger) (*app, error) {
	provider, err := llm.New(ctx, cfg.LLM, cfg.HTTP, cfg.Parse.PageMaxTokens, logger.Named("llm"))
	if err != nil {
		return nil, err
	}

	cache, err := contentcache.New(cfg.Cache)
	if err != nil {
		return nil, err
	}

	renderer, err := pdftext.NewRenderer(ctx, cfg.Parse)
	if err != nil {
		cache.Close()
		return nil, err
	}
	extractor := pdftext.NewExtractor(cfg.Parse, cfg.HTTP, renderer, provider, logger.Named("pdftext"))
	jobs := parsejob.New(extractor, cache, cfg.Parse.MaxJobs, logger.Named("parsejob"))

	web := &websearch.DuckDuckGo{
		Client:    &http.Client{},
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTP.Timeout,
	}

	pipeline := &search.Pipeline{
		Expander: &search.Expander{
			LLM:         provider,
			Web:         web,
			N:           cfg.Search.ExpandedQueries,
			Temperature: cfg.LLM.Temperature,
			Logger:      logger.Named("expand"),
		},
		Source:   search.NewArxivSource(cfg.Search, cfg.HTTP, logger.Named("arxiv")),
		Embedder: provider,
		Namer: &cluster.Namer{
			LLM:         provider,
			Temperature: cfg.LLM.Temperature,
			Logger:      logger.Named("namer"),
		},
		Citations: &citation.OpenAlex{
			Client:     &http.Client{Timeout: cfg.HTTP.Timeout},
			Email:      cfg.Citation.Email,
			UserAgent:  cfg.HTTP.UserAgent,
			BatchSize:  cfg.Citation.BatchSize,
			MaxRetries: cfg.LLM.MaxRetries,
			Logger:     logger.Named("openalex"),
		},
		Config: cfg.Search,
		NewRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		Logger: logger.Named("search"),
	}

	composer := chat.NewComposer(cfg.Chat, cfg.LLM.Temperature, provider, cache, jobs, web, logger.Named("chat"))

	return &app{
		cfg:      cfg,
		logger:   logger,
		cache:    cache,
		jobs:     jobs,
		pipeline: pipeline,
		composer: composer,
	}, nil
}

// Close stops running parse jobs before closing the cache they write to.
func (a *app) Close() error {
	return errors.Join(a.jobs.Close(), a.cache.Close())
}
