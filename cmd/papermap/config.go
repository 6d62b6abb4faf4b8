// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/papermap/internal/secrets"
	"github.com/pdiddy/papermap/pkg/types"
)

// bindEnv maps PAPERMAP_SECTION_KEY environment variables onto
// section.key config keys.
func bindEnv() {
	viper.SetEnvPrefix("PAPERMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()
}

// setDefaults registers every config key so that environment variables
// resolve even when no config file mentions the key.
func setDefaults() {
	d := types.DefaultConfig()

	viper.SetDefault("http.timeout", d.HTTP.Timeout)
	viper.SetDefault("http.user_agent", d.HTTP.UserAgent)

	viper.SetDefault("search.max_results", d.Search.MaxResults)
	viper.SetDefault("search.expanded_queries", d.Search.ExpandedQueries)
	viper.SetDefault("search.min_per_query", d.Search.MinPerQuery)
	viper.SetDefault("search.arxiv_delay", d.Search.ArxivDelay)
	viper.SetDefault("search.arxiv_page_size", d.Search.ArxivPageSize)
	viper.SetDefault("search.neighbors", d.Search.Neighbors)
	viper.SetDefault("search.embed_abstract_chars", d.Search.EmbedAbstractChars)

	viper.SetDefault("llm.provider", string(d.LLM.Provider))
	viper.SetDefault("llm.api_key", d.LLM.APIKey)
	viper.SetDefault("llm.base_url", d.LLM.BaseURL)
	viper.SetDefault("llm.chat_model", d.LLM.ChatModel)
	viper.SetDefault("llm.vision_model", d.LLM.VisionModel)
	viper.SetDefault("llm.embedding_model", d.LLM.EmbeddingModel)
	viper.SetDefault("llm.temperature", d.LLM.Temperature)
	viper.SetDefault("llm.chat_timeout", d.LLM.ChatTimeout)
	viper.SetDefault("llm.embed_timeout", d.LLM.EmbedTimeout)
	viper.SetDefault("llm.embedding_cache_size", d.LLM.EmbeddingCacheSize)
	viper.SetDefault("llm.max_retries", d.LLM.MaxRetries)

	viper.SetDefault("citation.batch_size", d.Citation.BatchSize)
	viper.SetDefault("citation.email", d.Citation.Email)

	viper.SetDefault("parse.vlm_concurrency", d.Parse.VLMConcurrency)
	viper.SetDefault("parse.render_workers", d.Parse.RenderWorkers)
	viper.SetDefault("parse.dpi", d.Parse.DPI)
	viper.SetDefault("parse.max_jobs", d.Parse.MaxJobs)
	viper.SetDefault("parse.fetch_timeout", d.Parse.FetchTimeout)
	viper.SetDefault("parse.renderer", string(d.Parse.Renderer))
	viper.SetDefault("parse.poppler_image", d.Parse.PopplerImage)
	viper.SetDefault("parse.page_max_tokens", d.Parse.PageMaxTokens)

	viper.SetDefault("cache.path", d.Cache.Path)
	viper.SetDefault("cache.max_entries", d.Cache.MaxEntries)

	viper.SetDefault("chat.content_chars", d.Chat.ContentChars)
	viper.SetDefault("chat.web_results", d.Chat.WebResults)

	viper.SetDefault("server.addr", d.Server.Addr)
}

// loadConfig resolves the configuration from flags, environment, config
// file and defaults, in that order, then fills credentials from secrets.
func loadConfig(s secrets.Secrets) types.Config {
	cfg := types.Config{
		HTTP: types.HTTPConfig{
			Timeout:   viper.GetDuration("http.timeout"),
			UserAgent: viper.GetString("http.user_agent"),
		},
		Search: types.SearchConfig{
			MaxResults:         viper.GetInt("search.max_results"),
			ExpandedQueries:    viper.GetInt("search.expanded_queries"),
			MinPerQuery:        viper.GetInt("search.min_per_query"),
			ArxivDelay:         viper.GetDuration("search.arxiv_delay"),
			ArxivPageSize:      viper.GetInt("search.arxiv_page_size"),
			Neighbors:          viper.GetInt("search.neighbors"),
			EmbedAbstractChars: viper.GetInt("search.embed_abstract_chars"),
		},
		LLM: types.LLMConfig{
			Provider:           types.LLMProvider(viper.GetString("llm.provider")),
			APIKey:             viper.GetString("llm.api_key"),
			BaseURL:            viper.GetString("llm.base_url"),
			ChatModel:          viper.GetString("llm.chat_model"),
			VisionModel:        viper.GetString("llm.vision_model"),
			EmbeddingModel:     viper.GetString("llm.embedding_model"),
			Temperature:        viper.GetFloat64("llm.temperature"),
			ChatTimeout:        viper.GetDuration("llm.chat_timeout"),
			EmbedTimeout:       viper.GetDuration("llm.embed_timeout"),
			EmbeddingCacheSize: viper.GetInt("llm.embedding_cache_size"),
			MaxRetries:         viper.GetInt("llm.max_retries"),
		},
		Citation: types.CitationConfig{
			BatchSize: viper.GetInt("citation.batch_size"),
			Email:     viper.GetString("citation.email"),
		},
		Parse: types.ParseConfig{
			VLMConcurrency: viper.GetInt("parse.vlm_concurrency"),
			RenderWorkers:  viper.GetInt("parse.render_workers"),
			DPI:            viper.GetInt("parse.dpi"),
			MaxJobs:        viper.GetInt("parse.max_jobs"),
			FetchTimeout:   viper.GetDuration("parse.fetch_timeout"),
			Renderer:       types.RendererKind(viper.GetString("parse.renderer")),
			PopplerImage:   viper.GetString("parse.poppler_image"),
			PageMaxTokens:  viper.GetInt("parse.page_max_tokens"),
		},
		Cache: types.CacheConfig{
			Path:       viper.GetString("cache.path"),
			MaxEntries: viper.GetInt("cache.max_entries"),
		},
		Chat: types.ChatConfig{
			ContentChars: viper.GetInt("chat.content_chars"),
			WebResults:   viper.GetInt("chat.web_results"),
		},
		Server: types.ServerConfig{
			Addr: viper.GetString("server.addr"),
		},
	}

	apiKeyName := secrets.OpenRouterAPIKey
	if cfg.LLM.Provider == types.ProviderGemini {
		apiKeyName = secrets.GeminiAPIKey
	}
	cfg.LLM.APIKey = s.Or(cfg.LLM.APIKey, apiKeyName)
	cfg.Citation.Email = s.Or(cfg.Citation.Email, secrets.OpenAlexEmail)
	return cfg
}
