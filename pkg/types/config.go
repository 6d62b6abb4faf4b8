// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the default HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "papermap/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the search pipeline.
type SearchConfig struct {
	// MaxResults caps the deduplicated result set (default 200).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// ExpandedQueries is the number of queries the expander targets (default 6).
	ExpandedQueries int `json:"expanded_queries" yaml:"expanded_queries"`

	// MinPerQuery is the floor on papers requested per expanded query (default 20).
	MinPerQuery int `json:"min_per_query" yaml:"min_per_query"`

	// ArxivDelay is the minimum spacing between arXiv API requests (default 3s).
	ArxivDelay time.Duration `json:"arxiv_delay" yaml:"arxiv_delay"`

	// ArxivPageSize is the number of results per arXiv API page (default 100).
	ArxivPageSize int `json:"arxiv_page_size" yaml:"arxiv_page_size"`

	// Neighbors is the number of nearest neighbors kept per paper (default 3).
	Neighbors int `json:"neighbors" yaml:"neighbors"`

	// EmbedAbstractChars truncates the abstract in the embedding text (default 500).
	EmbedAbstractChars int `json:"embed_abstract_chars" yaml:"embed_abstract_chars"`
}

// LLMProvider selects the language-model backend.
type LLMProvider string

const (
	ProviderOpenRouter LLMProvider = "openrouter"
	ProviderGemini     LLMProvider = "gemini"
)

// LLMConfig holds settings shared by completion, vision and embedding calls.
type LLMConfig struct {
	// Provider selects openrouter or gemini.
	Provider LLMProvider `json:"provider" yaml:"provider"`

	// APIKey authenticates against the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the OpenRouter API root.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// ChatModel is used for query expansion, cluster naming and chat.
	ChatModel string `json:"chat_model" yaml:"chat_model"`

	// VisionModel extracts text from rendered PDF pages.
	VisionModel string `json:"vision_model" yaml:"vision_model"`

	// EmbeddingModel produces paper embeddings.
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`

	// Temperature is the default sampling temperature (default 0.3).
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// ChatTimeout bounds completion and vision calls (default 120s).
	ChatTimeout time.Duration `json:"chat_timeout" yaml:"chat_timeout"`

	// EmbedTimeout bounds embedding calls, which carry large batches (default 300s).
	EmbedTimeout time.Duration `json:"embed_timeout" yaml:"embed_timeout"`

	// EmbeddingCacheSize is the number of embeddings kept in memory (default 10000).
	EmbeddingCacheSize int `json:"embedding_cache_size" yaml:"embedding_cache_size"`

	// MaxRetries is the number of 429 retries per call (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// CitationConfig holds settings for citation resolution.
type CitationConfig struct {
	// BatchSize is the number of identifiers per OpenAlex request (max 50).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Email is sent as mailto for OpenAlex polite pool access.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// RendererKind selects the PDF page rendering backend.
type RendererKind string

const (
	RendererFitz    RendererKind = "fitz"
	RendererPoppler RendererKind = "poppler"
)

// ParseConfig holds settings for PDF text extraction and parse jobs.
type ParseConfig struct {
	// VLMConcurrency caps in-flight vision calls process-wide (default 15).
	VLMConcurrency int `json:"vlm_concurrency" yaml:"vlm_concurrency"`

	// RenderWorkers caps concurrent page renders per document (default 10).
	RenderWorkers int `json:"render_workers" yaml:"render_workers"`

	// DPI is the page rendering resolution (default 150).
	DPI int `json:"dpi" yaml:"dpi"`

	// MaxJobs caps parse jobs running at once; the rest stay pending (default 4).
	MaxJobs int `json:"max_jobs" yaml:"max_jobs"`

	// FetchTimeout bounds the PDF download (default 60s).
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout"`

	// Renderer selects fitz (in-process MuPDF) or poppler (container).
	Renderer RendererKind `json:"renderer" yaml:"renderer"`

	// PopplerImage is the container image providing pdfinfo and pdftoppm.
	PopplerImage string `json:"poppler_image" yaml:"poppler_image"`

	// PageMaxTokens caps the vision model output per page (default 4000).
	PageMaxTokens int `json:"page_max_tokens" yaml:"page_max_tokens"`
}

// CacheConfig holds settings for the parsed content cache.
type CacheConfig struct {
	// Path is the SQLite database file. Empty keeps the cache in memory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// MaxEntries bounds the in-memory cache (default 1000 documents).
	MaxEntries int `json:"max_entries" yaml:"max_entries"`
}

// ChatConfig holds settings for the chat composer.
type ChatConfig struct {
	// ContentChars truncates each paper's extracted text in the prompt (default 15000).
	ContentChars int `json:"content_chars" yaml:"content_chars"`

	// WebResults is the number of web results summarized per message (default 3).
	WebResults int `json:"web_results" yaml:"web_results"`
}

// ServerConfig holds settings for the HTTP front door.
type ServerConfig struct {
	// Addr is the listen address (default ":8000").
	Addr string `json:"addr" yaml:"addr"`
}

// Config groups all stage configurations.
type Config struct {
	HTTP     HTTPConfig     `json:"http" yaml:"http"`
	Search   SearchConfig   `json:"search" yaml:"search"`
	LLM      LLMConfig      `json:"llm" yaml:"llm"`
	Citation CitationConfig `json:"citation" yaml:"citation"`
	Parse    ParseConfig    `json:"parse" yaml:"parse"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Chat     ChatConfig     `json:"chat" yaml:"chat"`
	Server   ServerConfig   `json:"server" yaml:"server"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Timeout:   60 * time.Second,
			UserAgent: "papermap/0.1",
		},
		Search: SearchConfig{
			MaxResults:         200,
			ExpandedQueries:    6,
			MinPerQuery:        20,
			ArxivDelay:         3 * time.Second,
			ArxivPageSize:      100,
			Neighbors:          3,
			EmbedAbstractChars: 500,
		},
		LLM: LLMConfig{
			Provider:           ProviderOpenRouter,
			ChatModel:          "anthropic/claude-sonnet-4",
			VisionModel:        "qwen/qwen3-vl-235b-a22b-instruct",
			EmbeddingModel:     "qwen/qwen3-embedding-8b",
			Temperature:        0.3,
			ChatTimeout:        120 * time.Second,
			EmbedTimeout:       300 * time.Second,
			EmbeddingCacheSize: 10000,
			MaxRetries:         3,
		},
		Citation: CitationConfig{
			BatchSize: 50,
		},
		Parse: ParseConfig{
			VLMConcurrency: 15,
			RenderWorkers:  10,
			DPI:            150,
			MaxJobs:        4,
			FetchTimeout:   60 * time.Second,
			Renderer:       RendererFitz,
			PopplerImage:   "minidocks/poppler:latest",
			PageMaxTokens:  4000,
		},
		Cache: CacheConfig{
			MaxEntries: 1000,
		},
		Chat: ChatConfig{
			ContentChars: 15000,
			WebResults:   3,
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
	}
}
