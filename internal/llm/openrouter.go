// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/papermap/internal/httputil"
	"github.com/pdiddy/papermap/pkg/types"
)

// openRouterAPIBase is the OpenRouter API root. Package-level var for test
// substitution.
var openRouterAPIBase = "https://openrouter.ai/api/v1"

const (
	defaultChatTimeout  = 120 * time.Second
	defaultEmbedTimeout = 300 * time.Second
	defaultPageTokens   = 4000
)

// OpenRouter calls the OpenRouter chat completions and embeddings endpoints.
type OpenRouter struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	VisionModel    string
	EmbeddingModel string
	ChatTimeout    time.Duration
	EmbedTimeout   time.Duration
	PageMaxTokens  int
	MaxRetries     int
	UserAgent      string
	Client         *http.Client
}

// Name returns the provider identifier.
func (o *OpenRouter) Name() string { return string(types.ProviderOpenRouter) }

// chatRequest is the OpenAI-compatible chat completion request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatMessage carries either a plain string or a list of content parts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Complete sends the conversation to the chat model and returns the reply.
func (o *OpenRouter) Complete(ctx context.Context, messages []types.ChatMessage, temperature float64) (string, error) {
	req := chatRequest{
		Model:       o.ChatModel,
		Temperature: temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	return o.chat(ctx, req)
}

// CompleteWithImage sends one PNG page image with prompt to the vision model.
func (o *OpenRouter) CompleteWithImage(ctx context.Context, prompt string, png []byte) (string, error) {
	maxTokens := o.PageMaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultPageTokens
	}
	req := chatRequest{
		Model:     o.VisionModel,
		MaxTokens: maxTokens,
		Messages: []chatMessage{{
			Role: RoleUser,
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{
					URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
				}},
			},
		}},
	}
	return o.chat(ctx, req)
}

func (o *OpenRouter) chat(ctx context.Context, req chatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, orDefault(o.ChatTimeout, defaultChatTimeout))
	defer cancel()

	var resp chatResponse
	if err := httputil.PostJSON(ctx, o.client(), "OpenRouter", o.base()+"/chat/completions", o.headers(), o.MaxRetries, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: OpenRouter returned no choices", types.ErrUpstreamUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns one vector per text, re-sorted to input order by the
// provider-reported index.
func (o *OpenRouter) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, orDefault(o.EmbedTimeout, defaultEmbedTimeout))
	defer cancel()

	var resp embeddingResponse
	req := embeddingRequest{Model: o.EmbeddingModel, Input: texts}
	if err := httputil.PostJSON(ctx, o.client(), "OpenRouter embeddings", o.base()+"/embeddings", o.headers(), o.MaxRetries, req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: OpenRouter returned %d embeddings for %d texts",
			types.ErrUpstreamUnavailable, len(resp.Data), len(texts))
	}

	// Indexes must be a permutation of 0..n-1.
	vectors := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: OpenRouter embedding index %d out of range for %d texts",
				types.ErrUpstreamUnavailable, d.Index, len(texts))
		}
		if vectors[d.Index] != nil {
			return nil, fmt.Errorf("%w: OpenRouter returned embedding index %d twice",
				types.ErrUpstreamUnavailable, d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: OpenRouter returned an empty embedding at index %d",
				types.ErrUpstreamUnavailable, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (o *OpenRouter) headers() map[string]string {
	h := map[string]string{"Authorization": "Bearer " + o.APIKey}
	if o.UserAgent != "" {
		h["User-Agent"] = o.UserAgent
	}
	return h
}

func (o *OpenRouter) base() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	return openRouterAPIBase
}

func (o *OpenRouter) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return http.DefaultClient
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
