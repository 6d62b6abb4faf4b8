// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/pdiddy/papermap/pkg/types"
)

// geminiEmbedBatch is the largest batch the Gemini embedding endpoint accepts.
const geminiEmbedBatch = 100

// Gemini implements Provider on the Google genai SDK.
type Gemini struct {
	client         *genai.Client
	chatModel      string
	visionModel    string
	embeddingModel string
	cfg            types.LLMConfig
}

// NewGemini creates a Gemini provider. An empty vision model falls back to
// the chat model since Gemini chat models accept images.
func NewGemini(ctx context.Context, cfg types.LLMConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", types.ErrValidation)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	g := &Gemini{
		client:         client,
		chatModel:      cfg.ChatModel,
		visionModel:    cfg.VisionModel,
		embeddingModel: cfg.EmbeddingModel,
		cfg:            cfg,
	}
	if g.visionModel == "" {
		g.visionModel = g.chatModel
	}
	return g, nil
}

// Name returns the provider identifier.
func (g *Gemini) Name() string { return string(types.ProviderGemini) }

// Complete maps system messages to the system instruction and the rest to
// user/model turns.
func (g *Gemini) Complete(ctx context.Context, messages []types.ChatMessage, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, orDefault(g.cfg.ChatTimeout, defaultChatTimeout))
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}

	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.chatModel, contents, config)
	if err != nil {
		return "", fmt.Errorf("%w: gemini completion: %v", types.ErrUpstreamUnavailable, err)
	}
	return resp.Text(), nil
}

// CompleteWithImage sends prompt and one PNG image as a single user turn.
func (g *Gemini) CompleteWithImage(ctx context.Context, prompt string, png []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, orDefault(g.cfg.ChatTimeout, defaultChatTimeout))
	defer cancel()

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(png, "image/png"),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.visionModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: gemini vision: %v", types.ErrUpstreamUnavailable, err)
	}
	return resp.Text(), nil
}

// Embed embeds texts in batches with the clustering task type.
func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, orDefault(g.cfg.EmbedTimeout, defaultEmbedTimeout))
	defer cancel()

	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += geminiEmbedBatch {
		end := min(start+geminiEmbedBatch, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}

		result, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents,
			&genai.EmbedContentConfig{TaskType: "CLUSTERING"})
		if err != nil {
			return nil, fmt.Errorf("%w: gemini embed: %v", types.ErrUpstreamUnavailable, err)
		}
		if len(result.Embeddings) != end-start {
			return nil, fmt.Errorf("%w: gemini returned %d embeddings for %d texts",
				types.ErrUpstreamUnavailable, len(result.Embeddings), end-start)
		}

		for _, emb := range result.Embeddings {
			v := make([]float64, len(emb.Values))
			for i, x := range emb.Values {
				v[i] = float64(x)
			}
			vectors = append(vectors, v)
		}
	}
	return vectors, nil
}
