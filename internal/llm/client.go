// Package llm wraps the Gemini API for the two model-backed concerns: short
// text generation (score narratives) and embeddings (dense retrieval). Both
// callers degrade gracefully when no client is configured.
package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/arandu-labs/arandu/internal/retry"
)

// transientPolicy absorbs short Gemini hiccups (rate limits, 5xx) without
// stalling the 90 second review budget.
var transientPolicy = retry.NewPolicy(retry.BackoffExponential, 500*time.Millisecond, 8*time.Second, 2)

// Client is a thin wrapper over the GenAI SDK.
type Client struct {
	client         *genai.Client
	generateModel  string
	embeddingModel string
}

// New creates a Client. apiKey must be non-empty; generateModel and
// embeddingModel fall back to sensible defaults when blank.
func New(ctx context.Context, apiKey, generateModel, embeddingModel string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}
	if generateModel == "" {
		generateModel = "gemini-2.0-flash"
	}
	if embeddingModel == "" {
		embeddingModel = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{
		client:         client,
		generateModel:  generateModel,
		embeddingModel: embeddingModel,
	}, nil
}

// GenerateText runs a single-prompt completion and returns the raw text.
func (c *Client) GenerateText(ctx context.Context, prompt string, temperature float32, maxTokens int32) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	var result *genai.GenerateContentResponse
	err := retry.Do(ctx, transientPolicy, func(ctx context.Context) error {
		var err error
		result, err = c.client.Models.GenerateContent(ctx, c.generateModel, contents, &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(temperature),
			MaxOutputTokens: maxTokens,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return result.Text(), nil
}

// Embed generates one embedding per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	var result *genai.EmbedContentResponse
	err := retry.Do(ctx, transientPolicy, func(ctx context.Context) error {
		var err error
		result, err = c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, &genai.EmbedContentConfig{
			TaskType: "SEMANTIC_SIMILARITY",
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		embeddings[i] = emb.Values
	}
	return embeddings, nil
}
