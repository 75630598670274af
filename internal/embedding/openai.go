package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"sooqsearch/internal/logging"
)

// OpenAIEngine embeds text through an OpenAI-compatible embeddings API.
type OpenAIEngine struct {
	client    *openai.Client
	model     string
	dimension int
}

// OpenAIConfig holds the engine configuration.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string // empty uses the provider default
	Model     string
	Dimension int
}

// NewOpenAIEngine creates an engine for the configured model.
func NewOpenAIEngine(cfg OpenAIConfig) (*OpenAIEngine, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logging.Get(logging.CategoryEmbedding).Info("embedding engine: model=%s dim=%d", cfg.Model, cfg.Dimension)
	return &OpenAIEngine{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// Embed generates the embedding for a single text.
func (e *OpenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (e *OpenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      texts,
		Dimensions: e.dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != e.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, configured %d", len(d.Embedding), e.dimension)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the configured embedding dimensionality.
func (e *OpenAIEngine) Dimensions() int { return e.dimension }

// Name returns the engine name.
func (e *OpenAIEngine) Name() string { return "openai:" + e.model }
