package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	symerrors "github.com/makkenzo/codename-symbiont/errors"
)

const (
	// DefaultModel is the sentence transformer served by the default TEI
	// deployment. It produces 768-dimensional vectors.
	DefaultModel = "sentence-transformers/paraphrase-multilingual-mpnet-base-v2"

	// DefaultDimensions matches DefaultModel. The actual dimensionality is
	// re-detected from the first API response.
	DefaultDimensions = 768
)

// HTTPEmbedder calls an external OpenAI-compatible embedding service via HTTP.
//
// This implementation works with:
//   - Hugging Face TEI (Text Embeddings Inference)
//   - LocalAI (self-hosted)
//   - OpenAI (cloud)
//   - Any OpenAI-compatible embedding API
//
// Uses the standard OpenAI SDK for consistency and compatibility.
type HTTPEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	cache      Cache
	logger     *slog.Logger
}

// HTTPConfig configures the HTTP embedder.
type HTTPConfig struct {
	// BaseURL is the base URL of the embedding service.
	// Examples:
	//   - "http://localhost:8082" (TEI)
	//   - "http://tei:8082" (TEI container by name)
	//   - "https://api.openai.com/v1" (OpenAI cloud)
	BaseURL string

	// Model is the embedding model to use. Defaults to DefaultModel.
	Model string

	// APIKey for authentication. Required for OpenAI, optional for
	// TEI/LocalAI.
	APIKey string

	// Timeout for HTTP requests (default: 30s).
	Timeout time.Duration

	// Cache for embedding results (optional but recommended).
	Cache Cache

	// Logger for error logging (optional, defaults to slog.Default()).
	Logger *slog.Logger
}

// NewHTTPEmbedder creates a new HTTP-based embedder.
func NewHTTPEmbedder(cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, symerrors.NewValidation("embedding", "base_url", "is required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	// Local services accept any key but the SDK requires one.
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = cfg.BaseURL
	config.HTTPClient = &http.Client{
		Timeout: timeout,
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPEmbedder{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: DefaultDimensions,
		cache:      cfg.Cache,
		logger:     logger,
	}, nil
}

// Generate creates embeddings by calling the external HTTP service.
//
// This method checks the cache first (if configured), then calls the
// embedding API for any cache misses.
func (h *HTTPEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings := make([][]float32, len(texts))
	uncachedIndexes := []int{}
	uncachedTexts := []string{}

	if h.cache != nil {
		for i, text := range texts {
			hash := ContentHash(text)
			if cached, err := h.cache.Get(ctx, hash); err == nil {
				embeddings[i] = cached
			} else {
				uncachedIndexes = append(uncachedIndexes, i)
				uncachedTexts = append(uncachedTexts, text)
			}
		}
	} else {
		uncachedIndexes = make([]int, len(texts))
		for i := range texts {
			uncachedIndexes[i] = i
		}
		uncachedTexts = texts
	}

	if len(uncachedTexts) > 0 {
		req := openai.EmbeddingRequest{
			Input: uncachedTexts,
			Model: openai.EmbeddingModel(h.model),
		}

		resp, err := h.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, symerrors.WrapTransient(err, "embedding", "Generate", "call embedding API")
		}

		if len(resp.Data) != len(uncachedTexts) {
			return nil, symerrors.WrapKind(symerrors.KindRemote,
				fmt.Errorf("API returned %d embeddings for %d texts", len(resp.Data), len(uncachedTexts)),
				"embedding", "Generate", "validate API response")
		}

		for i, data := range resp.Data {
			originalIndex := uncachedIndexes[i]
			embeddings[originalIndex] = data.Embedding

			// Re-detect dimensionality from the first response.
			if h.dimensions == DefaultDimensions && len(data.Embedding) > 0 {
				h.dimensions = len(data.Embedding)
			}

			if h.cache != nil {
				hash := ContentHash(uncachedTexts[i])
				if err := h.cache.Put(ctx, hash, data.Embedding); err != nil {
					// Cache writes are best-effort.
					h.logger.Warn("embedding cache put failed", "hash", hash, "error", err)
				}
			}
		}
	}

	return embeddings, nil
}

// Dimensions returns the dimensionality of embeddings produced.
func (h *HTTPEmbedder) Dimensions() int {
	return h.dimensions
}

// Model returns the model identifier.
func (h *HTTPEmbedder) Model() string {
	return h.model
}

// Close releases resources (no-op for HTTP client).
func (h *HTTPEmbedder) Close() error {
	return nil
}
