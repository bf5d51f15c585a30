// Package embedder implements usecase/embed.Embedder against an
// OpenAI-API-compatible embeddings endpoint.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"trendpulse/internal/resilience/circuitbreaker"
	"trendpulse/internal/resilience/retry"
)

// DefaultModel is the Mistral embedding model this package targets.
const DefaultModel = "mistral-embed"

// DefaultDims is the vector width the Mistral embeddings endpoint returns for
// DefaultModel. Used only as the advertised Dims() before the first live
// call; EmbeddingSpaceRepository.GetOrCreate reconciles any drift the first
// time a real response comes back.
const DefaultDims = 1024

// defaultBaseURL is Mistral's OpenAI-compatible API base.
const defaultBaseURL = "https://api.mistral.ai/v1"

const callTimeout = 30 * time.Second

// Config configures Mistral.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Dims    int
}

// Mistral calls an OpenAI-API-compatible embeddings endpoint, wrapped in the
// same circuit breaker and retry pattern internal/infra/summarizer uses for
// its chat-completion calls.
type Mistral struct {
	client         *openai.Client
	model          string
	dims           int
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// New builds a Mistral embedder. BaseURL and Dims fall back to Mistral's
// production API and DefaultDims when left zero.
func New(cfg Config) *Mistral {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dims := cfg.Dims
	if dims == 0 {
		dims = DefaultDims
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = baseURL

	return &Mistral{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          model,
		dims:           dims,
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
	}
}

// Name reports the embedding model identifier, used as EmbeddingSpace.Provider.
func (m *Mistral) Name() string { return m.model }

// Dims reports the advertised vector width.
func (m *Mistral) Dims() int { return m.dims }

// Embed returns the embedding vector for text, retried and circuit-broken.
func (m *Mistral) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var vector []float32

	retryErr := retry.WithBackoff(ctx, m.retryConfig, func() error {
		cbResult, err := m.circuitBreaker.Execute(func() (interface{}, error) {
			return m.doEmbed(ctx, text)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.WarnContext(ctx, "embedder circuit breaker open, request rejected",
					slog.String("service", "mistral-embeddings"),
					slog.String("state", m.circuitBreaker.State().String()))
				return fmt.Errorf("embedder unavailable: circuit breaker open")
			}
			return err
		}
		vector = cbResult.([]float32)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("mistral embed failed after retries: %w", retryErr)
	}

	return vector, nil
}

func (m *Mistral) doEmbed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()

	resp, err := m.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(m.model),
	})

	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "embedding request failed",
			slog.Duration("duration", duration), slog.String("error", err.Error()))
		return nil, fmt.Errorf("mistral embeddings api error: %w", err)
	}
	if len(resp.Data) == 0 {
		slog.ErrorContext(ctx, "embedding api returned no data", slog.Duration("duration", duration))
		return nil, fmt.Errorf("mistral embeddings api returned no data")
	}

	slog.InfoContext(ctx, "embedding computed",
		slog.Int("dims", len(resp.Data[0].Embedding)), slog.Duration("duration", duration))

	return resp.Data[0].Embedding, nil
}
