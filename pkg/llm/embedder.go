package llm

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

// EmbedderConfig configures the embedding gateway.
type EmbedderConfig struct {
	Model   string
	BaseURL string

	// VectorDim is the provider's fixed embedding dimensionality. It is a
	// provider contract assumed by every similarity operation downstream.
	VectorDim int

	// MaxTextLength is a character-count proxy for the provider token limit;
	// longer inputs are truncated before the call.
	MaxTextLength int

	// MaxAttempts and RetryDelay drive the per-call retry: fixed attempt
	// count, exponential backoff with a doubling multiplier.
	MaxAttempts int
	RetryDelay  time.Duration

	// BatchSize bounds sub-batches; BatchPause paces them as a rate-limiting
	// courtesy to the provider.
	BatchSize  int
	BatchPause time.Duration
}

// EmbeddingClient is the provider call the gateway wraps. *ollama.LLM
// satisfies it; tests substitute fakes.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder turns chunks into vectors with truncation, batching and retry.
// Individual chunks that fail all retries degrade to the zero vector so that
// EmbedBatch stays one-to-one with its input.
type Embedder struct {
	cfg      EmbedderConfig
	client   EmbeddingClient
	limiter  *rate.Limiter
	degraded atomic.Int64
}

// embedResult tags each batch entry so degraded chunks stay observable even
// though the external contract flattens everything to vectors.
type embedResult struct {
	vector   []float32
	degraded bool
}

func applyEmbedderDefaults(cfg *EmbedderConfig) {
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text:latest"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.VectorDim == 0 {
		cfg.VectorDim = 768
	}
	if cfg.MaxTextLength == 0 {
		cfg.MaxTextLength = 8000
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 5
	}
	if cfg.BatchPause == 0 {
		cfg.BatchPause = 200 * time.Millisecond
	}
}

// NewEmbedder builds a gateway backed by an ollama embedding model.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	applyEmbedderDefaults(&cfg)

	client, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}
	return NewEmbedderWithClient(cfg, client), nil
}

// NewEmbedderWithClient wires an explicit provider client.
func NewEmbedderWithClient(cfg EmbedderConfig, client EmbeddingClient) *Embedder {
	applyEmbedderDefaults(&cfg)
	limiter := rate.NewLimiter(rate.Every(cfg.BatchPause), 1)
	// The bucket starts full; spend the token so the first inter-batch
	// wait pauses instead of passing straight through.
	limiter.Allow()
	return &Embedder{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
	}
}

// Dimensions reports the configured embedding dimensionality.
func (e *Embedder) Dimensions() int { return e.cfg.VectorDim }

// DegradedCount reports how many chunks have been substituted with the zero
// vector since startup.
func (e *Embedder) DegradedCount() int64 { return e.degraded.Load() }

// Embed creates one embedding, truncating oversized input and retrying any
// provider failure with exponential backoff.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > e.cfg.MaxTextLength {
		cut := e.cfg.MaxTextLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		log.Printf("[EMBED] truncating text from %d to %d characters", len(text), cut)
		text = text[:cut]
	}

	var lastErr error
	delay := e.cfg.RetryDelay
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		vectors, err := e.client.CreateEmbedding(ctx, []string{text})
		if err == nil {
			if len(vectors) == 0 {
				return nil, fmt.Errorf("provider returned no embedding")
			}
			return vectors[0], nil
		}
		lastErr = err

		if attempt == e.cfg.MaxAttempts {
			break
		}
		log.Printf("[EMBED] attempt %d/%d failed, retrying in %s: %v", attempt, e.cfg.MaxAttempts, delay, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", e.cfg.MaxAttempts, lastErr)
}

// EmbedBatch embeds texts in fixed-size sub-batches, sequentially, pausing
// between sub-batches. The result always has len(texts) vectors in input
// order: entries that failed every retry are the zero vector, logged and
// counted rather than raised.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results, err := e.embedBatchTagged(ctx, texts)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(results))
	for i, r := range results {
		vectors[i] = r.vector
	}
	return vectors, nil
}

func (e *Embedder) embedBatchTagged(ctx context.Context, texts []string) ([]embedResult, error) {
	results := make([]embedResult, 0, len(texts))

	batches := (len(texts) + e.cfg.BatchSize - 1) / e.cfg.BatchSize
	for i := 0; i < len(texts); i += e.cfg.BatchSize {
		end := min(i+e.cfg.BatchSize, len(texts))

		log.Printf("[EMBED] processing sub-batch %d/%d (%d chunks)", i/e.cfg.BatchSize+1, batches, end-i)
		for _, text := range texts[i:end] {
			vector, err := e.Embed(ctx, text)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				e.degraded.Add(1)
				log.Printf("[EMBED] chunk degraded to zero vector after retries: %v", err)
				results = append(results, embedResult{vector: make([]float32, e.cfg.VectorDim), degraded: true})
				continue
			}
			results = append(results, embedResult{vector: vector})
		}

		if end < len(texts) {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}
