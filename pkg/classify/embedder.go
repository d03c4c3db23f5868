package classify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
)

// Embedder produces a vector for one text. Implementations must be safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OllamaEmbedder calls an Ollama-compatible /api/embeddings endpoint.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaEmbedder creates an embedder against the given base URL.
func NewOllamaEmbedder(baseURL, model string, timeout time.Duration) *OllamaEmbedder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Embed requests one embedding.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{
		"model":  e.model,
		"prompt": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned %d", resp.StatusCode)
	}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embedding service returned empty vector")
	}
	return result.Embedding, nil
}

// BreakerEmbedder wraps an Embedder with a circuit breaker so a dead
// embedding service fails fast instead of stalling every detection at the
// full HTTP timeout.
type BreakerEmbedder struct {
	inner   Embedder
	breaker *gobreaker.CircuitBreaker[[]float32]
}

// NewBreakerEmbedder wraps inner. The breaker opens after 5 consecutive
// failures and probes again after 30 seconds.
func NewBreakerEmbedder(inner Embedder) *BreakerEmbedder {
	settings := gobreaker.Settings{
		Name:    "embedder",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &BreakerEmbedder{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[[]float32](settings),
	}
}

// Embed runs the inner embedder through the breaker. An open breaker returns
// the breaker's error immediately.
func (b *BreakerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return b.breaker.Execute(func() ([]float32, error) {
		return b.inner.Embed(ctx, text)
	})
}
