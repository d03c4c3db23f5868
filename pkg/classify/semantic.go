package classify

import (
	"context"
	"fmt"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/luminasec/sentinel/pkg/families"
	"github.com/luminasec/sentinel/pkg/screen"
)

// SemanticClassifier classifies text by nearest-exemplar similarity in an
// embedded vector store. One collection holds every family's exemplars;
// queries filter by the candidate set's metadata.
type SemanticClassifier struct {
	cfg        Config
	db         *chromem.DB
	collection *chromem.Collection

	mu    sync.RWMutex
	ready bool
}

// NewSemanticClassifier creates the classifier over the given embedder.
func NewSemanticClassifier(cfg Config, embedder Embedder) (*SemanticClassifier, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.TieMargin == 0 {
		cfg.TieMargin = DefaultConfig().TieMargin
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	db := chromem.NewDB()
	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	collection, err := db.CreateCollection("threat_exemplars", nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("create exemplar collection: %w", err)
	}

	return &SemanticClassifier{
		cfg:        cfg,
		db:         db,
		collection: collection,
	}, nil
}

// LoadExemplars embeds the built-in seed exemplars plus any pack seeds into
// the collection. Must be called once before Classify.
func (c *SemanticClassifier) LoadExemplars(ctx context.Context, extra []families.PackSeed) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var docs []chromem.Document
	id := 0
	for fam, texts := range families.SeedExemplars() {
		for _, text := range texts {
			docs = append(docs, chromem.Document{
				ID:       fmt.Sprintf("seed_%d", id),
				Content:  text,
				Metadata: map[string]string{"family": string(fam)},
			})
			id++
		}
	}
	for _, s := range extra {
		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("pack_%d", id),
			Content:  s.Text,
			Metadata: map[string]string{"family": s.Family},
		})
		id++
	}

	// One worker keeps the load from overwhelming a local embedding service.
	if err := c.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("embed exemplars: %w", err)
	}
	c.ready = true
	return nil
}

// Ready reports whether exemplars have been loaded.
func (c *SemanticClassifier) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Classify queries the exemplar store and aggregates the best similarity per
// candidate family.
func (c *SemanticClassifier) Classify(ctx context.Context, text string, candidates, priority []families.Family) (Result, error) {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()
	if !ready {
		return Result{}, fmt.Errorf("semantic classifier not initialized")
	}
	if len(candidates) == 0 {
		return Result{PerFamily: map[families.Family]float64{}}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	query := screen.Normalize(text)

	// Enough results to see every candidate family's best exemplar.
	n := len(candidates) * 3
	if total := c.collection.Count(); n > total {
		n = total
	}
	results, err := c.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return Result{}, fmt.Errorf("exemplar query: %w", err)
	}

	wanted := make(map[families.Family]bool, len(candidates))
	for _, f := range candidates {
		wanted[f] = true
	}

	res := Result{PerFamily: make(map[families.Family]float64, len(candidates))}
	matchedBy := make(map[families.Family]string, len(candidates))
	for _, r := range results {
		fam := families.Family(r.Metadata["family"])
		if !wanted[fam] {
			continue
		}
		sim := float64(r.Similarity)
		if sim > res.PerFamily[fam] {
			res.PerFamily[fam] = sim
			matchedBy[fam] = r.Content
		}
	}

	best, score := pickBest(res.PerFamily, priority, c.cfg.TieMargin)
	if best != "" && score >= c.cfg.Threshold {
		res.Family = best
		res.Confidence = score
		res.Matched = matchedBy[best]
	}
	res.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
	return res, nil
}
