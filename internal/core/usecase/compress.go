package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

// ContextCompressor drops near-duplicate provisions by embedding similarity
// and bounds how many reach the prompt.
type ContextCompressor struct {
	embedder  ports.Embedder
	threshold float64
	maxDocs   int
}

func NewContextCompressor(embedder ports.Embedder, threshold float64, maxDocs int) *ContextCompressor {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.95
	}
	if maxDocs <= 0 {
		maxDocs = 8
	}
	return &ContextCompressor{embedder: embedder, threshold: threshold, maxDocs: maxDocs}
}

func (c *ContextCompressor) Compress(ctx context.Context, docs []domain.Document) ([]domain.Document, error) {
	if len(docs) == 0 {
		return docs, nil
	}

	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.Text)
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed context docs: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, domain.WrapError(
			domain.ErrUpstream,
			"embed context docs",
			fmt.Errorf("vectors/docs mismatch: %d/%d", len(vectors), len(docs)),
		)
	}

	kept := make([]domain.Document, 0, c.maxDocs)
	keptVectors := make([][]float32, 0, c.maxDocs)
	for i, doc := range docs {
		if len(kept) >= c.maxDocs {
			break
		}
		redundant := false
		for _, v := range keptVectors {
			if cosine(vectors[i], v) >= c.threshold {
				redundant = true
				break
			}
		}
		if redundant {
			continue
		}
		kept = append(kept, doc)
		keptVectors = append(keptVectors, vectors[i])
	}
	return kept, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
