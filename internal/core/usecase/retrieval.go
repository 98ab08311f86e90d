package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

// RetrievalUseCase runs one fusion round: intent extraction, the four
// strategies in parallel, then the weighted merge.
type RetrievalUseCase struct {
	strategies []Strategy
	merger     *Merger
}

func NewRetrievalUseCase(index ports.ProvisionIndex, caps StrategyCaps, fusion FusionConfig) *RetrievalUseCase {
	caps = caps.normalize()
	return NewRetrievalUseCaseWithStrategies(
		NewMerger(fusion),
		NewLexicalStrategy(index, caps.Lexical),
		NewArticleStrategy(index, caps.Article),
		NewSectionStrategy(index, caps.Section),
		NewSemanticStrategy(index, caps.Semantic),
	)
}

func NewRetrievalUseCaseWithStrategies(merger *Merger, strategies ...Strategy) *RetrievalUseCase {
	return &RetrievalUseCase{
		strategies: strategies,
		merger:     merger,
	}
}

// Retrieve fails the whole round if any strategy fails. Results are keyed by
// strategy name so completion order never affects the merge.
func (uc *RetrievalUseCase) Retrieve(
	ctx context.Context,
	subQueries []string,
	question string,
	act string,
) (*domain.RetrievalResult, error) {
	if len(normalizeSubQueries(subQueries)) == 0 {
		subQueries = []string{question}
	}
	intent := BuildRetrievalIntent(subQueries, question, act)
	return uc.RetrieveIntent(ctx, intent)
}

func (uc *RetrievalUseCase) RetrieveIntent(ctx context.Context, intent domain.RetrievalIntent) (*domain.RetrievalResult, error) {
	outputs := make([][]domain.Document, len(uc.strategies))

	g, gctx := errgroup.WithContext(ctx)
	for i, strategy := range uc.strategies {
		g.Go(func() error {
			docs, err := strategy.Retrieve(gctx, intent)
			if err != nil {
				return fmt.Errorf("strategy %s: %w", strategy.Name(), err)
			}
			outputs[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byName := make(map[string][]domain.Document, len(uc.strategies))
	counts := make(map[string]int, len(uc.strategies))
	for i, strategy := range uc.strategies {
		byName[strategy.Name()] = outputs[i]
		counts[strategy.Name()] = len(outputs[i])
	}

	return &domain.RetrievalResult{
		Intent:         intent,
		SubQueries:     intent.SemanticQueries,
		Documents:      uc.merger.Merge(byName),
		StrategyCounts: counts,
	}, nil
}
