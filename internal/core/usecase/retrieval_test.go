package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

func TestRetrievalUseCaseHitAndRunScenario(t *testing.T) {
	index := &indexFake{
		phrase: func(q string, f domain.IndexFilter) []domain.Document {
			id := strings.TrimPrefix(q, "Section ")
			return []domain.Document{sectionDoc(string(f.Act), id, "phrase "+q)}
		},
		similar: func(q string, f domain.IndexFilter) []domain.Document {
			if f.SectionID != "" {
				return []domain.Document{sectionDoc(string(f.Act), f.SectionID, "phrase Section "+f.SectionID)}
			}
			if len(f.SourceTypes) > 0 {
				return nil
			}
			return manyDocs("CrPC", 20)
		},
	}
	uc := NewRetrievalUseCase(index, DefaultStrategyCaps(), DefaultFusionConfig())

	q := "What is the punishment for a hit-and-run accident?"
	result, err := uc.Retrieve(context.Background(), nil, q, "")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if result.Intent.Act != domain.ActAll {
		t.Fatalf("expected act All, got %s", result.Intent.Act)
	}
	if len(result.SubQueries) != 1 || result.SubQueries[0] != q {
		t.Fatalf("expected raw query as sole sub-query, got %v", result.SubQueries)
	}
	if result.StrategyCounts[StrategySemantic] != 6 || result.StrategyCounts[StrategyLexical] != 4 {
		t.Fatalf("unexpected strategy counts: %+v", result.StrategyCounts)
	}
	for i := 0; i < 4; i++ {
		if r := result.Documents[i].Metadata.Retriever; r == StrategySemantic {
			t.Fatalf("expected top entries from exact strategies, got %s at %d", r, i)
		}
	}
	if result.Documents[0].Metadata.Retriever != StrategyLexical {
		t.Fatalf("expected lexical hit first, got %s", result.Documents[0].Metadata.Retriever)
	}
	if got := len(result.Documents); got != 4+6 {
		t.Fatalf("expected section duplicates of lexical hits dropped, got %d docs", got)
	}
}

func TestRetrievalUseCaseExplicitActArticleUnderIPC(t *testing.T) {
	index := &indexFake{}
	uc := NewRetrievalUseCase(index, DefaultStrategyCaps(), DefaultFusionConfig())

	result, err := uc.Retrieve(context.Background(), []string{"Article 21"}, "Article 21", "IPC")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if result.Intent.ArticleLookups[0].Act != domain.ActIPC {
		t.Fatalf("expected lookup act IPC, got %s", result.Intent.ArticleLookups[0].Act)
	}
	if result.StrategyCounts[StrategyArticle] != 0 {
		t.Fatalf("expected empty article results, got %d", result.StrategyCounts[StrategyArticle])
	}
	for _, call := range index.callsOf("similar") {
		if call.filter.ArticleID == "21" && call.filter.Act != domain.ActIPC {
			t.Fatalf("expected IPC scope on article lookup, got %+v", call.filter)
		}
	}
}

type failingStrategy struct {
	name string
	err  error
}

func (s failingStrategy) Name() string { return s.name }
func (s failingStrategy) Retrieve(context.Context, domain.RetrievalIntent) ([]domain.Document, error) {
	return nil, s.err
}

type staticStrategy struct {
	name string
	docs []domain.Document
}

func (s staticStrategy) Name() string { return s.name }
func (s staticStrategy) Retrieve(context.Context, domain.RetrievalIntent) ([]domain.Document, error) {
	return s.docs, nil
}

func TestRetrievalUseCaseFailsRoundOnStrategyError(t *testing.T) {
	indexErr := domain.WrapError(domain.ErrIndexUnavailable, "similarity search", errors.New("timeout"))
	uc := NewRetrievalUseCaseWithStrategies(
		NewMerger(DefaultFusionConfig()),
		staticStrategy{name: StrategyLexical, docs: ranked(StrategyLexical, sectionDoc("IPC", "1", "x"))},
		failingStrategy{name: StrategySemantic, err: indexErr},
	)

	result, err := uc.Retrieve(context.Background(), []string{"q"}, "q", "")
	if err == nil {
		t.Fatalf("expected round failure, got %+v", result)
	}
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected index unavailable kind, got %v", err)
	}
}

func TestRetrievalUseCaseMergeOrderIndependentOfStrategyOrder(t *testing.T) {
	shared := sectionDoc("IPC", "279", "rash driving")
	lexical := staticStrategy{name: StrategyLexical, docs: ranked(StrategyLexical, shared)}
	semantic := staticStrategy{name: StrategySemantic, docs: ranked(StrategySemantic, shared)}

	a := NewRetrievalUseCaseWithStrategies(NewMerger(DefaultFusionConfig()), semantic, lexical)
	b := NewRetrievalUseCaseWithStrategies(NewMerger(DefaultFusionConfig()), lexical, semantic)

	ra, err := a.Retrieve(context.Background(), nil, "q", "")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	rb, err := b.Retrieve(context.Background(), nil, "q", "")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if ra.Documents[0].Metadata.Retriever != StrategyLexical || rb.Documents[0].Metadata.Retriever != StrategyLexical {
		t.Fatalf("expected lexical attribution regardless of registration order")
	}
}
