package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

const (
	traceMaxDocs      = 12
	traceSnippetRunes = 800
)

type QueryOptions struct {
	UseCompression bool
	RoundTimeout   time.Duration
}

// QueryUseCase is the answer chain: decompose, retrieve, compress, generate.
type QueryUseCase struct {
	decomposer ports.QueryDecomposer
	cache      ports.DecompositionCache
	retriever  *RetrievalUseCase
	compressor *ContextCompressor
	generator  ports.AnswerGenerator
	traces     ports.QueryTraceStore
	opts       QueryOptions
}

func NewQueryUseCase(
	decomposer ports.QueryDecomposer,
	cache ports.DecompositionCache,
	retriever *RetrievalUseCase,
	compressor *ContextCompressor,
	generator ports.AnswerGenerator,
	traces ports.QueryTraceStore,
	opts QueryOptions,
) *QueryUseCase {
	return &QueryUseCase{
		decomposer: decomposer,
		cache:      cache,
		retriever:  retriever,
		compressor: compressor,
		generator:  generator,
		traces:     traces,
		opts:       opts,
	}
}

func (uc *QueryUseCase) Answer(ctx context.Context, question string, act string) (*domain.Answer, error) {
	started := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("question is required"))
	}

	result, err := uc.Retrieve(ctx, nil, question, act)
	if err != nil {
		return nil, err
	}

	docs := result.Documents
	if uc.opts.UseCompression && uc.compressor != nil {
		docs, err = uc.compressor.Compress(ctx, docs)
		if err != nil {
			return nil, fmt.Errorf("compress context: %w", err)
		}
	}

	generated, err := uc.generator.GenerateAnswer(ctx, question, BuildContext(docs))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	answer := &domain.Answer{
		Text:           generated.Answer,
		CitedSections:  generated.CitedSections,
		Act:            result.Intent.Act,
		SubQueries:     result.SubQueries,
		Sources:        docs,
		StrategyCounts: result.StrategyCounts,
	}
	if answer.CitedSections == nil {
		answer.CitedSections = []string{}
	}

	uc.saveTrace(ctx, question, result, answer, time.Since(started))
	return answer, nil
}

// Retrieve runs one fusion round. When subQueries is empty the question is
// decomposed first; a failed or empty decomposition falls back to the
// question itself.
func (uc *QueryUseCase) Retrieve(ctx context.Context, subQueries []string, question string, act string) (*domain.RetrievalResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("question is required"))
	}
	if len(normalizeSubQueries(subQueries)) == 0 {
		subQueries = uc.decompose(ctx, question, act)
	}

	roundCtx := ctx
	if uc.opts.RoundTimeout > 0 {
		var cancel context.CancelFunc
		roundCtx, cancel = context.WithTimeout(ctx, uc.opts.RoundTimeout)
		defer cancel()
	}

	result, err := uc.retriever.Retrieve(roundCtx, subQueries, question, act)
	if err != nil {
		return nil, fmt.Errorf("retrieve provisions: %w", err)
	}
	return result, nil
}

func (uc *QueryUseCase) decompose(ctx context.Context, question string, rawAct string) []string {
	if uc.decomposer == nil {
		return []string{question}
	}
	act, ok := domain.ParseAct(rawAct)
	if !ok {
		act = domain.ActAll
	}

	if uc.cache != nil {
		cached, hit, err := uc.cache.Get(ctx, question, act)
		if err != nil {
			slog.Warn("decomposition_cache_get_failed", "error", err.Error())
		} else if hit && len(cached) > 0 {
			return cached
		}
	}

	subQueries, err := uc.decomposer.Decompose(ctx, question, act)
	if err != nil {
		slog.Warn("query_decomposition_failed", "error", err.Error())
		return []string{question}
	}
	subQueries = normalizeSubQueries(subQueries)
	if len(subQueries) == 0 {
		return []string{question}
	}

	if uc.cache != nil {
		if err := uc.cache.Put(ctx, question, act, subQueries); err != nil {
			slog.Warn("decomposition_cache_put_failed", "error", err.Error())
		}
	}
	return subQueries
}

func (uc *QueryUseCase) saveTrace(ctx context.Context, question string, result *domain.RetrievalResult, answer *domain.Answer, took time.Duration) {
	if uc.traces == nil {
		return
	}
	trace := domain.QueryTrace{
		ID:         uuid.NewString(),
		Query:      question,
		Act:        result.Intent.Act,
		SubQueries: result.SubQueries,
		Retrieved:  traceDocs(result.Documents),
		Answer:     answer.Text,
		Duration:   took,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.traces.SaveTrace(ctx, trace); err != nil {
		slog.Warn("query_trace_save_failed", "trace_id", trace.ID, "error", err.Error())
	}
}

func traceDocs(docs []domain.Document) []domain.TraceDoc {
	docs = trimDocuments(docs, traceMaxDocs)
	out := make([]domain.TraceDoc, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.TraceDoc{
			Citation:  d.Metadata.Citation(),
			Retriever: d.Metadata.Retriever,
			Snippet:   firstRunes(d.Text, traceSnippetRunes),
		})
	}
	return out
}

// BuildContext renders provisions as "[citation]\ntext" blocks separated by a
// blank line.
func BuildContext(docs []domain.Document) string {
	blocks := make([]string, 0, len(docs))
	for _, d := range docs {
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", d.Metadata.Citation(), d.Text))
	}
	return strings.Join(blocks, "\n\n")
}
