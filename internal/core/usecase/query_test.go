package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

type decomposerFake struct {
	out   []string
	err   error
	calls int
	act   domain.Act
}

func (f *decomposerFake) Decompose(_ context.Context, _ string, act domain.Act) ([]string, error) {
	f.calls++
	f.act = act
	return f.out, f.err
}

type cacheFake struct {
	store  map[string][]string
	getErr error
	puts   int
}

func (f *cacheFake) Get(_ context.Context, q string, act domain.Act) ([]string, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.store[string(act)+"|"+q]
	return v, ok, nil
}

func (f *cacheFake) Put(_ context.Context, q string, act domain.Act, subs []string) error {
	if f.store == nil {
		f.store = map[string][]string{}
	}
	f.store[string(act)+"|"+q] = subs
	f.puts++
	return nil
}

type generatorFake struct {
	context string
	err     error
}

func (f *generatorFake) GenerateAnswer(_ context.Context, _ string, ctxText string) (domain.GeneratedAnswer, error) {
	f.context = ctxText
	if f.err != nil {
		return domain.GeneratedAnswer{}, f.err
	}
	return domain.GeneratedAnswer{Answer: "answer", CitedSections: []string{"Section 279 (IPC)"}}, nil
}

type traceStoreFake struct {
	traces []domain.QueryTrace
	err    error
}

func (f *traceStoreFake) SaveTrace(_ context.Context, trace domain.QueryTrace) error {
	f.traces = append(f.traces, trace)
	return f.err
}

type embedderFake struct {
	vectors map[string][]float32
	err     error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float32{float32(len(t)), 1}
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, f.err
}

func newQueryFixture(decomposer *decomposerFake, cache *cacheFake, traces *traceStoreFake) (*QueryUseCase, *indexFake, *generatorFake) {
	index := &indexFake{
		similar: func(q string, f domain.IndexFilter) []domain.Document {
			if len(f.SourceTypes) > 0 {
				return nil
			}
			return []domain.Document{sectionDoc("IPC", "279", "Rash driving or riding on a public way")}
		},
	}
	gen := &generatorFake{}
	var cachePort ports.DecompositionCache
	if cache != nil {
		cachePort = cache
	}
	var tracePort ports.QueryTraceStore
	if traces != nil {
		tracePort = traces
	}
	uc := NewQueryUseCase(
		decomposer,
		cachePort,
		NewRetrievalUseCase(index, DefaultStrategyCaps(), DefaultFusionConfig()),
		nil,
		gen,
		tracePort,
		QueryOptions{},
	)
	return uc, index, gen
}

func TestQueryUseCaseAnswerHappyPath(t *testing.T) {
	decomposer := &decomposerFake{out: []string{"punishment for rash driving", "  "}}
	traces := &traceStoreFake{}
	uc, index, gen := newQueryFixture(decomposer, nil, traces)

	answer, err := uc.Answer(context.Background(), "What is the punishment?", "ipc")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "answer" || answer.Act != domain.ActIPC {
		t.Fatalf("unexpected answer: %+v", answer)
	}
	if decomposer.act != domain.ActIPC {
		t.Fatalf("expected decomposer scoped to IPC, got %s", decomposer.act)
	}
	if len(answer.SubQueries) != 1 || answer.SubQueries[0] != "punishment for rash driving" {
		t.Fatalf("unexpected sub-queries: %v", answer.SubQueries)
	}
	if !strings.HasPrefix(gen.context, "[Section 279 (IPC)]\nRash driving") {
		t.Fatalf("unexpected context: %q", gen.context)
	}
	if len(index.callsOf("similar")) == 0 {
		t.Fatalf("expected index to be queried")
	}
	if len(answer.StrategyCounts) != 4 || answer.StrategyCounts[StrategySemantic] == 0 {
		t.Fatalf("expected per-strategy counts on the answer, got %v", answer.StrategyCounts)
	}
	if len(traces.traces) != 1 || traces.traces[0].Retrieved[0].Citation != "Section 279 (IPC)" {
		t.Fatalf("expected one trace with retrieved docs, got %+v", traces.traces)
	}
}

func TestQueryUseCaseDecompositionFailureFallsBackToQuestion(t *testing.T) {
	decomposer := &decomposerFake{err: errors.New("model offline")}
	uc, _, _ := newQueryFixture(decomposer, nil, nil)

	answer, err := uc.Answer(context.Background(), "bail conditions", "")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(answer.SubQueries) != 1 || answer.SubQueries[0] != "bail conditions" {
		t.Fatalf("expected raw question as sub-query, got %v", answer.SubQueries)
	}
}

func TestQueryUseCaseUsesDecompositionCache(t *testing.T) {
	decomposer := &decomposerFake{out: []string{"a"}}
	cache := &cacheFake{}
	uc, _, _ := newQueryFixture(decomposer, cache, nil)

	for i := 0; i < 2; i++ {
		if _, err := uc.Answer(context.Background(), "question", ""); err != nil {
			t.Fatalf("Answer() error = %v", err)
		}
	}
	if decomposer.calls != 1 || cache.puts != 1 {
		t.Fatalf("expected one decomposition and one cache write, got %d/%d", decomposer.calls, cache.puts)
	}
}

func TestQueryUseCaseCacheErrorIsNotFatal(t *testing.T) {
	decomposer := &decomposerFake{out: []string{"a"}}
	uc, _, _ := newQueryFixture(decomposer, &cacheFake{getErr: errors.New("redis down")}, nil)
	if _, err := uc.Answer(context.Background(), "question", ""); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if decomposer.calls != 1 {
		t.Fatalf("expected decomposer to run on cache failure")
	}
}

func TestQueryUseCaseTraceFailureIsNotFatal(t *testing.T) {
	uc, _, _ := newQueryFixture(&decomposerFake{out: []string{"a"}}, nil, &traceStoreFake{err: errors.New("db down")})
	if _, err := uc.Answer(context.Background(), "question", ""); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
}

func TestQueryUseCaseIndexFailurePropagates(t *testing.T) {
	index := &indexFake{simErr: domain.WrapError(domain.ErrIndexUnavailable, "knn search", errors.New("503"))}
	gen := &generatorFake{}
	uc := NewQueryUseCase(nil, nil, NewRetrievalUseCase(index, StrategyCaps{}, FusionConfig{}), nil, gen, nil, QueryOptions{})

	_, err := uc.Answer(context.Background(), "question", "")
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected index unavailable, got %v", err)
	}
	if gen.context != "" {
		t.Fatalf("generator must not run after a failed round")
	}
}

func TestQueryUseCaseRejectsEmptyQuestion(t *testing.T) {
	uc, _, _ := newQueryFixture(&decomposerFake{}, nil, nil)
	_, err := uc.Answer(context.Background(), "   ", "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestQueryUseCaseRetrieveWithExplicitSubQueriesSkipsDecomposer(t *testing.T) {
	decomposer := &decomposerFake{out: []string{"x"}}
	uc, _, _ := newQueryFixture(decomposer, nil, nil)

	result, err := uc.Retrieve(context.Background(), []string{"Section 279 IPC"}, "q", "")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if decomposer.calls != 0 {
		t.Fatalf("expected decomposer to be skipped")
	}
	if len(result.Intent.SectionLookups) == 0 || result.Intent.SectionLookups[0].ID != "279" {
		t.Fatalf("unexpected intent: %+v", result.Intent)
	}
}

func TestContextCompressorDropsRedundantAndCaps(t *testing.T) {
	docs := []domain.Document{
		sectionDoc("IPC", "1", "alpha"),
		sectionDoc("IPC", "2", "alpha copy"),
		sectionDoc("IPC", "3", "beta"),
		sectionDoc("IPC", "4", "gamma"),
	}
	embedder := &embedderFake{vectors: map[string][]float32{
		"alpha":      {1, 0},
		"alpha copy": {0.99, 0.01},
		"beta":       {0, 1},
		"gamma":      {-1, 0},
	}}

	kept, err := NewContextCompressor(embedder, 0.95, 2).Compress(context.Background(), docs)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if len(kept) != 2 || kept[0].Metadata.SectionID != "1" || kept[1].Metadata.SectionID != "3" {
		t.Fatalf("unexpected kept docs: %+v", kept)
	}
}

func TestContextCompressorEmbedError(t *testing.T) {
	_, err := NewContextCompressor(&embedderFake{err: errors.New("boom")}, 0.95, 8).Compress(context.Background(), []domain.Document{{Text: "x"}})
	if err == nil {
		t.Fatalf("expected error")
	}
}

// shortEmbedderFake returns one vector fewer than requested.
type shortEmbedderFake struct{ embedderFake }

func (f *shortEmbedderFake) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := f.embedderFake.Embed(ctx, texts)
	if err != nil || len(out) == 0 {
		return out, err
	}
	return out[:len(out)-1], nil
}

func TestContextCompressorVectorMismatchIsUpstreamFailure(t *testing.T) {
	docs := []domain.Document{sectionDoc("IPC", "1", "alpha"), sectionDoc("IPC", "2", "beta")}
	_, err := NewContextCompressor(&shortEmbedderFake{}, 0.95, 8).Compress(context.Background(), docs)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("a model fault must not be reported as invalid input: %v", err)
	}
}

func TestBuildContextJoinsBlocks(t *testing.T) {
	got := BuildContext([]domain.Document{
		{Text: "a", Metadata: domain.Metadata{ActAbbrev: "COI", ArticleID: "21"}},
		{Text: "b", Metadata: domain.Metadata{ActAbbrev: "IPC", SectionID: "302"}},
	})
	want := "[Article 21 (COI)]\na\n\n[Section 302 (IPC)]\nb"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
