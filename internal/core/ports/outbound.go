package ports

import (
	"context"
	"io"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

// ProvisionIndex is the external document store and embedding index.
// An empty result is not an error; transport and query failures are.
type ProvisionIndex interface {
	SearchPhrase(ctx context.Context, phrase string, limit int, filter domain.IndexFilter) ([]domain.Document, error)
	SimilaritySearch(ctx context.Context, query string, k int, filter domain.IndexFilter) ([]domain.Document, error)
}

// ProvisionWriter loads documents and their vectors into the index.
type ProvisionWriter interface {
	IndexDocuments(ctx context.Context, docs []domain.Document, vectors [][]float32) error
}

// Embedder builds vectors for provision text and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// QueryDecomposer splits a question into at most five atomic sub-queries.
type QueryDecomposer interface {
	Decompose(ctx context.Context, question string, act domain.Act) ([]string, error)
}

// DecompositionCache memoizes decomposer output per question and act.
type DecompositionCache interface {
	Get(ctx context.Context, question string, act domain.Act) ([]string, bool, error)
	Put(ctx context.Context, question string, act domain.Act, subQueries []string) error
}

// AnswerGenerator writes the final answer from assembled context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, context string) (domain.GeneratedAnswer, error)
}

// IngestRunRepository persists ingest run state.
type IngestRunRepository interface {
	Create(ctx context.Context, run *domain.IngestRun) error
	GetByID(ctx context.Context, id string) (*domain.IngestRun, error)
	UpdateStatus(ctx context.Context, id string, status domain.IngestStatus, docsIndexed int, errMessage string) error
}

// QueryTraceStore persists answer chain traces.
type QueryTraceStore interface {
	SaveTrace(ctx context.Context, trace domain.QueryTrace) error
}

// ObjectStorage stores uploaded corpus files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes corpus ingestion events.
type MessageQueue interface {
	PublishCorpusUploaded(ctx context.Context, runID string) error
	SubscribeCorpusUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// CorpusParser turns a raw act file into provision documents.
type CorpusParser interface {
	Parse(source domain.ActSource, raw io.Reader) ([]domain.Document, error)
}

// Chunker splits long provision text into clause-sized chunks.
type Chunker interface {
	Split(text string) []string
}
