package ports

import (
	"context"
	"io"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

// LegalQueryService is the inbound contract for grounded legal answers.
type LegalQueryService interface {
	Answer(ctx context.Context, question string, act string) (*domain.Answer, error)
}

// ProvisionRetriever is the inbound contract for one fusion round.
type ProvisionRetriever interface {
	Retrieve(ctx context.Context, subQueries []string, question string, act string) (*domain.RetrievalResult, error)
}

// CorpusIngestor accepts act source files for asynchronous indexing.
type CorpusIngestor interface {
	Upload(ctx context.Context, act domain.Act, filename string, body io.Reader) (*domain.IngestRun, error)
}

// IngestRunReader is the read model for ingest run state.
type IngestRunReader interface {
	GetByID(ctx context.Context, id string) (*domain.IngestRun, error)
}

// CorpusProcessor parses, embeds and indexes one uploaded act file.
type CorpusProcessor interface {
	ProcessByID(ctx context.Context, runID string) error
}

// QueryTraceReader lists recorded answer chain traces, newest first.
type QueryTraceReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.QueryTrace, error)
}
