package usecase

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

const (
	defaultEmbedBatchSize = 128
	defaultLoadWorkers    = 4
)

// DocumentLoader embeds and bulk-indexes provision documents in batches.
type DocumentLoader struct {
	embedder  ports.Embedder
	writer    ports.ProvisionWriter
	batchSize int
	workers   int
}

func NewDocumentLoader(embedder ports.Embedder, writer ports.ProvisionWriter, batchSize, workers int) *DocumentLoader {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	if workers <= 0 {
		workers = defaultLoadWorkers
	}
	return &DocumentLoader{embedder: embedder, writer: writer, batchSize: batchSize, workers: workers}
}

// Load returns the number of documents indexed. Batches run concurrently up
// to the worker limit; the first failing batch cancels the rest.
func (l *DocumentLoader) Load(ctx context.Context, docs []domain.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for start := 0; start < len(docs); start += l.batchSize {
		end := min(start+l.batchSize, len(docs))
		batch := docs[start:end]
		g.Go(func() error {
			return l.loadBatch(gctx, batch)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (l *DocumentLoader) loadBatch(ctx context.Context, batch []domain.Document) error {
	texts := make([]string, 0, len(batch))
	for _, d := range batch {
		texts = append(texts, d.Text)
	}
	vectors, err := l.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(batch) {
		return domain.WrapError(
			domain.ErrUpstream,
			"embed documents",
			fmt.Errorf("vectors/docs mismatch: %d/%d", len(vectors), len(batch)),
		)
	}
	if err := l.writer.IndexDocuments(ctx, batch, vectors); err != nil {
		return fmt.Errorf("index documents: %w", err)
	}
	return nil
}

type ProcessCorpusUseCase struct {
	repo    ports.IngestRunRepository
	storage ports.ObjectStorage
	parser  ports.CorpusParser
	loader  *DocumentLoader
}

func NewProcessCorpusUseCase(
	repo ports.IngestRunRepository,
	storage ports.ObjectStorage,
	parser ports.CorpusParser,
	loader *DocumentLoader,
) *ProcessCorpusUseCase {
	return &ProcessCorpusUseCase{
		repo:    repo,
		storage: storage,
		parser:  parser,
		loader:  loader,
	}
}

func (uc *ProcessCorpusUseCase) ProcessByID(ctx context.Context, runID string) error {
	if err := uc.repo.UpdateStatus(ctx, runID, domain.IngestProcessing, 0, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	indexed, err := uc.processPipeline(ctx, runID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, runID, domain.IngestFailed, 0, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, runID, domain.IngestReady, indexed, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessCorpusUseCase) processPipeline(ctx context.Context, runID string) (int, error) {
	run, err := uc.repo.GetByID(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("fetch ingest run by id: %w", err)
	}

	source, ok := domain.LookupActSource(run.ActAbbrev)
	if !ok {
		return 0, domain.WrapError(domain.ErrInvalidInput, "resolve act source", fmt.Errorf("unknown act %q", run.ActAbbrev))
	}

	raw, err := uc.storage.Open(ctx, run.StoragePath)
	if err != nil {
		return 0, fmt.Errorf("open act file: %w", err)
	}
	defer raw.Close()

	docs, err := uc.parser.Parse(source, raw)
	if err != nil {
		return 0, fmt.Errorf("parse act file: %w", err)
	}
	if len(docs) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse act file", errors.New("act file produced zero documents"))
	}

	indexed, err := uc.loader.Load(ctx, docs)
	if err != nil {
		return 0, err
	}
	return indexed, nil
}
