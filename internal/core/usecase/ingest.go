package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

type IngestCorpusUseCase struct {
	repo    ports.IngestRunRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestCorpusUseCase(
	repo ports.IngestRunRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestCorpusUseCase {
	return &IngestCorpusUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Upload stores an act file and queues it for indexing.
func (uc *IngestCorpusUseCase) Upload(
	ctx context.Context,
	act domain.Act,
	filename string,
	body io.Reader,
) (*domain.IngestRun, error) {
	if _, ok := domain.LookupActSource(act); !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload corpus", fmt.Errorf("unknown act %q", act))
	}
	if !strings.EqualFold(filepath.Ext(filename), ".json") {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload corpus", errors.New("act file must be .json"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s_%s", act, id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	run := &domain.IngestRun{
		ID:          id,
		ActAbbrev:   act,
		Filename:    filename,
		StoragePath: storageKey,
		Status:      domain.IngestUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create ingest run: %w", err)
	}

	if err := uc.queue.PublishCorpusUploaded(ctx, run.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return run, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "act.json"
	}
	return base
}
