package elastic

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// IndexDocuments bulk-writes documents with their vectors. Document ids are
// derived from act, provision, chunk and body so reloading an act overwrites
// its own documents while distinct provisions sharing a number coexist.
func (c *Client) IndexDocuments(ctx context.Context, docs []domain.Document, vectors [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if len(docs) != len(vectors) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"elastic bulk index",
			fmt.Errorf("vectors/docs mismatch: %d/%d", len(vectors), len(docs)),
		)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, doc := range docs {
		action := map[string]any{"index": map[string]any{"_index": c.index, "_id": documentID(doc)}}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(toStored(doc, vectors[i])); err != nil {
			return fmt.Errorf("encode bulk document: %w", err)
		}
	}
	payload := buf.Bytes()

	var response bulkResponse
	err := c.execute(ctx, "bulk_index", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Bulk(
			bytes.NewReader(payload),
			c.es.Bulk.WithContext(ctx),
			c.es.Bulk.WithIndex(c.index),
			c.es.Bulk.WithRefresh("true"),
		)
	}, &response)
	if err != nil {
		return err
	}
	if response.Errors {
		return domain.WrapError(domain.ErrIndexUnavailable, "elastic bulk index", firstBulkError(response))
	}
	return nil
}

func firstBulkError(r bulkResponse) error {
	failed := 0
	var first string
	for _, item := range r.Items {
		for _, result := range item {
			if result.Error == nil {
				continue
			}
			failed++
			if first == "" {
				first = result.Error.Type + ": " + result.Error.Reason
			}
		}
	}
	if failed == 0 {
		return errors.New("bulk request reported errors")
	}
	return fmt.Errorf("%d bulk items failed, first: %s", failed, first)
}

func documentID(doc domain.Document) string {
	m := doc.Metadata
	body := sha256.Sum256([]byte(doc.BodyKey()))
	key := strings.Join([]string{m.ActAbbrev, string(m.SourceType), m.ProvisionID(), m.ChunkIndex, hex.EncodeToString(body[:])}, "|")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
