package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

// keywordFields carry a .keyword subfield used by exact filters.
var keywordFields = []string{
	"source", "act", "act_abbrev", "jurisdiction", "source_type", "title",
	"chapter", "chapter_title", "article_id", "section_id", "citation", "chunk_index",
}

// auditFields are the filter fields whose keyword subfield must exist.
var auditFields = []string{"section_id", "article_id", "act_abbrev", "source_type"}

func indexMapping(dims int) map[string]any {
	metaProps := make(map[string]any, len(keywordFields)+1)
	for _, f := range keywordFields {
		metaProps[f] = map[string]any{
			"type": "text",
			"fields": map[string]any{
				"keyword": map[string]any{"type": "keyword", "ignore_above": 256},
			},
		}
	}
	metaProps["raw_text"] = map[string]any{"type": "text"}

	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				textField: map[string]any{"type": "text"},
				vectorField: map[string]any{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
				},
				"metadata": map[string]any{"properties": metaProps},
			},
		},
	}
}

// EnsureIndex creates the index with the provision mapping when it is
// missing. It reports whether the index was created.
func (c *Client) EnsureIndex(ctx context.Context) (bool, error) {
	exists := false
	err := c.run(ctx, "elastic.index_exists", func(ctx context.Context) error {
		res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("elastic index_exists request: %w", err)
		}
		defer res.Body.Close()
		switch {
		case res.StatusCode == 200:
			exists = true
		case res.StatusCode == 404:
			exists = false
		default:
			return &StatusError{Operation: "index_exists", StatusCode: res.StatusCode}
		}
		return nil
	})
	if err != nil {
		return false, domain.WrapError(domain.ErrIndexUnavailable, "elastic index_exists", err)
	}
	if exists {
		return false, nil
	}
	if c.dims <= 0 {
		return false, domain.WrapError(domain.ErrInvalidInput, "elastic create_index", fmt.Errorf("vector dims must be positive, got %d", c.dims))
	}

	body, err := json.Marshal(indexMapping(c.dims))
	if err != nil {
		return false, fmt.Errorf("marshal index mapping: %w", err)
	}
	err = c.execute(ctx, "create_index", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Indices.Create(
			c.index,
			c.es.Indices.Create.WithContext(ctx),
			c.es.Indices.Create.WithBody(bytes.NewReader(body)),
		)
	}, nil)
	if err != nil {
		return false, err
	}
	return true, nil
}

// AuditReport lists filter fields with and without a keyword subfield.
type AuditReport struct {
	Index   string   `json:"index"`
	Present []string `json:"present"`
	Missing []string `json:"missing"`
}

func (c *Client) Audit(ctx context.Context) (AuditReport, error) {
	var response map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Properties map[string]struct {
					Fields map[string]json.RawMessage `json:"fields"`
				} `json:"properties"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	err := c.execute(ctx, "get_mapping", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Indices.GetMapping(
			c.es.Indices.GetMapping.WithContext(ctx),
			c.es.Indices.GetMapping.WithIndex(c.index),
		)
	}, &response)
	if err != nil {
		return AuditReport{}, err
	}

	report := AuditReport{Index: c.index, Present: []string{}, Missing: []string{}}
	meta := response[c.index].Mappings.Properties["metadata"].Properties
	for _, field := range auditFields {
		if _, ok := meta[field].Fields["keyword"]; ok {
			report.Present = append(report.Present, field)
		} else {
			report.Missing = append(report.Missing, field)
		}
	}
	sort.Strings(report.Present)
	sort.Strings(report.Missing)
	return report, nil
}

func (c *Client) Count(ctx context.Context) (int64, error) {
	var response struct {
		Count int64 `json:"count"`
	}
	err := c.execute(ctx, "count", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Count(
			c.es.Count.WithContext(ctx),
			c.es.Count.WithIndex(c.index),
		)
	}, &response)
	if err != nil {
		return 0, err
	}
	return response.Count, nil
}
