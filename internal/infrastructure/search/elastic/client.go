package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/resilience"
)

type Config struct {
	Addresses  []string
	Username   string
	Password   string
	Index      string
	VectorDims int
	Transport  http.RoundTripper
}

// Client is the provision index backed by one Elasticsearch index. Query
// vectors come from the injected embedder.
type Client struct {
	es       *elasticsearch.Client
	index    string
	dims     int
	embedder ports.Embedder
	executor *resilience.Executor
}

func New(cfg Config, embedder ports.Embedder, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(cfg.Index) == "" {
		return nil, errors.New("elastic: index name is required")
	}
	esCfg := elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Transport:    cfg.Transport,
		DisableRetry: true,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Client{
		es:       es,
		index:    cfg.Index,
		dims:     cfg.VectorDims,
		embedder: embedder,
		executor: executor,
	}, nil
}

func (c *Client) Index() string { return c.index }

// SearchPhrase runs an exact-phrase match on the provision body.
func (c *Client) SearchPhrase(ctx context.Context, phrase string, limit int, filter domain.IndexFilter) ([]domain.Document, error) {
	if limit <= 0 {
		return []domain.Document{}, nil
	}
	return c.search(ctx, "phrase_search", phraseQuery(phrase, limit, filter))
}

// SimilaritySearch embeds the query and runs a filtered kNN search.
func (c *Client) SimilaritySearch(ctx context.Context, query string, k int, filter domain.IndexFilter) ([]domain.Document, error) {
	if k <= 0 {
		return []domain.Document{}, nil
	}
	vector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return c.search(ctx, "similarity_search", knnQuery(vector, k, filter))
}

func (c *Client) search(ctx context.Context, operation string, body map[string]any) ([]domain.Document, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", operation, err)
	}

	var response searchResponse
	err = c.execute(ctx, operation, func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Search(
			c.es.Search.WithContext(ctx),
			c.es.Search.WithIndex(c.index),
			c.es.Search.WithBody(bytes.NewReader(payload)),
		)
	}, &response)
	if err != nil {
		return nil, err
	}
	return response.documents(), nil
}

// execute performs one request through the resilience executor, decodes a
// successful body into out and maps every failure to ErrIndexUnavailable.
func (c *Client) execute(
	ctx context.Context,
	operation string,
	call func(context.Context) (*esapi.Response, error),
	out any,
) error {
	err := c.run(ctx, "elastic."+operation, func(ctx context.Context) error {
		res, err := call(ctx)
		if err != nil {
			return fmt.Errorf("elastic %s request: %w", operation, err)
		}
		defer res.Body.Close()

		if res.IsError() {
			raw, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
			return &StatusError{Operation: operation, StatusCode: res.StatusCode, Body: string(raw)}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	})
	if err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "elastic "+operation, err)
	}
	return nil
}

func (c *Client) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, classifyElasticError)
}
