package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/resilience"
)

const maxSubQueries = 5

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Decomposer asks the model for atomic retrieval sub-queries.
type Decomposer struct {
	client *Client
}

func NewDecomposer(client *Client) *Decomposer {
	return &Decomposer{client: client}
}

// Decompose returns at most five sub-queries. Output that is not the expected
// JSON object yields an empty list, not an error.
func (d *Decomposer) Decompose(ctx context.Context, question string, act domain.Act) ([]string, error) {
	respText, err := d.client.generateJSON(ctx, buildDecomposePrompt(question, act))
	if err != nil {
		return nil, err
	}
	return parseSubQueries(respText), nil
}

func parseSubQueries(raw string) []string {
	var payload struct {
		SubQueries []any `json:"sub_queries"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return []string{}
	}
	out := make([]string, 0, maxSubQueries)
	for _, item := range payload.SubQueries {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(s))
		if len(out) == maxSubQueries {
			break
		}
	}
	return out
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// GenerateAnswer requests {answer, cited_sections}. A reply that is not valid
// JSON is used verbatim as the answer text.
func (g *Generator) GenerateAnswer(ctx context.Context, question string, contextText string) (domain.GeneratedAnswer, error) {
	respText, err := g.client.generateJSON(ctx, buildAnswerPrompt(question, contextText))
	if err != nil {
		return domain.GeneratedAnswer{}, err
	}
	return parseGeneratedAnswer(respText)
}

func parseGeneratedAnswer(raw string) (domain.GeneratedAnswer, error) {
	var result domain.GeneratedAnswer
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil || strings.TrimSpace(result.Answer) == "" {
		if strings.TrimSpace(raw) == "" {
			return domain.GeneratedAnswer{}, errors.New("empty answer from model")
		}
		return domain.GeneratedAnswer{Answer: strings.TrimSpace(raw), CitedSections: []string{}}, nil
	}
	if result.CitedSections == nil {
		result.CitedSections = []string{}
	}
	return result, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
