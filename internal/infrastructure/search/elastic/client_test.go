package elastic

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/extractor/actjson"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type recordedRequest struct {
	method string
	path   string
	body   []byte
}

type fakeCluster struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request, body []byte)
}

func (f *fakeCluster) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newFakeCluster(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body []byte)) (*fakeCluster, *Client) {
	t.Helper()
	cluster := &fakeCluster{handler: handler}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		cluster.mu.Lock()
		cluster.requests = append(cluster.requests, recordedRequest{method: r.Method, path: r.URL.Path, body: body})
		cluster.mu.Unlock()
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		cluster.handler(w, r, body)
	}))
	t.Cleanup(server.Close)

	client, err := New(Config{Addresses: []string{server.URL}, Index: "legal-provisions", VectorDims: 3}, fakeEmbedder{}, nil)
	require.NoError(t, err)
	return cluster, client
}

const searchHits = `{"hits":{"hits":[
 {"_id":"1","_score":3.2,"_source":{"text":"Section 279. Rash driving","metadata":{"act":"Indian Penal Code, 1860","act_abbrev":"IPC","source_type":"section","section_id":279,"citation":"stale","raw_text":"Whoever drives","unknown_key":"x","chunk_index":2}}},
 {"_id":"2","_score":1.0,"_source":{"text":"Article 21. Protection of life","metadata":{"act_abbrev":"COI","source_type":"Article","article_id":"21"}}}
]}}`

func TestSearchPhraseBuildsFilteredQuery(t *testing.T) {
	cluster, client := newFakeCluster(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		_, _ = w.Write([]byte(searchHits))
	})

	docs, err := client.SearchPhrase(context.Background(), "Section 279", 10, domain.IndexFilter{
		Act:         domain.ActIPC,
		SourceTypes: []domain.SourceType{domain.SourceSection, domain.SourceClause},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	req := cluster.last()
	assert.Equal(t, "/legal-provisions/_search", req.path)

	var body map[string]any
	require.NoError(t, json.Unmarshal(req.body, &body))
	assert.EqualValues(t, 10, body["size"])
	query := body["query"].(map[string]any)["bool"].(map[string]any)
	assert.Equal(t, "Section 279", query["must"].([]any)[0].(map[string]any)["match_phrase"].(map[string]any)["text"])

	filters := query["filter"].([]any)
	require.Len(t, filters, 2)
	actShould := filters[0].(map[string]any)["bool"].(map[string]any)["should"].([]any)
	assert.Equal(t, "IPC", actShould[0].(map[string]any)["term"].(map[string]any)["metadata.act_abbrev.keyword"])
	assert.Equal(t, "ipc", actShould[1].(map[string]any)["term"].(map[string]any)["metadata.act_abbrev"])
	typeShould := filters[1].(map[string]any)["bool"].(map[string]any)["should"].([]any)
	assert.Equal(t, []any{"section", "clause"}, typeShould[0].(map[string]any)["terms"].(map[string]any)["metadata.source_type.keyword"])
}

func TestSearchDecodesFixedMetadata(t *testing.T) {
	_, client := newFakeCluster(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		_, _ = w.Write([]byte(searchHits))
	})

	docs, err := client.SearchPhrase(context.Background(), "x", 5, domain.IndexFilter{})
	require.NoError(t, err)

	first := docs[0].Metadata
	assert.Equal(t, "279", first.SectionID)
	assert.Equal(t, "2", first.ChunkIndex)
	assert.Equal(t, "Section 279 (IPC)", first.Citation())
	assert.Equal(t, domain.SourceSection, first.SourceType)
	assert.Equal(t, "Whoever drives", first.RawText)
	assert.Equal(t, domain.SourceArticle, docs[1].Metadata.SourceType)
	assert.Equal(t, "Article 21 (COI)", docs[1].Metadata.Citation())
}

func TestSimilaritySearchUsesKNNWithFilter(t *testing.T) {
	cluster, client := newFakeCluster(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[]}}`))
	})

	docs, err := client.SimilaritySearch(context.Background(), "Section 304A", 10, domain.IndexFilter{
		Act:         domain.ActIPC,
		SourceTypes: []domain.SourceType{domain.SourceSection},
		SectionID:   "304A",
	})
	require.NoError(t, err)
	assert.Empty(t, docs)

	var body map[string]any
	require.NoError(t, json.Unmarshal(cluster.last().body, &body))
	knn := body["knn"].(map[string]any)
	assert.Equal(t, "vector_field", knn["field"])
	assert.EqualValues(t, 10, knn["k"])
	assert.EqualValues(t, 40, knn["num_candidates"])
	filters := knn["filter"].(map[string]any)["bool"].(map[string]any)["filter"].([]any)
	require.Len(t, filters, 3)
	sectionShould := filters[2].(map[string]any)["bool"].(map[string]any)["should"].([]any)
	assert.Equal(t, "304a", sectionShould[1].(map[string]any)["term"].(map[string]any)["metadata.section_id"])
}

func TestSimilaritySearchUnscopedHasNoFilter(t *testing.T) {
	cluster, client := newFakeCluster(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[]}}`))
	})

	_, err := client.SimilaritySearch(context.Background(), "bail", 6, domain.IndexFilter{Act: domain.ActAll})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(cluster.last().body, &body))
	_, hasFilter := body["knn"].(map[string]any)["filter"]
	assert.False(t, hasFilter)
}

func TestSearchFailureIsIndexUnavailable(t *testing.T) {
	_, client := newFakeCluster(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
	})

	_, err := client.SearchPhrase(context.Background(), "Section 279", 10, domain.IndexFilter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.Contains(t, err.Error(), "index_not_found_exception")
}

func TestIndexDocumentsWritesNDJSON(t *testing.T) {
	cluster, client := newFakeCluster(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		_, _ = w.Write([]byte(`{"errors":false,"items":[{"index":{"status":201}}]}`))
	})

	doc := domain.Document{Text: "Section 279. Rash driving", Metadata: domain.Metadata{ActAbbrev: "IPC", SourceType: domain.SourceSection, SectionID: "279"}}
	err := client.IndexDocuments(context.Background(), []domain.Document{doc}, [][]float32{{1, 2, 3}})
	require.NoError(t, err)

	req := cluster.last()
	assert.Equal(t, "/legal-provisions/_bulk", req.path)
	scanner := bufio.NewScanner(strings.NewReader(string(req.body)))
	lines := []string{}
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], documentID(doc))

	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &stored))
	assert.Equal(t, "Section 279 (IPC)", stored["metadata"].(map[string]any)["citation"])
	assert.Len(t, stored["vector_field"], 3)
}

func TestIndexDocumentsReportsItemErrors(t *testing.T) {
	_, client := newFakeCluster(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		_, _ = w.Write([]byte(`{"errors":true,"items":[{"index":{"status":400,"error":{"type":"mapper_parsing_exception","reason":"dims mismatch"}}}]}`))
	})

	err := client.IndexDocuments(context.Background(), []domain.Document{{Text: "x"}}, [][]float32{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dims mismatch")
}

func TestDocumentIDStableAcrossReloads(t *testing.T) {
	a := domain.Document{
		Text:     "Section 302. Punishment for murder\nWhoever commits murder...",
		Metadata: domain.Metadata{ActAbbrev: "IPC", SourceType: domain.SourceClause, SectionID: "302", ChunkIndex: "1", RawText: "Whoever commits murder..."},
	}
	b := a
	b.Text = "re-rendered heading\nWhoever commits murder..."
	assert.Equal(t, documentID(a), documentID(b), "same raw text must keep the id")

	b.Metadata.ChunkIndex = "2"
	assert.NotEqual(t, documentID(a), documentID(b))
}

func TestDocumentIDDistinguishesProvisionsSharingANumber(t *testing.T) {
	raw := `[
		{"section_title": "Preamble", "section_desc": "Whereas it is expedient to consolidate the law"},
		{"section_title": "Commencement note", "section_desc": "This Code shall come into force on the first day of January"},
		{"section": "1", "section_title": "Short title", "section_desc": "This Act may be cited as the Code of Civil Procedure"},
		{"section": "1", "section_title": "Short title (amended)", "section_desc": "It extends to the whole of India"}
	]`
	src, ok := domain.LookupActSource(domain.ActCPC)
	require.True(t, ok)
	docs, err := actjson.NewParser(chunking.NewSplitter(900, 100), 0).Parse(src, strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, docs, 4)

	ids := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		ids[documentID(doc)] = struct{}{}
	}
	assert.Len(t, ids, len(docs), "every parsed document needs its own bulk id")

	again, err := actjson.NewParser(chunking.NewSplitter(900, 100), 0).Parse(src, strings.NewReader(raw))
	require.NoError(t, err)
	for i := range docs {
		assert.Equal(t, documentID(docs[i]), documentID(again[i]), "reloading an act must reuse its ids")
	}
}

func TestEnsureIndexCreatesMissingIndex(t *testing.T) {
	cluster, client := newFakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	})

	created, err := client.EnsureIndex(context.Background())
	require.NoError(t, err)
	assert.True(t, created)

	req := cluster.last()
	assert.Equal(t, http.MethodPut, req.method)
	var body map[string]any
	require.NoError(t, json.Unmarshal(req.body, &body))
	props := body["mappings"].(map[string]any)["properties"].(map[string]any)
	assert.EqualValues(t, 3, props["vector_field"].(map[string]any)["dims"])
}

func TestEnsureIndexSkipsExistingIndex(t *testing.T) {
	cluster, client := newFakeCluster(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.WriteHeader(http.StatusOK)
	})

	created, err := client.EnsureIndex(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, cluster.requests, 1)
}

func TestAuditReportsMissingKeywordFields(t *testing.T) {
	_, client := newFakeCluster(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		_, _ = w.Write([]byte(`{"legal-provisions":{"mappings":{"properties":{"metadata":{"properties":{
			"act_abbrev":{"type":"text","fields":{"keyword":{"type":"keyword"}}},
			"source_type":{"type":"text","fields":{"keyword":{"type":"keyword"}}},
			"section_id":{"type":"long"}
		}}}}}}`))
	})

	report, err := client.Audit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"act_abbrev", "source_type"}, report.Present)
	assert.Equal(t, []string{"article_id", "section_id"}, report.Missing)
}

func TestCount(t *testing.T) {
	cluster, client := newFakeCluster(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		_, _ = w.Write([]byte(`{"count":4211}`))
	})

	n, err := client.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4211, n)
	assert.Equal(t, "/legal-provisions/_count", cluster.last().path)
}
