package elastic

import (
	"strings"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

const (
	textField   = "text"
	vectorField = "vector_field"
)

// fieldMatch accepts either the exact keyword value or the analyzed
// lowercase token, so documents indexed with or without a keyword subfield
// both match.
func fieldMatch(field, value string) map[string]any {
	return map[string]any{
		"bool": map[string]any{
			"should": []any{
				map[string]any{"term": map[string]any{"metadata." + field + ".keyword": value}},
				map[string]any{"term": map[string]any{"metadata." + field: strings.ToLower(value)}},
			},
			"minimum_should_match": 1,
		},
	}
}

func fieldMatchAny(field string, values []string) map[string]any {
	lowered := make([]string, 0, len(values))
	for _, v := range values {
		lowered = append(lowered, strings.ToLower(v))
	}
	return map[string]any{
		"bool": map[string]any{
			"should": []any{
				map[string]any{"terms": map[string]any{"metadata." + field + ".keyword": values}},
				map[string]any{"terms": map[string]any{"metadata." + field: lowered}},
			},
			"minimum_should_match": 1,
		},
	}
}

func filterClauses(f domain.IndexFilter) []any {
	clauses := make([]any, 0, 4)
	if f.Act.IsScoped() {
		clauses = append(clauses, fieldMatch("act_abbrev", string(f.Act)))
	}
	if len(f.SourceTypes) > 0 {
		values := make([]string, 0, len(f.SourceTypes))
		for _, st := range f.SourceTypes {
			values = append(values, string(st))
		}
		clauses = append(clauses, fieldMatchAny("source_type", values))
	}
	if f.ArticleID != "" {
		clauses = append(clauses, fieldMatch("article_id", f.ArticleID))
	}
	if f.SectionID != "" {
		clauses = append(clauses, fieldMatch("section_id", f.SectionID))
	}
	return clauses
}

func phraseQuery(phrase string, limit int, f domain.IndexFilter) map[string]any {
	boolQuery := map[string]any{
		"must": []any{
			map[string]any{"match_phrase": map[string]any{textField: phrase}},
		},
	}
	if clauses := filterClauses(f); len(clauses) > 0 {
		boolQuery["filter"] = clauses
	}
	return map[string]any{
		"size":    limit,
		"_source": []string{textField, "metadata"},
		"query":   map[string]any{"bool": boolQuery},
	}
}

func knnQuery(vector []float32, k int, f domain.IndexFilter) map[string]any {
	knn := map[string]any{
		"field":          vectorField,
		"query_vector":   vector,
		"k":              k,
		"num_candidates": k * 4,
	}
	if clauses := filterClauses(f); len(clauses) > 0 {
		knn["filter"] = map[string]any{"bool": map[string]any{"filter": clauses}}
	}
	return map[string]any{
		"size":    k,
		"_source": []string{textField, "metadata"},
		"knn":     knn,
	}
}
