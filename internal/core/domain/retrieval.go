package domain

// ReferenceLookup is one explicit provision reference to fetch by identifier.
type ReferenceLookup struct {
	Type SourceType `json:"type"`
	Act  Act        `json:"act"`
	ID   string     `json:"id"`
}

// Reference renders the lookup as it appears in provision text, e.g. "Section 279".
func (l ReferenceLookup) Reference() string {
	if l.Type == SourceArticle {
		return "Article " + l.ID
	}
	return "Section " + l.ID
}

// RetrievalIntent is the per-turn retrieval plan. It is built once and
// shared read-only by every strategy of a round.
type RetrievalIntent struct {
	Act             Act               `json:"act"`
	ArticleLookups  []ReferenceLookup `json:"article_lookups"`
	SectionLookups  []ReferenceLookup `json:"section_lookups"`
	SemanticQueries []string          `json:"semantic_queries"`
}

// IndexFilter is the structured filter handed to the index. Empty fields add
// no clause; populated fields are combined with AND.
type IndexFilter struct {
	Act         Act
	SourceTypes []SourceType
	ArticleID   string
	SectionID   string
}

// RetrievalResult is the output of one fusion round.
type RetrievalResult struct {
	Intent         RetrievalIntent `json:"intent"`
	SubQueries     []string        `json:"sub_queries"`
	Documents      []Document      `json:"documents"`
	StrategyCounts map[string]int  `json:"strategy_counts"`
}

// Answer is the user-facing result of the answer chain.
type Answer struct {
	Text           string         `json:"answer"`
	CitedSections  []string       `json:"cited_sections"`
	Act            Act            `json:"act"`
	SubQueries     []string       `json:"sub_queries"`
	Sources        []Document     `json:"sources"`
	StrategyCounts map[string]int `json:"strategy_counts"`
}

// GeneratedAnswer is the structured output requested from the model.
type GeneratedAnswer struct {
	Answer        string   `json:"answer"`
	CitedSections []string `json:"cited_sections"`
}
