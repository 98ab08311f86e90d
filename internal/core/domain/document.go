package domain

import (
	"fmt"
	"strings"
)

// Act is the closed set of act abbreviations known to the corpus.
type Act string

const (
	ActIPC  Act = "IPC"
	ActCrPC Act = "CrPC"
	ActCPC  Act = "CPC"
	ActHMA  Act = "HMA"
	ActIDA  Act = "IDA"
	ActIEA  Act = "IEA"
	ActNIA  Act = "NIA"
	ActMVA  Act = "MVA"
	ActCOI  Act = "COI"
	ActAll  Act = "All"
)

var knownActs = []Act{ActIPC, ActCrPC, ActCPC, ActHMA, ActIDA, ActIEA, ActNIA, ActMVA, ActCOI, ActAll}

// ParseAct resolves an abbreviation case-insensitively. Empty input is ActAll.
func ParseAct(raw string) (Act, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ActAll, true
	}
	for _, act := range knownActs {
		if strings.EqualFold(raw, string(act)) {
			return act, true
		}
	}
	return "", false
}

// IsScoped reports whether the act narrows retrieval to a single act.
func (a Act) IsScoped() bool {
	return a != "" && a != ActAll
}

type SourceType string

const (
	SourceArticle SourceType = "article"
	SourceSection SourceType = "section"
	SourceClause  SourceType = "clause"
)

// Metadata is the fixed attribute set carried by an indexed provision.
type Metadata struct {
	Source        string     `json:"source,omitempty"`
	Act           string     `json:"act,omitempty"`
	ActAbbrev     string     `json:"act_abbrev,omitempty"`
	Jurisdiction  string     `json:"jurisdiction,omitempty"`
	SourceType    SourceType `json:"source_type,omitempty"`
	Title         string     `json:"title,omitempty"`
	Chapter       string     `json:"chapter,omitempty"`
	ChapterTitle  string     `json:"chapter_title,omitempty"`
	ArticleID     string     `json:"article_id,omitempty"`
	SectionID     string     `json:"section_id,omitempty"`
	RawText       string     `json:"raw_text,omitempty"`
	ChunkIndex    string     `json:"chunk_index,omitempty"`
	Retriever     string     `json:"retriever,omitempty"`
	RetrieverRank *int       `json:"retriever_rank,omitempty"`
}

// Citation renders "Article {id} ({abbrev})" or "Section {id} ({abbrev})".
// A section id takes precedence over an article id.
func (m Metadata) Citation() string {
	citation := ""
	if m.ArticleID != "" {
		citation = "Article " + m.ArticleID
	}
	if m.SectionID != "" {
		citation = "Section " + m.SectionID
	}
	if citation != "" && m.ActAbbrev != "" {
		citation = fmt.Sprintf("%s (%s)", citation, m.ActAbbrev)
	}
	return citation
}

// ProvisionID returns the identifier Citation renders: the section id when
// set, else the article id.
func (m Metadata) ProvisionID() string {
	if m.SectionID != "" {
		return m.SectionID
	}
	return m.ArticleID
}

// Document is a provision (or clause chunk of one) returned by the index.
// Retrieval code works on copies; the index owns the stored record.
type Document struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// bodyKeyRunes bounds the body prefix used when raw_text is absent.
const bodyKeyRunes = 400

// BodyKey is the text that tells apart provisions sharing an id: the stored
// raw text, or the first 400 runes of the body when there is none.
func (d Document) BodyKey() string {
	if raw := strings.TrimSpace(d.Metadata.RawText); raw != "" {
		return raw
	}
	runes := []rune(d.Text)
	if len(runes) > bodyKeyRunes {
		runes = runes[:bodyKeyRunes]
	}
	return string(runes)
}

// WithRetriever returns a copy annotated with strategy provenance.
func (d Document) WithRetriever(name string, rank int) Document {
	out := d
	out.Metadata.Retriever = name
	r := rank
	out.Metadata.RetrieverRank = &r
	return out
}
