package elastic

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

// flexString accepts JSON strings and numbers; act files store provision
// ids either way.
type flexString string

func (s *flexString) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		*s = ""
		return nil
	}
	if raw[0] == '"' {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*s = flexString(strconv.FormatInt(i, 10))
		return nil
	}
	*s = flexString(n.String())
	return nil
}

// storedMetadata is the fixed metadata shape read from and written to the
// index. Keys outside this set are dropped on decode.
type storedMetadata struct {
	Source       string     `json:"source,omitempty"`
	Act          string     `json:"act,omitempty"`
	ActAbbrev    string     `json:"act_abbrev,omitempty"`
	Jurisdiction string     `json:"jurisdiction,omitempty"`
	SourceType   string     `json:"source_type,omitempty"`
	Title        string     `json:"title,omitempty"`
	Chapter      flexString `json:"chapter,omitempty"`
	ChapterTitle string     `json:"chapter_title,omitempty"`
	ArticleID    flexString `json:"article_id,omitempty"`
	SectionID    flexString `json:"section_id,omitempty"`
	Citation     string     `json:"citation,omitempty"`
	RawText      string     `json:"raw_text,omitempty"`
	ChunkIndex   flexString `json:"chunk_index,omitempty"`
}

type storedDocument struct {
	Text     string         `json:"text"`
	Metadata storedMetadata `json:"metadata"`
	Vector   []float32      `json:"vector_field,omitempty"`
}

func toStored(doc domain.Document, vector []float32) storedDocument {
	m := doc.Metadata
	return storedDocument{
		Text: doc.Text,
		Metadata: storedMetadata{
			Source:       m.Source,
			Act:          m.Act,
			ActAbbrev:    m.ActAbbrev,
			Jurisdiction: m.Jurisdiction,
			SourceType:   string(m.SourceType),
			Title:        m.Title,
			Chapter:      flexString(m.Chapter),
			ChapterTitle: m.ChapterTitle,
			ArticleID:    flexString(m.ArticleID),
			SectionID:    flexString(m.SectionID),
			Citation:     m.Citation(),
			RawText:      m.RawText,
			ChunkIndex:   flexString(m.ChunkIndex),
		},
		Vector: vector,
	}
}

func (s storedDocument) toDomain() domain.Document {
	m := s.Metadata
	return domain.Document{
		Text: s.Text,
		Metadata: domain.Metadata{
			Source:       m.Source,
			Act:          m.Act,
			ActAbbrev:    m.ActAbbrev,
			Jurisdiction: m.Jurisdiction,
			SourceType:   domain.SourceType(strings.ToLower(m.SourceType)),
			Title:        m.Title,
			Chapter:      string(m.Chapter),
			ChapterTitle: m.ChapterTitle,
			ArticleID:    strings.ToUpper(string(m.ArticleID)),
			SectionID:    strings.ToUpper(string(m.SectionID)),
			RawText:      m.RawText,
			ChunkIndex:   string(m.ChunkIndex),
		},
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string         `json:"_id"`
			Score  float64        `json:"_score"`
			Source storedDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (r searchResponse) documents() []domain.Document {
	out := make([]domain.Document, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		out = append(out, hit.Source.toDomain())
	}
	return out
}
