package actjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

const (
	Jurisdiction           = "India"
	DefaultClauseThreshold = 1200
)

var (
	hyphenBreakPattern = regexp.MustCompile(`(\w)-\n(\w)`)
	blankLinesPattern  = regexp.MustCompile(`\n{3,}`)
	spaceRunPattern    = regexp.MustCompile(`[ \t]{2,}`)
)

// Parser turns act and constitution JSON files into provision documents.
// Provisions longer than the clause threshold also yield clause chunks.
type Parser struct {
	chunker         ports.Chunker
	clauseThreshold int
}

func NewParser(chunker ports.Chunker, clauseThreshold int) *Parser {
	if clauseThreshold <= 0 {
		clauseThreshold = DefaultClauseThreshold
	}
	return &Parser{chunker: chunker, clauseThreshold: clauseThreshold}
}

// rawID accepts provision ids written as strings or numbers.
type rawID string

func (id *rawID) UnmarshalJSON(raw []byte) error {
	if string(raw) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*id = rawID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("provision id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = rawID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = rawID(n.String())
	return nil
}

type actEntry struct {
	Section      *rawID `json:"section"`
	SectionAlt   *rawID `json:"Section"`
	SectionTitle string `json:"section_title"`
	SectionDesc  string `json:"section_desc"`
	Chapter      *rawID `json:"chapter"`
	ChapterTitle *rawID `json:"chapter_title"`
}

type articleEntry struct {
	Article     *rawID `json:"article"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (p *Parser) Parse(source domain.ActSource, raw io.Reader) ([]domain.Document, error) {
	body, err := io.ReadAll(raw)
	if err != nil {
		return nil, fmt.Errorf("read act file: %w", err)
	}
	if source.SourceType == domain.SourceArticle {
		var entries []articleEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode constitution json", err)
		}
		return p.articles(source, entries), nil
	}

	var entries []actEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode act json", err)
	}
	return p.sections(source, entries), nil
}

func (p *Parser) sections(source domain.ActSource, entries []actEntry) []domain.Document {
	docs := make([]domain.Document, 0, len(entries))
	for _, e := range entries {
		description := strings.TrimSpace(e.SectionDesc)
		if description == "" {
			continue
		}
		sectionID := idOf(e.Section)
		if sectionID == "" {
			sectionID = idOf(e.SectionAlt)
		}
		title := strings.TrimSpace(e.SectionTitle)

		heading := title
		if sectionID != "" {
			heading = fmt.Sprintf("Section %s. %s", sectionID, title)
		}
		meta := p.baseMetadata(source, domain.SourceSection, title, description)
		meta.SectionID = sectionID
		meta.Chapter = idOf(e.Chapter)
		meta.ChapterTitle = idOf(e.ChapterTitle)

		docs = p.appendProvision(docs, heading, NormalizeText(description), meta)
	}
	return docs
}

func (p *Parser) articles(source domain.ActSource, entries []articleEntry) []domain.Document {
	docs := make([]domain.Document, 0, len(entries))
	for _, e := range entries {
		description := strings.TrimSpace(e.Description)
		if description == "" {
			continue
		}
		articleID := idOf(e.Article)
		title := strings.TrimSpace(e.Title)

		heading := title
		if articleID != "" {
			heading = fmt.Sprintf("Article %s. %s", articleID, title)
		}
		meta := p.baseMetadata(source, domain.SourceArticle, title, description)
		meta.ArticleID = articleID

		docs = p.appendProvision(docs, heading, NormalizeText(description), meta)
	}
	return docs
}

func (p *Parser) baseMetadata(source domain.ActSource, st domain.SourceType, title, raw string) domain.Metadata {
	return domain.Metadata{
		Source:       source.Act,
		Act:          source.Act,
		ActAbbrev:    string(source.ActAbbrev),
		Jurisdiction: Jurisdiction,
		SourceType:   st,
		Title:        title,
		RawText:      raw,
	}
}

func (p *Parser) appendProvision(docs []domain.Document, heading, body string, meta domain.Metadata) []domain.Document {
	full := withHeading(heading, body)
	docs = append(docs, domain.Document{Text: full, Metadata: meta})

	if p.chunker == nil || utf8.RuneCountInString(full) <= p.clauseThreshold {
		return docs
	}
	for i, chunk := range p.chunker.Split(body) {
		clause := meta
		clause.SourceType = domain.SourceClause
		clause.ChunkIndex = strconv.Itoa(i)
		docs = append(docs, domain.Document{Text: withHeading(heading, chunk), Metadata: clause})
	}
	return docs
}

func withHeading(heading, body string) string {
	if heading == "" {
		return body
	}
	return heading + "\n" + body
}

func idOf(id *rawID) string {
	if id == nil {
		return ""
	}
	return string(*id)
}

// NormalizeText joins words hyphenated across line breaks, collapses runs
// of blank lines and runs of spaces or tabs.
func NormalizeText(text string) string {
	text = hyphenBreakPattern.ReplaceAllString(text, "$1$2")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	text = spaceRunPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// LoadCorpus parses every known act file found under root, constitution
// first. Missing files are skipped.
func (p *Parser) LoadCorpus(root string) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, 1024)
	for _, source := range domain.ActSources() {
		path := filepath.Join(root, source.FileName)
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				slog.Warn("corpus_file_missing", "act", source.ActAbbrev, "path", path)
				continue
			}
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		parsed, err := p.Parse(source, f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		slog.Info("corpus_file_parsed", "act", source.ActAbbrev, "documents", len(parsed))
		docs = append(docs, parsed...)
	}
	return docs, nil
}
