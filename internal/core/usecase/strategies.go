package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

const (
	StrategyLexical  = "lexical"
	StrategyArticle  = "article"
	StrategySection  = "section"
	StrategySemantic = "semantic"
)

// strategyOrder is the fixed precedence used for dedup during fusion.
var strategyOrder = []string{StrategyLexical, StrategyArticle, StrategySection, StrategySemantic}

// semanticOverfetch widens the semantic fetch when results are post-filtered by act.
const semanticOverfetch = 3

// StrategyCaps bounds each strategy's trimmed output.
type StrategyCaps struct {
	Lexical  int
	Article  int
	Section  int
	Semantic int
}

func DefaultStrategyCaps() StrategyCaps {
	return StrategyCaps{Lexical: 10, Article: 10, Section: 10, Semantic: 6}
}

func (c StrategyCaps) normalize() StrategyCaps {
	def := DefaultStrategyCaps()
	if c.Lexical <= 0 {
		c.Lexical = def.Lexical
	}
	if c.Article <= 0 {
		c.Article = def.Article
	}
	if c.Section <= 0 {
		c.Section = def.Section
	}
	if c.Semantic <= 0 {
		c.Semantic = def.Semantic
	}
	return c
}

// Strategy is one independent retrieval signal over the provision index.
type Strategy interface {
	Name() string
	Retrieve(ctx context.Context, intent domain.RetrievalIntent) ([]domain.Document, error)
}

type LexicalStrategy struct {
	index ports.ProvisionIndex
	cap   int
}

func NewLexicalStrategy(index ports.ProvisionIndex, limit int) *LexicalStrategy {
	return &LexicalStrategy{index: index, cap: limit}
}

func (s *LexicalStrategy) Name() string { return StrategyLexical }

// Retrieve issues one exact-phrase search per reference lookup and stops once
// the cap is reached.
func (s *LexicalStrategy) Retrieve(ctx context.Context, intent domain.RetrievalIntent) ([]domain.Document, error) {
	lookups := make([]domain.ReferenceLookup, 0, len(intent.ArticleLookups)+len(intent.SectionLookups))
	lookups = append(lookups, intent.ArticleLookups...)
	lookups = append(lookups, intent.SectionLookups...)

	out := make([]domain.Document, 0, s.cap)
	for _, lookup := range lookups {
		if len(out) >= s.cap {
			break
		}
		filter := domain.IndexFilter{
			Act:         lookup.Act,
			SourceTypes: []domain.SourceType{lookup.Type, domain.SourceClause},
		}
		docs, err := s.index.SearchPhrase(ctx, lookup.Reference(), s.cap, filter)
		if err != nil {
			return nil, fmt.Errorf("lexical search %q: %w", lookup.Reference(), err)
		}
		out = append(out, docs...)
	}
	return annotate(StrategyLexical, trimDocuments(out, s.cap)), nil
}

// StructuredStrategy fetches provisions of one source type, by identifier when
// the intent carries explicit references and by filtered similarity otherwise.
type StructuredStrategy struct {
	name       string
	sourceType domain.SourceType
	index      ports.ProvisionIndex
	cap        int
}

func NewArticleStrategy(index ports.ProvisionIndex, limit int) *StructuredStrategy {
	return &StructuredStrategy{name: StrategyArticle, sourceType: domain.SourceArticle, index: index, cap: limit}
}

func NewSectionStrategy(index ports.ProvisionIndex, limit int) *StructuredStrategy {
	return &StructuredStrategy{name: StrategySection, sourceType: domain.SourceSection, index: index, cap: limit}
}

func (s *StructuredStrategy) Name() string { return s.name }

func (s *StructuredStrategy) Retrieve(ctx context.Context, intent domain.RetrievalIntent) ([]domain.Document, error) {
	lookups := intent.ArticleLookups
	if s.sourceType == domain.SourceSection {
		lookups = intent.SectionLookups
	}

	out := make([]domain.Document, 0, s.cap)
	if len(lookups) > 0 {
		for _, lookup := range lookups {
			if len(out) >= s.cap {
				break
			}
			filter := domain.IndexFilter{
				Act:         lookup.Act,
				SourceTypes: []domain.SourceType{s.sourceType},
			}
			if s.sourceType == domain.SourceArticle {
				filter.ArticleID = lookup.ID
			} else {
				filter.SectionID = lookup.ID
			}
			docs, err := s.index.SimilaritySearch(ctx, lookup.Reference(), s.cap, filter)
			if err != nil {
				return nil, fmt.Errorf("%s lookup %q: %w", s.name, lookup.Reference(), err)
			}
			out = append(out, docs...)
		}
		return annotate(s.name, trimDocuments(out, s.cap)), nil
	}

	filter := domain.IndexFilter{
		Act:         intent.Act,
		SourceTypes: []domain.SourceType{s.sourceType},
	}
	for _, q := range intent.SemanticQueries {
		if len(out) >= s.cap {
			break
		}
		docs, err := s.index.SimilaritySearch(ctx, q, s.cap, filter)
		if err != nil {
			return nil, fmt.Errorf("%s similarity search: %w", s.name, err)
		}
		out = append(out, docs...)
	}
	return annotate(s.name, trimDocuments(out, s.cap)), nil
}

type SemanticStrategy struct {
	index ports.ProvisionIndex
	cap   int
}

func NewSemanticStrategy(index ports.ProvisionIndex, limit int) *SemanticStrategy {
	return &SemanticStrategy{index: index, cap: limit}
}

func (s *SemanticStrategy) Name() string { return StrategySemantic }

// Retrieve runs an unfiltered similarity search per semantic query and keeps
// only provisions of the resolved act when the intent is scoped.
func (s *SemanticStrategy) Retrieve(ctx context.Context, intent domain.RetrievalIntent) ([]domain.Document, error) {
	k := s.cap
	if intent.Act.IsScoped() {
		k = s.cap * semanticOverfetch
	}

	out := make([]domain.Document, 0, s.cap)
	for _, q := range intent.SemanticQueries {
		docs, err := s.index.SimilaritySearch(ctx, q, k, domain.IndexFilter{})
		if err != nil {
			return nil, fmt.Errorf("semantic search: %w", err)
		}
		for _, doc := range docs {
			if intent.Act.IsScoped() && !strings.EqualFold(doc.Metadata.ActAbbrev, string(intent.Act)) {
				continue
			}
			out = append(out, doc)
		}
	}
	return annotate(StrategySemantic, trimDocuments(out, s.cap)), nil
}

func trimDocuments(docs []domain.Document, limit int) []domain.Document {
	if limit <= 0 || len(docs) <= limit {
		return docs
	}
	return docs[:limit]
}

// annotate tags each document with its strategy and 0-based position.
func annotate(name string, docs []domain.Document) []domain.Document {
	out := make([]domain.Document, 0, len(docs))
	for rank, doc := range docs {
		out = append(out, doc.WithRetriever(name, rank))
	}
	return out
}
