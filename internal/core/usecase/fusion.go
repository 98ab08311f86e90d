package usecase

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

// FusionConfig holds the weighted reciprocal-rank fusion parameters.
type FusionConfig struct {
	K       int
	Weights map[string]float64
	Caps    map[string]int
}

func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		K: 60,
		Weights: map[string]float64{
			StrategyLexical:  1.3,
			StrategyArticle:  1.2,
			StrategySection:  1.1,
			StrategySemantic: 1.0,
		},
		Caps: map[string]int{
			StrategyLexical:  10,
			StrategyArticle:  12,
			StrategySection:  12,
			StrategySemantic: 18,
		},
	}
}

func (c FusionConfig) normalize() FusionConfig {
	def := DefaultFusionConfig()
	out := FusionConfig{
		K:       c.K,
		Weights: make(map[string]float64, len(def.Weights)),
		Caps:    make(map[string]int, len(def.Caps)),
	}
	if out.K <= 0 {
		out.K = def.K
	}
	for name, w := range def.Weights {
		if v, ok := c.Weights[name]; ok && v > 0 {
			w = v
		}
		out.Weights[name] = w
	}
	for name, limit := range def.Caps {
		if v, ok := c.Caps[name]; ok && v > 0 {
			limit = v
		}
		out.Caps[name] = limit
	}
	return out
}

// Merger fuses per-strategy rankings into one deduplicated list.
type Merger struct {
	cfg FusionConfig
}

func NewMerger(cfg FusionConfig) *Merger {
	return &Merger{cfg: cfg.normalize()}
}

type scoredCandidate struct {
	doc        domain.Document
	score      float64
	precedence int
	rank       int
}

// Merge scores every capped candidate as weight/(K+rank+1). The first
// strategy in lexical, article, section, semantic order to surface a
// fingerprint keeps it; later copies are dropped. The full list is returned
// sorted by score, then citation, then strategy precedence, then rank.
func (m *Merger) Merge(results map[string][]domain.Document) []domain.Document {
	seen := make(map[string]struct{})
	candidates := make([]scoredCandidate, 0)

	for precedence, name := range strategyOrder {
		docs := trimDocuments(results[name], m.cfg.Caps[name])
		weight := m.cfg.Weights[name]
		for pos, doc := range docs {
			key := fingerprint(doc)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			rank := pos
			if doc.Metadata.RetrieverRank != nil {
				rank = *doc.Metadata.RetrieverRank
			}
			candidates = append(candidates, scoredCandidate{
				doc:        doc,
				score:      weight / float64(m.cfg.K+rank+1),
				precedence: precedence,
				rank:       rank,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		ac, bc := a.doc.Metadata.Citation(), b.doc.Metadata.Citation()
		if ac != bc {
			return ac < bc
		}
		if a.precedence != b.precedence {
			return a.precedence < b.precedence
		}
		return a.rank < b.rank
	})

	out := make([]domain.Document, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.doc)
	}
	return out
}

// fingerprint identifies a provision across strategies by act, provision id
// and a hash of its original text.
func fingerprint(doc domain.Document) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(doc.BodyKey()))
	return fmt.Sprintf("%s|%s|%x", doc.Metadata.ActAbbrev, doc.Metadata.ProvisionID(), h.Sum64())
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
