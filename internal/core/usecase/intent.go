package usecase

import (
	"regexp"
	"strings"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

var (
	articleRefPattern = regexp.MustCompile(`(?i)\b(?:Article|Art\.?)\s+(\d+[A-Z]?)\b`)
	sectionRefPattern = regexp.MustCompile(`(?i)\b(?:Section|Sec\.?)\s+(\d+[A-Z]?)\b`)
	accidentPattern   = regexp.MustCompile(`(?i)\b(?:hit and run|hit-and-run|accident|rash driving|vehicle|motor vehicle)\b`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

type actHint struct {
	act     domain.Act
	pattern *regexp.Regexp
}

// Scanned in order; the first match wins.
var actHints = []actHint{
	{act: domain.ActIPC, pattern: regexp.MustCompile(`(?i)\b(?:indian penal code|ipc)\b`)},
	{act: domain.ActCrPC, pattern: regexp.MustCompile(`(?i)\b(?:code of criminal procedure|crpc)\b`)},
	{act: domain.ActCPC, pattern: regexp.MustCompile(`(?i)\b(?:civil procedure code|cpc)\b`)},
	{act: domain.ActMVA, pattern: regexp.MustCompile(`(?i)\b(?:motor vehicles act|mva)\b`)},
	{act: domain.ActIEA, pattern: regexp.MustCompile(`(?i)\b(?:indian evidence act|iea)\b`)},
	{act: domain.ActHMA, pattern: regexp.MustCompile(`(?i)\b(?:hindu marriage act|hma)\b`)},
	{act: domain.ActIDA, pattern: regexp.MustCompile(`(?i)\b(?:indian divorce act|ida)\b`)},
	{act: domain.ActNIA, pattern: regexp.MustCompile(`(?i)\b(?:negotiable instruments act|nia)\b`)},
}

var accidentSectionLookups = []domain.ReferenceLookup{
	{Type: domain.SourceSection, Act: domain.ActIPC, ID: "279"},
	{Type: domain.SourceSection, Act: domain.ActIPC, ID: "304A"},
	{Type: domain.SourceSection, Act: domain.ActMVA, ID: "134"},
	{Type: domain.SourceSection, Act: domain.ActMVA, ID: "187"},
}

// BuildRetrievalIntent derives the retrieval plan for one user turn. It is
// pure and never fails: unusable input degrades to ActAll and empty lookups.
func BuildRetrievalIntent(subQueries []string, query string, explicitAct string) domain.RetrievalIntent {
	normalized := normalizeSubQueries(subQueries)
	act := resolveAct(normalized, query, explicitAct)

	articleLookups := make([]domain.ReferenceLookup, 0)
	sectionLookups := make([]domain.ReferenceLookup, 0)

	for _, q := range normalized {
		refAct := act
		if hinted, ok := inferActFromText(q); ok {
			refAct = hinted
		}

		for _, id := range extractReferenceIDs(articleRefPattern, q) {
			articleLookups = append(articleLookups, domain.ReferenceLookup{Type: domain.SourceArticle, Act: refAct, ID: id})
		}
		for _, id := range extractReferenceIDs(sectionRefPattern, q) {
			sectionLookups = append(sectionLookups, domain.ReferenceLookup{Type: domain.SourceSection, Act: refAct, ID: id})
		}
	}

	if isAccidentQuery(normalized, query) {
		sectionLookups = append(sectionLookups, accidentSectionLookups...)
	}

	return domain.RetrievalIntent{
		Act:             act,
		ArticleLookups:  dedupeLookups(articleLookups),
		SectionLookups:  dedupeLookups(sectionLookups),
		SemanticQueries: normalized,
	}
}

func normalizeSubQueries(subQueries []string) []string {
	out := make([]string, 0, len(subQueries))
	seen := make(map[string]struct{}, len(subQueries))
	for _, q := range subQueries {
		clean := strings.TrimSpace(whitespacePattern.ReplaceAllString(q, " "))
		if clean == "" {
			continue
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}

func resolveAct(normalized []string, query string, explicitAct string) domain.Act {
	if explicit, ok := domain.ParseAct(explicitAct); ok && explicit.IsScoped() {
		return explicit
	}
	for _, q := range normalized {
		if act, ok := inferActFromText(q); ok {
			return act
		}
	}
	if act, ok := inferActFromText(query); ok {
		return act
	}
	return domain.ActAll
}

func inferActFromText(text string) (domain.Act, bool) {
	if text == "" {
		return "", false
	}
	for _, hint := range actHints {
		if hint.pattern.MatchString(text) {
			return hint.act, true
		}
	}
	return "", false
}

func extractReferenceIDs(pattern *regexp.Regexp, text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, strings.ToUpper(m[1]))
	}
	return ids
}

func isAccidentQuery(normalized []string, query string) bool {
	if accidentPattern.MatchString(query) {
		return true
	}
	for _, q := range normalized {
		if accidentPattern.MatchString(q) {
			return true
		}
	}
	return false
}

func dedupeLookups(items []domain.ReferenceLookup) []domain.ReferenceLookup {
	seen := make(map[domain.ReferenceLookup]struct{}, len(items))
	out := make([]domain.ReferenceLookup, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
