package chunking

import (
	"strings"
	"unicode/utf8"
)

var defaultSeparators = []string{"\n\n", "\n", ". "}

// Splitter breaks provision text into clause-sized chunks. It splits on the
// coarsest separator present, merges pieces up to ChunkSize runes with
// Overlap runes carried between neighbours, and recurses into pieces that
// are still too long. Text with no separator is cut into fixed windows.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		Separators: defaultSeparators,
	}
}

func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.split(text, s.Separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.ChunkSize {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}

	sep := ""
	var rest []string
	for i, candidate := range separators {
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}
	if sep == "" {
		return s.window(text)
	}

	out := make([]string, 0, 4)
	pending := make([]string, 0, 8)
	for _, piece := range splitAfter(text, sep) {
		if utf8.RuneCountInString(piece) > s.ChunkSize {
			out = append(out, s.merge(pending)...)
			pending = pending[:0]
			out = append(out, s.split(piece, rest)...)
			continue
		}
		pending = append(pending, piece)
	}
	return append(out, s.merge(pending)...)
}

// merge packs pieces into chunks of at most ChunkSize runes. After each
// emitted chunk the trailing pieces that fit in Overlap start the next one.
func (s *Splitter) merge(pieces []string) []string {
	out := make([]string, 0, len(pieces)/2+1)
	current := make([]string, 0, len(pieces))
	total := 0
	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		if total+n > s.ChunkSize && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
				out = append(out, chunk)
			}
			for len(current) > 0 && (total > s.Overlap || total+n > s.ChunkSize) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
		out = append(out, chunk)
	}
	return out
}

func (s *Splitter) window(text string) []string {
	runes := []rune(text)
	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+s.ChunkSize, len(runes))
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// splitAfter keeps each separator attached to the piece it ends.
func splitAfter(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
