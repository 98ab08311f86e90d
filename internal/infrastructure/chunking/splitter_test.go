package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitShortTextIsOneChunk(t *testing.T) {
	got := NewSplitter(900, 100).Split("  Whoever drives rashly.  ")
	if len(got) != 1 || got[0] != "Whoever drives rashly." {
		t.Fatalf("unexpected chunks: %q", got)
	}
}

func TestSplitEmpty(t *testing.T) {
	if got := NewSplitter(0, 0).Split(" \n "); got != nil {
		t.Fatalf("expected nil, got %q", got)
	}
}

func TestSplitPrefersParagraphs(t *testing.T) {
	para := strings.Repeat("a", 40)
	text := strings.Join([]string{para, para, para, para}, "\n\n")

	got := NewSplitter(90, 0).Split(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(got), got)
	}
	for _, chunk := range got {
		if utf8.RuneCountInString(chunk) > 90 {
			t.Fatalf("chunk exceeds size: %d", utf8.RuneCountInString(chunk))
		}
		if strings.HasPrefix(chunk, "\n") || strings.HasSuffix(chunk, "\n") {
			t.Fatalf("chunk not trimmed: %q", chunk)
		}
	}
}

func TestSplitCarriesOverlap(t *testing.T) {
	sentences := []string{"First clause here. ", "Second clause here. ", "Third clause here. ", "Fourth clause here."}
	got := NewSplitter(45, 25).Split(strings.Join(sentences, ""))
	if len(got) < 2 {
		t.Fatalf("expected several chunks, got %q", got)
	}
	if !strings.Contains(got[1], "Second clause") {
		t.Fatalf("expected overlap to repeat the previous sentence, got %q", got)
	}
}

func TestSplitRecursesIntoLongParagraph(t *testing.T) {
	long := strings.Repeat("word ", 30) + "\n" + strings.Repeat("more ", 30)
	text := "Short intro.\n\n" + long

	got := NewSplitter(100, 10).Split(text)
	for _, chunk := range got {
		if utf8.RuneCountInString(chunk) > 100 {
			t.Fatalf("chunk exceeds size: %q", chunk)
		}
	}
	if got[0] != "Short intro." {
		t.Fatalf("expected intro chunk first, got %q", got[0])
	}
}

func TestSplitFallsBackToWindows(t *testing.T) {
	got := NewSplitter(10, 2).Split(strings.Repeat("x", 25))
	if len(got) != 3 {
		t.Fatalf("expected 3 windows, got %d: %q", len(got), got)
	}
}
