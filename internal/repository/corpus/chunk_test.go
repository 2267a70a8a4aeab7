package corpus

import (
	"strings"
	"testing"
)

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	chunks := splitText("short", 500, 50)
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Fatalf("expected single identity chunk, got %v", chunks)
	}
}

func TestSplitText_ExactSizeSingleChunk(t *testing.T) {
	text := strings.Repeat("a", 100)
	chunks := splitText(text, 100, 10)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for exact-size text, got %d", len(chunks))
	}
}

func TestSplitText_Overlap(t *testing.T) {
	text := strings.Repeat("a", 110) + strings.Repeat("b", 110)
	chunks := splitText(text, 100, 20)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	// step is 80: each chunk starts where the previous one's last 20 runes start
	if chunks[0][80:] != chunks[1][:20] {
		t.Error("expected 20-rune overlap between consecutive chunks")
	}
	if len(chunks[0]) != 100 || len(chunks[1]) != 100 {
		t.Errorf("expected full-size inner chunks, got %d and %d", len(chunks[0]), len(chunks[1]))
	}
	if len(chunks[2]) != 60 {
		t.Errorf("expected 60-rune tail chunk, got %d", len(chunks[2]))
	}
}

func TestSplitText_OverlapNotSmallerThanSize(t *testing.T) {
	text := strings.Repeat("x", 250)

	// overlap == size must not loop forever; it degrades to no overlap
	chunks := splitText(text, 100, 100)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 non-overlapping chunks, got %d", len(chunks))
	}
	if chunks[0] != text[:100] || chunks[1] != text[100:200] || chunks[2] != text[200:] {
		t.Error("expected consecutive non-overlapping chunks")
	}
}

func TestSplitText_ZeroSizeIdentity(t *testing.T) {
	chunks := splitText("whatever", 0, 0)
	if len(chunks) != 1 || chunks[0] != "whatever" {
		t.Fatalf("expected identity for zero size, got %v", chunks)
	}
}

func TestSplitText_MultibyteRunes(t *testing.T) {
	text := strings.Repeat("ш", 150)
	chunks := splitText(text, 100, 0)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if got := len([]rune(chunks[0])); got != 100 {
		t.Errorf("expected 100 runes in first chunk, got %d", got)
	}
	if got := len([]rune(chunks[1])); got != 50 {
		t.Errorf("expected 50 runes in tail chunk, got %d", got)
	}
}

func TestSplitText_CoversWholeText(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30)
	chunks := splitText(text, 70, 7)

	// stitched back together without the overlaps, chunks must reproduce the text
	step := 70 - 7
	var sb strings.Builder
	for i, c := range chunks {
		if i == len(chunks)-1 {
			sb.WriteString(c)
			break
		}
		sb.WriteString(c[:step])
	}
	if sb.String() != text {
		t.Error("expected chunks to cover the text exactly")
	}
}
