package indexer

import (
	"strings"
	"testing"
)

func TestChunkText_RespectsSizeAndOverlap(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	spans := chunkText(text, 20, 5)
	if len(spans) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for _, s := range spans {
		if s.end <= s.start {
			t.Fatalf("chunk has non-positive span: %+v", s)
		}
	}
}

func TestChunkText_DropsShortChunks(t *testing.T) {
	spans := chunkText("ab", 512, 50)
	if len(spans) != 0 {
		t.Fatalf("expected a 2-character text to be dropped, got %d chunks", len(spans))
	}
}

func TestChunkText_EmptyInputProducesNoChunks(t *testing.T) {
	if spans := chunkText("", 512, 50); spans != nil {
		t.Fatalf("expected nil for empty text, got %+v", spans)
	}
}

func TestChunkText_OffsetsSliceBackToOriginalText(t *testing.T) {
	text := "alpha beta gamma delta epsilon"
	spans := chunkText(text, 3, 1)
	if len(spans) == 0 {
		t.Fatal("expected chunks")
	}
	first := spans[0]
	if text[first.start:first.end] != first.text {
		t.Fatalf("chunk text %q does not match source slice %q", first.text, text[first.start:first.end])
	}
}
