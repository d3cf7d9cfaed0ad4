// Package indexer implements the Indexer of spec.md §4.D: chunks documents,
// embeds the chunks, and maintains parity between the lexical, vector, and
// mapping tables that the Hybrid Retriever reads. Grounded on
// reposearch's Store for the storage shape and on flowindex's
// ingester.Service worker-pool fan-out for batch embedding.
package indexer

import "strings"

// chunkSpan is one token-approximate window over a document's text before
// it is attached to a document/page id.
type chunkSpan struct {
	text  string
	start int
	end   int
}

// chunkText splits text into overlapping windows of approximately size
// tokens with overlap tokens of repeat between consecutive windows,
// approximating tokens by whitespace-delimited words — the same
// approximation the teacher's pack uses wherever a real tokenizer isn't
// wired in. Chunks shorter than 3 characters are dropped (spec.md §4.D).
func chunkText(text string, size, overlap int) []chunkSpan {
	if size <= 0 {
		size = 512
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	words := splitWithOffsets(text)
	if len(words) == 0 {
		return nil
	}

	var spans []chunkSpan
	step := size - overlap
	if step <= 0 {
		step = size
	}

	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		first := words[start]
		last := words[end-1]
		chunk := text[first.start:last.end]
		if len(strings.TrimSpace(chunk)) >= 3 {
			spans = append(spans, chunkSpan{text: chunk, start: first.start, end: last.end})
		}
		if end == len(words) {
			break
		}
	}
	return spans
}

type wordOffset struct {
	start, end int
}

// splitWithOffsets tokenizes on whitespace while tracking each token's byte
// offsets in the original string, so chunk boundaries can report
// start_char/end_char against the source text.
func splitWithOffsets(text string) []wordOffset {
	var out []wordOffset
	inWord := false
	wordStart := 0
	for i, r := range text {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if !isSpace && !inWord {
			inWord = true
			wordStart = i
		}
		if isSpace && inWord {
			out = append(out, wordOffset{wordStart, i})
			inWord = false
		}
	}
	if inWord {
		out = append(out, wordOffset{wordStart, len(text)})
	}
	return out
}
