package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCounter counts whitespace-separated words, a deterministic stand-in
// for a real tokenizer in tests.
type wordCounter struct{}

func (wordCounter) Count(s string) int { return len(strings.Fields(s)) }

// TestSplit_EmptyText tests that blank input yields no chunks.
func TestSplit_EmptyText(t *testing.T) {
	assert.Nil(t, Split("src", "   \n  ", Options{}))
}

// TestSplit_ShortTextSingleChunk tests that text well under the token
// budget produces exactly one chunk covering the whole input.
func TestSplit_ShortTextSingleChunk(t *testing.T) {
	text := "This is a short paragraph about Go generics."
	chunks := Split("src-1", text, Options{MaxTokensPerChunk: 100, Counter: wordCounter{}})

	require.Len(t, chunks, 1)
	assert.Equal(t, "src-1", chunks[0].SourceID)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[0].Total)
	assert.Contains(t, chunks[0].Text, "Go generics")
}

// TestSplit_ParagraphsSpanMultipleChunks tests that a long multi-
// paragraph document is split once the per-chunk token budget is
// exceeded, and that every chunk has a consistent Total.
func TestSplit_ParagraphsSpanMultipleChunks(t *testing.T) {
	paragraphs := make([]string, 20)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat("word ", 10) + "paragraph"
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks := Split("src-2", text, Options{MaxTokensPerChunk: 30, OverlapTokens: 5, Counter: wordCounter{}})
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, len(chunks), c.Total)
		assert.LessOrEqual(t, c.TokenCount, 30+10) // budget plus one unit's slack
	}
}

// TestSplit_OverlongParagraphFallsBackToSentences tests that a single
// paragraph exceeding maxUnitChars is split on sentence boundaries
// rather than kept whole.
func TestSplit_OverlongParagraphFallsBackToSentences(t *testing.T) {
	sentence := "This is one sentence about research orchestration. "
	text := strings.Repeat(sentence, 100) // well over maxUnitChars as one paragraph
	chunks := Split("src-3", text, Options{MaxTokensPerChunk: 1000, Counter: wordCounter{}})

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.NotEmpty(t, c.Text)
	}
}

// TestSplit_Defaults tests that zero-value Options get the documented
// defaults (500 max tokens, 50 overlap, heuristic counter) rather than
// panicking or producing zero chunks.
func TestSplit_Defaults(t *testing.T) {
	chunks := Split("src-4", "A reasonably short sentence for default options.", Options{})
	require.Len(t, chunks, 1)
	assert.Greater(t, chunks[0].TokenCount, 0)
}

// TestHeuristicCounter_CJKWeightedHigherThanLatin tests that the
// character-ratio heuristic counts CJK text as more token-dense than
// equivalent-length Latin text, reflecting CJK's lower chars-per-token
// ratio.
func TestHeuristicCounter_CJKWeightedHigherThanLatin(t *testing.T) {
	latin := strings.Repeat("a", 40)
	cjk := strings.Repeat("字", 40)

	counter := HeuristicCounter{}
	assert.Greater(t, counter.Count(cjk), counter.Count(latin))
}
