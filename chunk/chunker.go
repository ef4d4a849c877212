// Package chunk splits extracted content into overlapping, token-bounded
// pieces for downstream analysis. Chunk shape (source id, index, total,
// token count, character span) follows the conventional retrieval-
// augmented-generation chunk record; splitting prefers paragraph
// boundaries, then sentence boundaries, then raw character cuts.
package chunk

import (
	"regexp"
	"strings"
)

// Chunk is one piece of a chunked document.
type Chunk struct {
	SourceID   string
	Index      int
	Total      int
	Text       string
	TokenCount int
	StartPos   int
	EndPos     int
}

// TokenCounter estimates (or exactly counts) the number of tokens in s.
// The default implementation is a language-aware character-ratio
// heuristic; an exact tokenizer (e.g. tiktoken) can be injected instead.
type TokenCounter interface {
	Count(s string) int
}

// Options controls chunk sizing.
type Options struct {
	MaxTokensPerChunk int // default 500
	OverlapTokens     int // default 50
	Counter           TokenCounter
}

func (o Options) withDefaults() Options {
	if o.MaxTokensPerChunk <= 0 {
		o.MaxTokensPerChunk = 500
	}
	if o.OverlapTokens <= 0 {
		o.OverlapTokens = 50
	}
	if o.Counter == nil {
		o.Counter = HeuristicCounter{}
	}
	return o
}

var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// Split divides text into an ordered sequence of Chunks attributed to
// sourceID. Splitting prefers paragraph boundaries (blank-line separated)
// first; within an over-long paragraph it falls back to sentence
// boundaries; within an over-long sentence it falls back to raw
// character cuts. Adjacent chunks overlap by roughly OverlapTokens.
func Split(sourceID, text string, opts Options) []Chunk {
	opts = opts.withDefaults()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	units := splitIntoUnits(text)
	chunks := pack(units, opts)

	result := make([]Chunk, len(chunks))
	for i, c := range chunks {
		c.SourceID = sourceID
		c.Index = i
		c.Total = len(chunks)
		result[i] = c
	}
	return result
}

// unit is an indivisible piece of text with its original offsets,
// produced by the paragraph/sentence splitting pass.
type unit struct {
	text     string
	start    int
	end      int
}

func splitIntoUnits(text string) []unit {
	paragraphs := splitParagraphs(text)
	units := make([]unit, 0, len(paragraphs))
	for _, p := range paragraphs {
		if len(p.text) <= maxUnitChars {
			units = append(units, p)
			continue
		}
		units = append(units, splitSentences(p)...)
	}
	return units
}

// maxUnitChars bounds how large a single paragraph/sentence unit may be
// before it's forced through the next, finer splitting strategy.
const maxUnitChars = 2000

func splitParagraphs(text string) []unit {
	var units []unit
	offset := 0
	for _, para := range regexp.MustCompile(`\n\s*\n`).Split(text, -1) {
		start := strings.Index(text[offset:], para)
		if start == -1 {
			start = 0
		} else {
			start += offset
		}
		end := start + len(para)
		offset = end
		if strings.TrimSpace(para) == "" {
			continue
		}
		units = append(units, unit{text: para, start: start, end: end})
	}
	return units
}

func splitSentences(p unit) []unit {
	parts := sentenceBoundary.Split(p.text, -1)
	if len(parts) <= 1 {
		return splitRaw(p)
	}
	var units []unit
	offset := 0
	for _, part := range parts {
		idx := strings.Index(p.text[offset:], part)
		if idx == -1 {
			idx = 0
		}
		start := p.start + offset + idx
		end := start + len(part)
		offset += idx + len(part)
		if strings.TrimSpace(part) == "" {
			continue
		}
		if len(part) > maxUnitChars {
			units = append(units, splitRaw(unit{text: part, start: start, end: end})...)
			continue
		}
		units = append(units, unit{text: part, start: start, end: end})
	}
	return units
}

func splitRaw(p unit) []unit {
	var units []unit
	for i := 0; i < len(p.text); i += maxUnitChars {
		end := min(i+maxUnitChars, len(p.text))
		units = append(units, unit{
			text:  p.text[i:end],
			start: p.start + i,
			end:   p.start + end,
		})
	}
	return units
}

// pack greedily accumulates units into chunks until the token budget
// would be exceeded, then starts a new chunk carrying OverlapTokens worth
// of trailing units from the previous one.
func pack(units []unit, opts Options) []Chunk {
	if len(units) == 0 {
		return nil
	}

	var chunks []Chunk
	var current []unit
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, buildChunk(current, opts.Counter))
	}

	for _, u := range units {
		t := opts.Counter.Count(u.text)
		if currentTokens+t > opts.MaxTokensPerChunk && len(current) > 0 {
			flush()
			current = overlapTail(current, opts.OverlapTokens, opts.Counter)
			currentTokens = sumTokens(current, opts.Counter)
		}
		current = append(current, u)
		currentTokens += t
	}
	flush()
	return chunks
}

func overlapTail(units []unit, overlapTokens int, counter TokenCounter) []unit {
	if overlapTokens <= 0 {
		return nil
	}
	var tail []unit
	tokens := 0
	for i := len(units) - 1; i >= 0 && tokens < overlapTokens; i-- {
		tail = append([]unit{units[i]}, tail...)
		tokens += counter.Count(units[i].text)
	}
	return tail
}

func sumTokens(units []unit, counter TokenCounter) int {
	total := 0
	for _, u := range units {
		total += counter.Count(u.text)
	}
	return total
}

func buildChunk(units []unit, counter TokenCounter) Chunk {
	var sb strings.Builder
	for i, u := range units {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(strings.TrimSpace(u.text))
	}
	text := sb.String()
	return Chunk{
		Text:       text,
		TokenCount: counter.Count(text),
		StartPos:   units[0].start,
		EndPos:     units[len(units)-1].end,
	}
}
