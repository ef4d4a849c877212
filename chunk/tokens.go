package chunk

import (
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// HeuristicCounter estimates token count from character count using
// language-aware ratios: CJK scripts run close to 1 token per character,
// Latin-script text closer to 4 characters per token. This is the
// default counter when no exact tokenizer is injected.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(s string) int {
	if s == "" {
		return 0
	}
	var cjk, other int
	for _, r := range s {
		if isCJK(r) {
			cjk++
		} else if !unicode.IsSpace(r) {
			other++
		}
	}
	// CJK: ~1 token/char. Latin-script: ~4 chars/token.
	return cjk + (other+3)/4
}

func isCJK(r rune) bool {
	return unicode.In(r,
		unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul,
	)
}

// TiktokenCounter counts tokens exactly using OpenAI's tiktoken
// encoding. Encoding lookup is cached since tiktoken.GetEncoding is
// relatively expensive to construct.
type TiktokenCounter struct {
	encodingName string
	once         sync.Once
	encoding     *tiktoken.Tiktoken
	fallback     TokenCounter
}

// NewTiktokenCounter builds a counter for the given encoding (e.g.
// "cl100k_base"). If the encoding can't be loaded, Count silently falls
// back to HeuristicCounter rather than panicking mid-pipeline.
func NewTiktokenCounter(encodingName string) *TiktokenCounter {
	return &TiktokenCounter{encodingName: encodingName, fallback: HeuristicCounter{}}
}

func (t *TiktokenCounter) Count(s string) int {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encodingName)
		if err == nil {
			t.encoding = enc
		}
	})
	if t.encoding == nil {
		return t.fallback.Count(s)
	}
	return len(t.encoding.Encode(s, nil, nil))
}
