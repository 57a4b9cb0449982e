package token

import (
	"context"
	"strings"
	"unicode"

	tiktoken "github.com/pkoukk/tiktoken-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const fallbackEncoding = "cl100k_base"

// Tokenizer turns normalized text into a token sequence. For a known
// model hint it uses the matching tiktoken encoding; otherwise it
// degrades to a whitespace/punctuation splitter. Both paths are
// deterministic for a given model hint, and neither ever fails: callers
// may rely on monotonicity and idempotence, not on numeric parity
// between the two families.
type Tokenizer struct {
	enc       *tiktoken.Tiktoken
	modelHint string
}

// New builds a tokenizer for the given model hint. Any tiktoken setup
// failure degrades to the simple splitter rather than erroring.
func New(modelHint string) *Tokenizer {
	t := &Tokenizer{modelHint: modelHint}
	enc, err := tiktoken.EncodingForModel(modelHint)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		logutil.GetLogger(context.Background()).Warn("tiktoken unavailable, using simple tokenizer",
			zap.String("model_hint", modelHint), zap.Error(err))
		return t
	}
	t.enc = enc
	return t
}

// NewSimple builds a tokenizer that always uses the fallback splitter.
// Tests use it to force the degraded path deterministically.
func NewSimple() *Tokenizer {
	return &Tokenizer{modelHint: "simple"}
}

func (t *Tokenizer) ModelHint() string {
	return t.modelHint
}

// Tokenize returns the token sequence for text.
func (t *Tokenizer) Tokenize(text string) *Sequence {
	if t.enc != nil {
		return &Sequence{ids: t.enc.Encode(text, nil, nil), enc: t.enc}
	}
	return &Sequence{words: splitSimple(text)}
}

// Count returns the token count of text.
func (t *Tokenizer) Count(text string) int {
	return t.Tokenize(text).Len()
}

// Sequence is an immutable token sequence that can be sliced back into
// text for windowed chunking.
type Sequence struct {
	ids   []int
	words []string
	enc   *tiktoken.Tiktoken
}

func (s *Sequence) Len() int {
	if s.enc != nil {
		return len(s.ids)
	}
	return len(s.words)
}

// Slice re-materializes the text of tokens [start, end).
func (s *Sequence) Slice(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > s.Len() {
		end = s.Len()
	}
	if start >= end {
		return ""
	}
	if s.enc != nil {
		return s.enc.Decode(s.ids[start:end])
	}
	return strings.Join(s.words[start:end], " ")
}

// splitSimple breaks text at whitespace and punctuation boundaries,
// keeping CJK runes as single tokens. Larger text never produces fewer
// tokens.
func splitSimple(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		case r > 0x2E7F:
			// CJK and friends tokenize per rune
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
