package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/ctxloom/ctxloom/internal/ai"
	"github.com/ctxloom/ctxloom/internal/model"
	"github.com/ctxloom/ctxloom/internal/token"
)

// PlaceholderSummary is emitted when every summarization path fails.
// Summaries are best-effort context, never required for correctness.
const PlaceholderSummary = "(summary unavailable)"

const maxSummaryTokens = 256

type summaryPrompt struct {
	instruction string
}

var levelPrompts = map[model.SummaryLevel]summaryPrompt{
	model.SummaryLevelChunk:   {"Summarize the following text in 2-3 sentences. Focus on what it does and key identifiers."},
	model.SummaryLevelFile:    {"Summarize the following file in 3-5 sentences. Name the main functions, types and their purpose."},
	model.SummaryLevelProject: {"Summarize the following project material in 5-8 sentences. Describe the overall purpose and the main components."},
}

// Summarizer condenses chunk text. When a generator is configured it is
// tried first; otherwise, and on any generator failure, a deterministic
// extractive pass over the markdown structure is used. The output is
// always non-empty and strictly shorter than the input.
type Summarizer struct {
	gen ai.IGenerator
	tok *token.Tokenizer
}

func New(gen ai.IGenerator, tok *token.Tokenizer) *Summarizer {
	return &Summarizer{gen: gen, tok: tok}
}

// Summarize produces a draft for the given level. It never returns an
// error: degraded paths fall through to the fixed placeholder.
func (s *Summarizer) Summarize(ctx context.Context, text string, level model.SummaryLevel) model.SummaryDraft {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.SummaryDraft{Level: level, Content: PlaceholderSummary, TokenCount: s.tok.Count(PlaceholderSummary), Degraded: true}
	}
	if s.gen != nil {
		if content, err := s.generate(ctx, text, level); err == nil {
			return s.draft(level, text, content, false)
		} else {
			logutil.GetLogger(ctx).Warn("generative summary failed, falling back to extractive",
				zap.String("level", string(level)), zap.Error(err))
		}
	}
	if content := s.extract(text); content != "" {
		return s.draft(level, text, content, false)
	}
	return model.SummaryDraft{Level: level, Content: PlaceholderSummary, TokenCount: s.tok.Count(PlaceholderSummary), Degraded: true}
}

func (s *Summarizer) generate(ctx context.Context, text string, level model.SummaryLevel) (string, error) {
	prompt, ok := levelPrompts[level]
	if !ok {
		return "", fmt.Errorf("no prompt for level %s", level)
	}
	out, err := s.gen.Generate(ctx, prompt.instruction+"\n\nTEXT:\n"+text)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty summary from generator")
	}
	return out, nil
}

// draft clamps the condensation so its token count stays strictly below
// the input's, then records the final count.
func (s *Summarizer) draft(level model.SummaryLevel, input, content string, degraded bool) model.SummaryDraft {
	inputTokens := s.tok.Count(input)
	limit := maxSummaryTokens
	if inputTokens <= limit {
		limit = inputTokens - 1
	}
	if limit < 1 {
		limit = 1
	}
	seq := s.tok.Tokenize(content)
	if seq.Len() > limit {
		content = seq.Slice(0, limit)
	}
	if strings.TrimSpace(content) == "" {
		content = PlaceholderSummary
		degraded = true
	}
	return model.SummaryDraft{
		Level:      level,
		Content:    content,
		TokenCount: s.tok.Count(content),
		Degraded:   degraded,
	}
}

// extract walks the markdown AST collecting headings and leading
// paragraph text. Deterministic for a given input.
func (s *Summarizer) extract(text string) string {
	md := goldmark.New()
	source := []byte(text)
	reader := gmtext.NewReader(source)
	doc := md.Parser().Parse(reader)

	var parts []string
	budget := maxSummaryTokens
	for node := doc.FirstChild(); node != nil && budget > 0; node = node.NextSibling() {
		var piece string
		switch n := node.(type) {
		case *ast.Heading:
			piece = string(n.Text(source))
		case *ast.FencedCodeBlock:
			continue
		default:
			piece = firstSentence(nodeText(node, source))
		}
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		cost := s.tok.Count(piece)
		if cost > budget {
			break
		}
		budget -= cost
		parts = append(parts, piece)
	}
	return strings.Join(parts, " ")
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func firstSentence(text string) string {
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			return text[:i+1]
		}
	}
	return text
}
