package summarize

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctxloom/ctxloom/internal/model"
	"github.com/ctxloom/ctxloom/internal/token"
)

type fakeGenerator struct {
	out string
	err error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f.out, f.err
}

func TestSummarizeUsesGenerator(t *testing.T) {
	s := New(&fakeGenerator{out: "A concise summary."}, token.NewSimple())
	body := strings.Repeat("some longer body text that needs condensing ", 20)
	draft := s.Summarize(context.Background(), body, model.SummaryLevelFile)
	require.Equal(t, "A concise summary.", draft.Content)
	require.False(t, draft.Degraded)
	require.Greater(t, draft.TokenCount, 0)
}

func TestSummarizeFallsBackToExtractive(t *testing.T) {
	s := New(&fakeGenerator{err: fmt.Errorf("provider down")}, token.NewSimple())
	input := "# Overview\n\nThis package handles ingest. It also does other things.\n\nMore detail here."
	draft := s.Summarize(context.Background(), input, model.SummaryLevelFile)
	require.False(t, draft.Degraded)
	require.Contains(t, draft.Content, "Overview")
	require.Contains(t, draft.Content, "This package handles ingest.")
	// only the first sentence of each paragraph survives
	require.NotContains(t, draft.Content, "other things")
}

func TestSummarizeNilGenerator(t *testing.T) {
	s := New(nil, token.NewSimple())
	draft := s.Summarize(context.Background(), "# Title\n\nBody sentence one. Two.", model.SummaryLevelChunk)
	require.False(t, draft.Degraded)
	require.NotEmpty(t, draft.Content)
}

func TestSummarizeEmptyInputPlaceholder(t *testing.T) {
	s := New(nil, token.NewSimple())
	draft := s.Summarize(context.Background(), "   \n\t", model.SummaryLevelChunk)
	require.True(t, draft.Degraded)
	require.Equal(t, PlaceholderSummary, draft.Content)
}

func TestSummaryStrictlySmallerThanInput(t *testing.T) {
	tok := token.NewSimple()
	// generator returns something longer than the input
	s := New(&fakeGenerator{out: strings.Repeat("verbose output ", 50)}, tok)
	input := "short input text here"
	draft := s.Summarize(context.Background(), input, model.SummaryLevelChunk)
	require.Less(t, draft.TokenCount, tok.Count(input))
}

func TestSummaryCappedAtMaxTokens(t *testing.T) {
	tok := token.NewSimple()
	s := New(&fakeGenerator{out: strings.Repeat("word ", 1000)}, tok)
	input := strings.Repeat("input ", 2000)
	draft := s.Summarize(context.Background(), input, model.SummaryLevelProject)
	require.LessOrEqual(t, draft.TokenCount, maxSummaryTokens)
}

func TestExtractSkipsCodeBlocks(t *testing.T) {
	s := New(nil, token.NewSimple())
	input := "# Pkg\n\n```go\nfunc secret() {}\n```\n\nProse sentence."
	draft := s.Summarize(context.Background(), input, model.SummaryLevelFile)
	require.NotContains(t, draft.Content, "secret")
	require.Contains(t, draft.Content, "Prose sentence.")
}

func TestFirstSentence(t *testing.T) {
	require.Equal(t, "One.", firstSentence("One. Two. Three."))
	require.Equal(t, "No terminator", firstSentence("No terminator"))
	require.Equal(t, "Line\n", firstSentence("Line\nnext"))
}
