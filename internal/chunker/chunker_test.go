package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctxloom/ctxloom/internal/config"
	"github.com/ctxloom/ctxloom/internal/model"
	"github.com/ctxloom/ctxloom/internal/token"
)

func testChunker() *Chunker {
	return New(config.ChunkingConfig{
		MaxTokens:      8000,
		OverlapTokens:  256,
		MinChunkTokens: 1000,
		MaxRawBytes:    1 << 20,
	})
}

func sequenceOfLen(t *testing.T, n int) *token.Sequence {
	t.Helper()
	words := make([]string, n)
	for i := range words {
		words[i] = "w"
	}
	seq := token.NewSimple().Tokenize(strings.Join(words, " "))
	require.Equal(t, n, seq.Len())
	return seq
}

func TestBuildWindowBoundaries(t *testing.T) {
	c := testChunker()
	seq := sequenceOfLen(t, 20000)

	drafts := c.Build(context.Background(), seq, "p1", "a.go", "go", model.ChunkKindCode)
	require.Len(t, drafts, 3)

	require.Equal(t, 0, drafts[0].Offset)
	require.Equal(t, 8000, drafts[0].TokenCount)
	require.Equal(t, 7744, drafts[1].Offset)
	require.Equal(t, 8000, drafts[1].TokenCount)
	require.Equal(t, 15488, drafts[2].Offset)
	require.Equal(t, 20000-15488, drafts[2].TokenCount)

	for _, d := range drafts {
		require.Equal(t, "p1", d.ProjectID)
		require.Equal(t, "a.go", d.Path)
		require.Equal(t, model.ChunkKindCode, d.Kind)
	}
}

func TestBuildDropsShortTrailingWindow(t *testing.T) {
	c := testChunker()
	// second window would be 8200-7744 = 456 tokens, below the 1000 floor
	seq := sequenceOfLen(t, 8200)

	drafts := c.Build(context.Background(), seq, "p1", "b.go", "go", model.ChunkKindCode)
	require.Len(t, drafts, 1)
	require.Equal(t, 8000, drafts[0].TokenCount)
}

func TestBuildKeepsShortFirstWindow(t *testing.T) {
	c := testChunker()
	// a whole document below the floor still yields one chunk
	seq := sequenceOfLen(t, 40)

	drafts := c.Build(context.Background(), seq, "p1", "tiny.go", "go", model.ChunkKindCode)
	require.Len(t, drafts, 1)
	require.Equal(t, 0, drafts[0].Offset)
	require.Equal(t, 40, drafts[0].TokenCount)
}

func TestBuildOverlapSharedPrefix(t *testing.T) {
	c := New(config.ChunkingConfig{
		MaxTokens:      10,
		OverlapTokens:  4,
		MinChunkTokens: 2,
		MaxRawBytes:    1 << 20,
	})
	words := []string{}
	for i := 0; i < 16; i++ {
		words = append(words, string(rune('a'+i)))
	}
	seq := token.NewSimple().Tokenize(strings.Join(words, " "))

	drafts := c.Build(context.Background(), seq, "p1", "c.txt", "text", model.ChunkKindCode)
	require.Len(t, drafts, 2)
	// stride 6: windows [0,10) and [6,16) share tokens 6..9
	tail := strings.Join(strings.Fields(drafts[0].Content)[6:], " ")
	require.True(t, strings.HasPrefix(drafts[1].Content, tail))
}

func TestBinaryPlaceholder(t *testing.T) {
	c := testChunker()
	d := c.BinaryPlaceholder("p1", "image.png")
	require.Equal(t, 0, d.TokenCount)
	require.Equal(t, model.ChunkKindBinary, d.Kind)
	require.Contains(t, d.Content, "image.png")
}

func TestBuildEmptySequence(t *testing.T) {
	c := testChunker()
	seq := token.NewSimple().Tokenize("")
	drafts := c.Build(context.Background(), seq, "p1", "empty.go", "go", model.ChunkKindCode)
	require.Empty(t, drafts)
}
