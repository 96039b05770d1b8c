package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_EmptyInput(t *testing.T) {
	assert.Empty(t, Chunk("", 500, 100))
	assert.Empty(t, Chunk("   \n\n  \n\n ", 500, 100))
}

func TestChunk_SingleParagraphFits(t *testing.T) {
	passages := Chunk("a short paragraph", 500, 100)
	require.Len(t, passages, 1)
	assert.Equal(t, 0, passages[0].Index)
	assert.Equal(t, "a short paragraph", passages[0].Text)
	assert.Equal(t, len("a short paragraph"), passages[0].Length)
}

// Two 40-char paragraphs against chunkSize=50, overlap=10: adding the second
// paragraph would overflow, so the first flushes alone and the second chunk is
// seeded with the trailing overlap/5 = 2 words of the first. Locked as a
// regression for the exact flush and carry arithmetic.
func TestChunk_FlushAndOverlapCarry(t *testing.T) {
	paraA := "the quick brown fox jumps over lazy dogs"
	paraB := "pack my box with five dozen liquor jugss"
	require.Equal(t, 40, len(paraA))
	require.Equal(t, 40, len(paraB))

	passages := Chunk(paraA+"\n\n"+paraB, 50, 10)
	require.Len(t, passages, 2)

	assert.Equal(t, paraA, passages[0].Text)
	assert.Equal(t, 40, passages[0].Length)

	assert.Equal(t, "lazy dogs\n\n"+paraB, passages[1].Text)
	assert.Equal(t, 51, passages[1].Length)
}

func TestChunk_BothParagraphsFit(t *testing.T) {
	paraA := "the quick brown fox jumps over lazy dogs"
	paraB := "pack my box with five dozen liquor jugss"

	passages := Chunk(paraA+"\n\n"+paraB, 100, 10)
	require.Len(t, passages, 1)
	assert.Equal(t, paraA+"\n\n"+paraB, passages[0].Text)
	assert.Equal(t, 82, passages[0].Length)
}

func TestChunk_OversizedParagraphNeverSplit(t *testing.T) {
	huge := strings.Repeat("word ", 100) + "end"
	passages := Chunk("lead in\n\n"+huge+"\n\ntail", 20, 10)

	found := false
	for _, p := range passages {
		if strings.Contains(p.Text, huge) {
			found = true
		}
	}
	assert.True(t, found, "oversized paragraph must stay whole")
}

func TestChunk_IndicesContiguous(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString(strings.Repeat("x", 30) + " paragraph\n\n")
	}
	passages := Chunk(sb.String(), 60, 10)
	require.NotEmpty(t, passages)
	for i, p := range passages {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, utf8.RuneCountInString(p.Text), p.Length)
	}
}

// Every input paragraph must appear, in order, across the emitted passages
// (the overlap carry duplicates trailing words but never drops a paragraph).
func TestChunk_CoversAllParagraphsInOrder(t *testing.T) {
	paragraphs := []string{
		"first paragraph with some words in it",
		"second paragraph is here as well now",
		"third paragraph rounds out the sample",
		"fourth and final paragraph of the doc",
	}
	for _, size := range []int{1, 25, 60, 500} {
		passages := Chunk(strings.Join(paragraphs, "\n\n"), size, 10)
		joined := ""
		for _, p := range passages {
			joined += p.Text + "\n\n"
		}
		pos := 0
		for _, para := range paragraphs {
			idx := strings.Index(joined[pos:], para)
			require.GreaterOrEqual(t, idx, 0, "size %d: missing paragraph %q", size, para)
			pos += idx + len(para)
		}
	}
}

func TestChunk_NoCarryWhenOverlapTiny(t *testing.T) {
	paraA := "the quick brown fox jumps over lazy dogs"
	paraB := "pack my box with five dozen liquor jugss"

	// overlap/5 rounds to zero words, so the second chunk has no carry.
	passages := Chunk(paraA+"\n\n"+paraB, 50, 4)
	require.Len(t, passages, 2)
	assert.Equal(t, paraB, passages[1].Text)
}

func TestChunk_CRLFInput(t *testing.T) {
	passages := Chunk("one paragraph\r\n\r\nanother paragraph", 500, 0)
	require.Len(t, passages, 1)
	assert.Equal(t, "one paragraph\n\nanother paragraph", passages[0].Text)
}
