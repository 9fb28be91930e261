package chunking

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimpleChunker_Defaults(t *testing.T) {
	c := NewSimpleChunker(0, -1)
	assert.Equal(t, 500, c.ChunkSize)
	assert.Equal(t, 0, c.ChunkOverlap)

	// overlap 不允许大于等于 size
	c = NewSimpleChunker(100, 100)
	assert.Equal(t, 50, c.ChunkOverlap)
}

func TestChunk_Empty(t *testing.T) {
	c := NewSimpleChunker(100, 0)
	chunks := c.Chunk("")
	require.NotNil(t, chunks)
	assert.Len(t, chunks, 0)
}

func TestChunk_ShortText(t *testing.T) {
	c := NewSimpleChunker(100, 0)
	chunks := c.Chunk("短文本")
	require.Len(t, chunks, 1)
	assert.Equal(t, "短文本", chunks[0])
}

func TestChunk_NoOverlapReconstruction(t *testing.T) {
	c := NewSimpleChunker(7, 0)
	text := strings.Repeat("abcde", 10)

	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		if i < len(chunks)-1 {
			assert.Equal(t, 7, len([]rune(chunk)))
		} else {
			assert.LessOrEqual(t, len([]rune(chunk)), 7)
		}
	}
	// 无重叠时顺序拼接应精确还原原文
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunk_MultiByteRunes(t *testing.T) {
	c := NewSimpleChunker(4, 0)
	text := "今天的视频讲了三个做饭技巧"

	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		// 按 rune 切分，任何片段都必须是合法 UTF-8
		assert.True(t, utf8.ValidString(chunk), "chunk %q is not valid utf-8", chunk)
		assert.LessOrEqual(t, len([]rune(chunk)), 4)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunk_WithOverlap(t *testing.T) {
	c := NewSimpleChunker(10, 3)
	text := strings.Repeat("x", 25)

	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)

	// step = size - overlap = 7，每个片段的前 overlap 个字符与上个片段的尾部重合
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		overlap := prev[len(prev)-3:]
		assert.Equal(t, string(overlap), string(cur[:3]))
	}
}

func TestChunkDocuments_SetsChunkIndex(t *testing.T) {
	c := NewSimpleChunker(5, 0)
	docs := []*schema.Document{
		{Content: strings.Repeat("a", 12), MetaData: map[string]any{"media_id": "42"}},
	}

	out, err := c.ChunkDocuments(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, out, 3)

	for i, d := range out {
		assert.Equal(t, i, d.MetaData["chunk_index"])
		assert.Equal(t, "42", d.MetaData["media_id"])
	}
}

func TestChunkDocuments_Empty(t *testing.T) {
	c := NewSimpleChunker(5, 0)
	out, err := c.ChunkDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, out, 0)
}
