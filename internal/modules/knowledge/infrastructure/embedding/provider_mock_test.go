package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder(8)

	a, err := m.EmbedStrings(context.Background(), []string{"今天讲三个技巧", "另一段文本"})
	require.NoError(t, err)
	b, err := m.EmbedStrings(context.Background(), []string{"今天讲三个技巧", "另一段文本"})
	require.NoError(t, err)

	require.Len(t, a, 2)
	assert.Len(t, a[0], 8)
	// 相同文本必须得到相同向量，否则主键覆盖写会抖动
	assert.Equal(t, a[0], b[0])
	assert.Equal(t, a[1], b[1])
	assert.NotEqual(t, a[0], a[1])
}

func TestNewMockEmbedder_DimFallback(t *testing.T) {
	assert.Equal(t, 8, NewMockEmbedder(0).Dim)
	assert.Equal(t, 1536, NewMockEmbedder(1536).Dim)
}
