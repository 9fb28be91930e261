package kerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageError_WrapAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStageError(StageDownload, "42", cause)

	assert.Contains(t, err.Error(), "stage=download")
	assert.Contains(t, err.Error(), "media_id=42")
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, StageDownload, StageOf(err))
}

func TestStageOf_WrappedDeep(t *testing.T) {
	cause := NewStageError(StageTranscribe, "42", errors.New("boom"))
	wrapped := fmt.Errorf("ingest failed: %w", cause)
	assert.Equal(t, StageTranscribe, StageOf(wrapped))
}

func TestStageOf_RetrievalError(t *testing.T) {
	err := NewRetrievalError(StageGenerate, errors.New("llm timeout"))
	assert.Equal(t, StageGenerate, StageOf(err))
	assert.Contains(t, err.Error(), "retrieval failed at generate")
}

func TestStageOf_PlainError(t *testing.T) {
	assert.Equal(t, Stage(""), StageOf(errors.New("plain")))
}

func TestTransient(t *testing.T) {
	cause := errors.New("i/o timeout")
	marked := MarkTransient(cause)

	require.True(t, IsTransient(marked))
	assert.True(t, errors.Is(marked, cause))
	assert.False(t, IsTransient(cause))
	assert.Nil(t, MarkTransient(nil))

	// 外层再包一层阶段错误也能识别出可重试标记
	staged := NewStageError(StageTranscribe, "42", marked)
	assert.True(t, IsTransient(staged))
}

func TestSentinels(t *testing.T) {
	err := fmt.Errorf("%w: index=openai/te3/1536 query=mock/mock/8", ErrEmbeddingSpaceMismatch)
	assert.True(t, errors.Is(err, ErrEmbeddingSpaceMismatch))
	assert.False(t, errors.Is(err, ErrEmptyIndex))
}
