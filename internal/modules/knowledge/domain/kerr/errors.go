package kerr

import (
	"errors"
	"fmt"
)

// Stage 管线阶段标识，错误必须携带所在阶段，便于定位与分类上报
type Stage string

const (
	StageFetch           Stage = "fetch"
	StageDownload        Stage = "download"
	StageExtractAudio    Stage = "extract_audio"
	StageTranscribe      Stage = "transcribe"
	StageWriteTranscript Stage = "write_transcript"
	StageChunk           Stage = "chunk"
	StageEmbed           Stage = "embed"
	StageIndex           Stage = "index"
	StageSearch          Stage = "search"
	StageGenerate        Stage = "generate"
)

// 哨兵错误
var (
	// ErrInvalidConfiguration 配置缺失/占位符凭证，启动期致命，不重试
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrEmptyIndex 向量库为空，查询路径必须显式失败而不是空答案
	ErrEmptyIndex = errors.New("vector index has no entries")
	// ErrEmbeddingSpaceMismatch 查询与索引的 embedding 模型不一致
	ErrEmbeddingSpaceMismatch = errors.New("embedding model mismatch between index and query")
)

// StageError 摄取路径的阶段错误：失败的媒体与阶段一起上报，
// 单条媒体的失败不允许中断同批次的其他媒体。
type StageError struct {
	Stage   Stage
	MediaID string
	Err     error
}

func (e *StageError) Error() string {
	if e.MediaID != "" {
		return fmt.Sprintf("stage=%s media_id=%s: %v", e.Stage, e.MediaID, e.Err)
	}
	return fmt.Sprintf("stage=%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError 包装一个阶段错误
func NewStageError(stage Stage, mediaID string, err error) *StageError {
	return &StageError{Stage: stage, MediaID: mediaID, Err: err}
}

// StageOf 提取错误所属阶段，非阶段错误返回空
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	var re *RetrievalError
	if errors.As(err, &re) {
		return re.Stage
	}
	return ""
}

// RetrievalError 查询路径的阶段错误（embed/search/generate）
type RetrievalError struct {
	Stage Stage
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed at %s: %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

func NewRetrievalError(stage Stage, err error) *RetrievalError {
	return &RetrievalError{Stage: stage, Err: err}
}

// Transient 标记可重试的外部调用失败（网络抖动、5xx、限流）。
// 未标记的错误视为致命（配额耗尽、鉴权失败），不重试。
type Transient struct {
	Err error
}

func (e *Transient) Error() string { return e.Err.Error() }
func (e *Transient) Unwrap() error { return e.Err }

func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &Transient{Err: err}
}

// IsTransient 判断错误是否可重试
func IsTransient(err error) bool {
	var t *Transient
	return errors.As(err, &t)
}
