package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ReelSage/internal/config"
	"ReelSage/internal/modules/knowledge/domain/media"
	"ReelSage/internal/modules/knowledge/domain/repository"
	"ReelSage/internal/modules/knowledge/infrastructure/chunking"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/compose"
)

// IngestRequest 单条媒体的摄取输入
type IngestRequest struct {
	Account string
	Item    media.Item
}

// IngestResult 单条媒体的摄取产出
type IngestResult struct {
	MediaID        string `json:"media_id"`
	SourceFile     string `json:"source_file"`
	TranscriptPath string `json:"transcript_path"`
	Chunks         int    `json:"chunks"`
	VectorsOK      int    `json:"vectors_ok"`
	Pruned         int    `json:"pruned"`
	DurationMs     int64  `json:"duration_ms"`
}

// IngestPipeline 单条媒体的摄取管线（基于 Eino compose.Graph）：
// 下载 → 抽音轨 → 转写 → 落盘转写稿 → 切片 → 向量化 → 写向量库 → 收尾登记。
// 每条媒体独立执行一遍，单条失败由上层计数，不影响同批其他媒体。
type IngestPipeline struct {
	source     repository.MediaSource
	extractor  repository.AudioExtractor
	transcribe repository.Transcriber
	chunker    *chunking.SimpleChunker
	vs         repository.VectorStore
	registry   repository.MediaRegistry
	embedder   embedding.Embedder

	embeddingProvider string
	embeddingModel    string
	vectorDim         int
	collection        string

	videoDir      string
	transcriptDir string

	r compose.Runnable[*IngestRequest, *IngestResult]
}

func NewIngestPipeline(
	source repository.MediaSource,
	extractor repository.AudioExtractor,
	transcribe repository.Transcriber,
	chunker *chunking.SimpleChunker,
	vs repository.VectorStore,
	registry repository.MediaRegistry,
	embedder embedding.Embedder,
	embeddingProvider, embeddingModel string,
	vectorDim int,
	collection string,
	videoDir, transcriptDir string,
) (*IngestPipeline, error) {
	if source == nil || extractor == nil || transcribe == nil {
		return nil, fmt.Errorf("media source/extractor/transcriber is nil")
	}
	if chunker == nil {
		return nil, fmt.Errorf("chunker is nil")
	}
	if vs == nil || registry == nil || embedder == nil {
		return nil, fmt.Errorf("vector store/registry/embedder is nil")
	}
	if vectorDim <= 0 {
		return nil, fmt.Errorf("invalid vectorDim: %d", vectorDim)
	}
	p := &IngestPipeline{
		source:            source,
		extractor:         extractor,
		transcribe:        transcribe,
		chunker:           chunker,
		vs:                vs,
		registry:          registry,
		embedder:          embedder,
		embeddingProvider: strings.TrimSpace(embeddingProvider),
		embeddingModel:    strings.TrimSpace(embeddingModel),
		vectorDim:         vectorDim,
		collection:        strings.TrimSpace(collection),
		videoDir:          videoDir,
		transcriptDir:     transcriptDir,
	}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// IngestMedia 执行单条媒体摄取（封装 Eino Runnable.Invoke）
func (p *IngestPipeline) IngestMedia(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	return p.r.Invoke(ctx, &req)
}

// chunkID 约定向量主键为 {media_id}_chunk_{i}，重复摄取覆盖旧向量
func chunkID(mediaID string, i int) string {
	return fmt.Sprintf("%s_chunk_%d", mediaID, i)
}

func chunkMetadataJSON(sourceFile string, chunkIndex int) string {
	m := map[string]any{
		"source_file_name": sourceFile,
		"chunk_index":      chunkIndex,
	}
	bs, err := json.Marshal(m)
	if err != nil || len(bs) == 0 {
		return "{}"
	}
	return string(bs)
}

// truncateContent 兜底保护 content 列宽。正常情况下切块长度在配置校验时
// 就被限制在列宽以内，这里不应该真的截断。
func truncateContent(s string) string {
	r := []rune(s)
	if len(r) <= config.MaxChunkContentLength {
		return s
	}
	return string(r[:config.MaxChunkContentLength])
}
