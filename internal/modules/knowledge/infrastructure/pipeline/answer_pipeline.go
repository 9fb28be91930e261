package pipeline

import (
	"context"
	"fmt"
	"strings"

	"ReelSage/internal/modules/knowledge/application/dto/respond"
	"ReelSage/internal/modules/knowledge/domain/repository"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
)

// AnswerRequest 问答输入
type AnswerRequest struct {
	Question string
	TopK     int
}

// AnswerResult 问答输出
type AnswerResult struct {
	QueryID     string
	Question    string
	Answer      string
	Chunks      []respond.ContextChunk
	EmbeddingMs int64
	SearchMs    int64
	LLMMs       int64
	DurationMs  int64
}

// AnswerPipeline 查询路径的管线（基于 Eino compose.Graph）：
// 校验 → 问题向量化 → 向量检索 → 拼上下文提示词 → 生成回答。
// 回答必须落在召回的上下文之内，上下文答不了就明说。
type AnswerPipeline struct {
	vs        repository.VectorStore
	registry  repository.MediaRegistry
	embedder  embedding.Embedder
	chatModel model.BaseChatModel

	embeddingProvider string
	embeddingModel    string
	vectorDim         int
	collection        string

	r compose.Runnable[*AnswerRequest, *AnswerResult]
}

func NewAnswerPipeline(
	vs repository.VectorStore,
	registry repository.MediaRegistry,
	embedder embedding.Embedder,
	chatModel model.BaseChatModel,
	embeddingProvider, embeddingModel string,
	vectorDim int,
	collection string,
) (*AnswerPipeline, error) {
	if vs == nil {
		return nil, fmt.Errorf("vector store is nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("media registry is nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if vectorDim <= 0 {
		return nil, fmt.Errorf("invalid vectorDim: %d", vectorDim)
	}
	p := &AnswerPipeline{
		vs:                vs,
		registry:          registry,
		embedder:          embedder,
		chatModel:         chatModel,
		embeddingProvider: strings.TrimSpace(embeddingProvider),
		embeddingModel:    strings.TrimSpace(embeddingModel),
		vectorDim:         vectorDim,
		collection:        strings.TrimSpace(collection),
	}
	r, err := p.buildGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.r = r
	return p, nil
}

// Answer 执行问答（封装 Eino Runnable.Invoke）
func (p *AnswerPipeline) Answer(ctx context.Context, req *AnswerRequest) (*AnswerResult, error) {
	if req == nil {
		return nil, fmt.Errorf("answer request is nil")
	}
	return p.r.Invoke(ctx, req)
}

// normalizeTopK 规范化 TopK 参数（默认 5，范围 1-50）
func normalizeTopK(topK int) int {
	if topK <= 0 {
		return 5
	}
	if topK > 50 {
		return 50
	}
	return topK
}
