package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ReelSage/internal/modules/knowledge/application/dto/respond"
	"ReelSage/internal/modules/knowledge/domain/kerr"
	"ReelSage/internal/modules/knowledge/domain/repository"
	"ReelSage/pkg/util"
	"ReelSage/pkg/zlog"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// 生成提示词：回答只能基于召回的转写片段，答不了就明说
const groundedSystemPrompt = "你是一个基于视频转写内容回答问题的助手。只能根据提供的上下文回答，" +
	"上下文里找不到答案时明确说明无法回答，不要编造。"

type answerState struct {
	Req *AnswerRequest

	QueryID  string
	QueryVec []float32
	Hits     []repository.VectorSearchHit
	Context  string
	Answer   string

	Start       time.Time
	EmbeddingMs int64
	SearchMs    int64
	LLMMs       int64
	Err         error
}

// buildGraph 节点顺序：Validate → EmbedQuery → SearchVector → Generate → BuildResult
func (p *AnswerPipeline) buildGraph(ctx context.Context) (compose.Runnable[*AnswerRequest, *AnswerResult], error) {
	const (
		Validate     = "Validate"
		EmbedQuery   = "EmbedQuery"
		SearchVector = "SearchVector"
		Generate     = "Generate"
		BuildResult  = "BuildResult"
	)
	g := compose.NewGraph[*AnswerRequest, *AnswerResult]()

	_ = g.AddLambdaNode(Validate, compose.InvokableLambdaWithOption(p.validateNode), compose.WithNodeName(Validate))
	_ = g.AddLambdaNode(EmbedQuery, compose.InvokableLambdaWithOption(p.embedQueryNode), compose.WithNodeName(EmbedQuery))
	_ = g.AddLambdaNode(SearchVector, compose.InvokableLambdaWithOption(p.searchVectorNode), compose.WithNodeName(SearchVector))
	_ = g.AddLambdaNode(Generate, compose.InvokableLambdaWithOption(p.generateNode), compose.WithNodeName(Generate))
	_ = g.AddLambdaNode(BuildResult, compose.InvokableLambdaWithOption(p.buildResultNode), compose.WithNodeName(BuildResult))

	_ = g.AddEdge(compose.START, Validate)
	_ = g.AddEdge(Validate, EmbedQuery)
	_ = g.AddEdge(EmbedQuery, SearchVector)
	_ = g.AddEdge(SearchVector, Generate)
	_ = g.AddEdge(Generate, BuildResult)
	_ = g.AddEdge(BuildResult, compose.END)

	return g.Compile(ctx, compose.WithGraphName("KnowledgeAnswerPipeline"), compose.WithNodeTriggerMode(compose.AllPredecessor))
}

// validateNode 节点 1：校验问题、空索引判定、embedding 空间比对
func (p *AnswerPipeline) validateNode(ctx context.Context, req *AnswerRequest, _ ...any) (*answerState, error) {
	st := &answerState{
		Req:     req,
		QueryID: util.GenerateShortUUID(),
		Start:   time.Now(),
	}
	if req == nil {
		st.Err = fmt.Errorf("answer request is nil")
		return st, nil
	}
	question := strings.TrimSpace(req.Question)
	req.Question = question
	if question == "" {
		st.Err = fmt.Errorf("missing question")
		return st, nil
	}
	req.TopK = normalizeTopK(req.TopK)

	// 空索引要显式报错，不能拿空上下文去生成一个兜底回答
	count, err := p.vs.Count(ctx)
	if err != nil {
		st.Err = kerr.NewRetrievalError(kerr.StageSearch, err)
		return st, nil
	}
	if count == 0 {
		st.Err = kerr.ErrEmptyIndex
		return st, nil
	}

	// 索引建立时用的 embedding 空间和当前查询侧不一致时拒绝查询，
	// 维度恰好相同时搜索不会报错但结果全是噪声
	if p.collection != "" {
		meta, err := p.registry.GetIndexMeta(ctx, p.collection)
		if err != nil {
			st.Err = kerr.NewRetrievalError(kerr.StageSearch, err)
			return st, nil
		}
		if meta != nil && (meta.EmbeddingProvider != p.embeddingProvider || meta.EmbeddingModel != p.embeddingModel || meta.Dim != p.vectorDim) {
			st.Err = fmt.Errorf("%w: index=%s/%s/%d query=%s/%s/%d",
				kerr.ErrEmbeddingSpaceMismatch,
				meta.EmbeddingProvider, meta.EmbeddingModel, meta.Dim,
				p.embeddingProvider, p.embeddingModel, p.vectorDim)
			return st, nil
		}
	}

	return st, nil
}

// embedQueryNode 节点 2：将用户问题向量化
func (p *AnswerPipeline) embedQueryNode(ctx context.Context, st *answerState, _ ...any) (*answerState, error) {
	if st == nil {
		return &answerState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	embStart := time.Now()
	vecs, err := p.embedder.EmbedStrings(ctx, []string{st.Req.Question})
	if err != nil {
		st.Err = kerr.NewRetrievalError(kerr.StageEmbed, err)
		return st, nil
	}
	if len(vecs) == 0 {
		st.Err = kerr.NewRetrievalError(kerr.StageEmbed, fmt.Errorf("embedding result is empty"))
		return st, nil
	}
	vec64 := vecs[0]
	if len(vec64) != p.vectorDim {
		st.Err = kerr.NewRetrievalError(kerr.StageEmbed,
			fmt.Errorf("embedding dim mismatch: got=%d want=%d", len(vec64), p.vectorDim))
		return st, nil
	}
	vec32 := make([]float32, len(vec64))
	for i := range vec64 {
		vec32[i] = float32(vec64[i])
	}
	st.QueryVec = vec32
	st.EmbeddingMs = time.Since(embStart).Milliseconds()
	return st, nil
}

// searchVectorNode 节点 3：向量检索并按相似度降序拼接上下文
func (p *AnswerPipeline) searchVectorNode(ctx context.Context, st *answerState, _ ...any) (*answerState, error) {
	if st == nil {
		return &answerState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	searchStart := time.Now()
	hits, err := p.vs.Search(ctx, st.QueryVec, st.Req.TopK, "")
	if err != nil {
		st.Err = kerr.NewRetrievalError(kerr.StageSearch, err)
		return st, nil
	}
	st.Hits = hits
	st.SearchMs = time.Since(searchStart).Milliseconds()

	// 命中片段按相似度降序用换行拼成上下文
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		parts = append(parts, h.Content)
	}
	st.Context = strings.Join(parts, "\n")
	return st, nil
}

// generateNode 节点 4：拼提示词并调用 ChatModel 生成一次回答
func (p *AnswerPipeline) generateNode(ctx context.Context, st *answerState, _ ...any) (*answerState, error) {
	if st == nil {
		return &answerState{Err: fmt.Errorf("nil state"), Start: time.Now()}, nil
	}
	if st.Err != nil {
		return st, nil
	}

	userPrompt := fmt.Sprintf("上下文：\n%s\n\n问题：%s", st.Context, st.Req.Question)
	msgs := []*schema.Message{
		{Role: schema.System, Content: groundedSystemPrompt},
		{Role: schema.User, Content: userPrompt},
	}

	llmStart := time.Now()
	resp, err := p.chatModel.Generate(ctx, msgs)
	if err != nil {
		st.Err = kerr.NewRetrievalError(kerr.StageGenerate, err)
		return st, nil
	}
	st.Answer = resp.Content
	st.LLMMs = time.Since(llmStart).Milliseconds()
	return st, nil
}

// buildResultNode 节点 5：组装结果
func (p *AnswerPipeline) buildResultNode(ctx context.Context, st *answerState, _ ...any) (*AnswerResult, error) {
	_ = ctx
	if st == nil {
		return nil, fmt.Errorf("nil state")
	}

	res := &AnswerResult{QueryID: st.QueryID}
	if st.Req != nil {
		res.Question = st.Req.Question
	}
	if st.Err != nil {
		res.DurationMs = time.Since(st.Start).Milliseconds()
		return res, st.Err
	}

	chunks := make([]respond.ContextChunk, 0, len(st.Hits))
	for _, h := range st.Hits {
		chunks = append(chunks, respond.ContextChunk{
			ID:         h.ID,
			MediaID:    h.MediaID,
			SourceFile: h.SourceFile,
			ChunkIndex: h.ChunkIndex,
			Score:      h.Score,
			Content:    h.Content,
		})
	}

	res.Answer = st.Answer
	res.Chunks = chunks
	res.EmbeddingMs = st.EmbeddingMs
	res.SearchMs = st.SearchMs
	res.LLMMs = st.LLMMs
	res.DurationMs = time.Since(st.Start).Milliseconds()

	zlog.Info("问答完成",
		zap.String("query_id", res.QueryID),
		zap.Int("hits", len(chunks)),
		zap.Int("answer_len", len(res.Answer)),
		zap.Int64("embedding_ms", res.EmbeddingMs),
		zap.Int64("search_ms", res.SearchMs),
		zap.Int64("llm_ms", res.LLMMs),
		zap.Int64("total_ms", res.DurationMs))
	return res, nil
}
