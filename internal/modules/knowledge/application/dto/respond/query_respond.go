package respond

// ContextChunk 单条召回片段
type ContextChunk struct {
	ID         string  `json:"id"`          // 向量主键 {media_id}_chunk_{i}
	MediaID    string  `json:"media_id"`    // 来源媒体
	SourceFile string  `json:"source_file"` // 来源视频文件名
	ChunkIndex int64   `json:"chunk_index"` // 片段序号
	Score      float32 `json:"score"`       // 相似度分数
	Content    string  `json:"content"`     // 片段内容
}

// TimingInfo 耗时统计信息
type TimingInfo struct {
	EmbeddingMs int64 `json:"embedding_ms"` // 向量化耗时（毫秒）
	SearchMs    int64 `json:"search_ms"`    // 检索耗时（毫秒）
	LLMMs       int64 `json:"llm_ms"`       // 生成耗时（毫秒）
	TotalMs     int64 `json:"total_ms"`     // 总耗时（毫秒）
}

// QueryRespond 问答响应
type QueryRespond struct {
	QueryID  string         `json:"query_id"` // 本次查询唯一 ID（便于追踪回放）
	Question string         `json:"question"` // 原始用户问题
	Answer   string         `json:"answer"`   // 基于召回上下文生成的回答
	Chunks   []ContextChunk `json:"chunks"`   // 召回片段（按相似度降序）
	Timing   TimingInfo     `json:"timing"`   // 耗时统计
}
