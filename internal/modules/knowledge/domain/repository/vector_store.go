package repository

import "context"

// VectorStore 是 domain 层定义的“向量库能力抽象”。
//
// 设计约束：
// 1) application / domain 只能依赖本接口，不应直接依赖 Milvus SDK。
// 2) infrastructure 通过适配器实现本接口（例如 MilvusVectorStore），从而做到可替换。
//
// 字段约定：MediaID/ChunkIndex 共同构成向量主键 {media_id}_chunk_{i}，
// 重复摄取同一媒体覆盖旧向量而不是追加。

// VectorUpsertItem 向量写入所需的标准字段
type VectorUpsertItem struct {
	ID             string
	Vector         []float32
	MediaID        string
	SourceFile     string
	ChunkIndex     int64
	Content        string
	EmbeddingModel string
	MetadataJSON   string
}

type VectorSearchHit struct {
	ID             string
	Score          float32
	MediaID        string
	SourceFile     string
	ChunkIndex     int64
	Content        string
	EmbeddingModel string
	MetadataJSON   string
}

// VectorStore 向量数据库接口（Upsert/Delete/Search/Count）
type VectorStore interface {
	Upsert(ctx context.Context, items []VectorUpsertItem) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	Search(ctx context.Context, vector []float32, topK int, expr string) ([]VectorSearchHit, error)
	// Count 集合内向量总数，用于空索引判定
	Count(ctx context.Context) (int64, error)
	// Flush 批次结束后落盘一次，逐条 Flush 代价太高
	Flush(ctx context.Context) error
}
