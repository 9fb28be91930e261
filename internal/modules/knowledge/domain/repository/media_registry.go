package repository

import (
	"context"

	"ReelSage/internal/modules/knowledge/domain/knowledge"
)

// MediaRegistry 负责摄取元数据（MySQL）的持久化
type MediaRegistry interface {
	// GetMedia 按 media_id 查登记记录，不存在返回 (nil, nil)
	GetMedia(ctx context.Context, mediaID string) (*knowledge.KnowledgeMedia, error)
	// UpsertMedia 按 media_id 幂等写入登记记录
	UpsertMedia(ctx context.Context, m *knowledge.KnowledgeMedia) error
	CreateRun(ctx context.Context, run *knowledge.IngestRun) error
	FinishRun(ctx context.Context, run *knowledge.IngestRun) error
	// GetIndexMeta 按集合名查 embedding 空间元数据，不存在返回 (nil, nil)
	GetIndexMeta(ctx context.Context, collection string) (*knowledge.KnowledgeIndexMeta, error)
	// EnsureIndexMeta 首次摄取时写入集合的 embedding 空间元数据
	EnsureIndexMeta(ctx context.Context, meta *knowledge.KnowledgeIndexMeta) error
}
