package persistence

import (
	"context"
	"time"

	"ReelSage/internal/modules/knowledge/domain/knowledge"
	"ReelSage/internal/modules/knowledge/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type mediaRegistryImpl struct {
	db *gorm.DB
}

func NewMediaRegistry(db *gorm.DB) repository.MediaRegistry {
	return &mediaRegistryImpl{db: db}
}

func (r *mediaRegistryImpl) GetMedia(ctx context.Context, mediaID string) (*knowledge.KnowledgeMedia, error) {
	var m knowledge.KnowledgeMedia
	err := r.db.WithContext(ctx).Where("media_id = ?", mediaID).Take(&m).Error
	if err == nil {
		return &m, nil
	}
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return nil, err
}

// UpsertMedia 通过唯一索引 uniq_kn_media（media_id）定位记录，重复摄取时覆盖登记
func (r *mediaRegistryImpl) UpsertMedia(ctx context.Context, m *knowledge.KnowledgeMedia) error {
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "media_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at", "source_file", "transcript_path", "chunk_count", "status", "last_ingested_at"}),
	}).Create(m).Error
}

func (r *mediaRegistryImpl) CreateRun(ctx context.Context, run *knowledge.IngestRun) error {
	now := time.Now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *mediaRegistryImpl) FinishRun(ctx context.Context, run *knowledge.IngestRun) error {
	run.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Model(&knowledge.IngestRun{}).
		Where("run_id = ?", run.RunId).
		Updates(map[string]interface{}{
			"processed":   run.Processed,
			"skipped":     run.Skipped,
			"failed":      run.Failed,
			"status":      run.Status,
			"error_msg":   run.ErrorMsg,
			"finished_at": run.FinishedAt,
			"updated_at":  run.UpdatedAt,
		}).Error
}

func (r *mediaRegistryImpl) GetIndexMeta(ctx context.Context, collection string) (*knowledge.KnowledgeIndexMeta, error) {
	var meta knowledge.KnowledgeIndexMeta
	err := r.db.WithContext(ctx).Where("collection = ?", collection).Take(&meta).Error
	if err == nil {
		return &meta, nil
	}
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return nil, err
}

// EnsureIndexMeta 首写生效：集合已有元数据时不覆盖，embedding 空间切换必须重建集合
func (r *mediaRegistryImpl) EnsureIndexMeta(ctx context.Context, meta *knowledge.KnowledgeIndexMeta) error {
	now := time.Now()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}},
		DoNothing: true,
	}).Create(meta).Error
}
