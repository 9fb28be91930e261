package knowledge

import (
	"database/sql"
	"time"
)

// 摄取运行状态
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

// KnowledgeMedia 已摄取媒体的登记表，chunk_count 用于缩容时清理残留分块
type KnowledgeMedia struct {
	Id             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	MediaId        string    `gorm:"column:media_id;type:varchar(64);not null;uniqueIndex:uniq_kn_media"`
	Account        string    `gorm:"column:account;type:varchar(64);not null;index:idx_kn_media_account"`
	SourceFile     string    `gorm:"column:source_file;type:varchar(255);not null"`
	TranscriptPath string    `gorm:"column:transcript_path;type:varchar(512)"`
	ChunkCount     int       `gorm:"column:chunk_count;type:int;not null;default:0"`
	Status         int8      `gorm:"column:status;type:tinyint;not null;default:1"`
	LastIngestedAt time.Time `gorm:"column:last_ingested_at;type:datetime;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;type:datetime;not null"`
}

func (KnowledgeMedia) TableName() string { return "knowledge_media" }

// IngestRun 一次批量摄取的执行记录
type IngestRun struct {
	Id             int64        `gorm:"column:id;primaryKey;autoIncrement"`
	// run_id 是去掉中划线的 UUID，固定 32 字符
	RunId          string       `gorm:"column:run_id;type:char(32);not null;uniqueIndex:uniq_kn_run"`
	Account        string       `gorm:"column:account;type:varchar(64);not null;index:idx_kn_run_account"`
	RequestedLimit int          `gorm:"column:requested_limit;type:int;not null"`
	Processed      int          `gorm:"column:processed;type:int;not null;default:0"`
	Skipped        int          `gorm:"column:skipped;type:int;not null;default:0"`
	Failed         int          `gorm:"column:failed;type:int;not null;default:0"`
	Status         string       `gorm:"column:status;type:varchar(20);not null;index:idx_kn_run_status"`
	ErrorMsg       string       `gorm:"column:error_msg;type:varchar(512)"`
	StartedAt      time.Time    `gorm:"column:started_at;type:datetime;not null"`
	FinishedAt     sql.NullTime `gorm:"column:finished_at;type:datetime"`
	CreatedAt      time.Time    `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt      time.Time    `gorm:"column:updated_at;type:datetime;not null"`
}

func (IngestRun) TableName() string { return "knowledge_ingest_run" }

// KnowledgeIndexMeta 集合当前使用的 embedding 空间，查询侧不一致时必须拒绝
type KnowledgeIndexMeta struct {
	Id                int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Collection        string    `gorm:"column:collection;type:varchar(64);not null;uniqueIndex:uniq_kn_index_meta"`
	EmbeddingProvider string    `gorm:"column:embedding_provider;type:varchar(30);not null"`
	EmbeddingModel    string    `gorm:"column:embedding_model;type:varchar(64);not null"`
	Dim               int       `gorm:"column:dim;type:int;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt         time.Time `gorm:"column:updated_at;type:datetime;not null"`
}

func (KnowledgeIndexMeta) TableName() string { return "knowledge_index_meta" }
