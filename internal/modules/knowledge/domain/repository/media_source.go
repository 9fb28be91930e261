package repository

import (
	"context"

	"ReelSage/internal/modules/knowledge/domain/media"
)

// MediaSource 来源账号的媒体列表与下载能力（由网关适配器实现）
type MediaSource interface {
	// RecentMedia 拉取账号最近 limit 条媒体（包含非视频，由上层过滤）
	RecentMedia(ctx context.Context, account string, limit int) ([]media.Item, error)
	// Download 把一条视频下载到 dir，返回本地文件路径
	Download(ctx context.Context, item media.Item, dir string) (string, error)
}

// AudioExtractor 视频抽音轨
type AudioExtractor interface {
	// Extract 从视频文件抽出音频，返回音频文件路径
	Extract(ctx context.Context, videoPath string) (string, error)
}

// Transcriber 语音转写
type Transcriber interface {
	// Transcribe 把音频文件转写为纯文本
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
