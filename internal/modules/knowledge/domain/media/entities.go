package media

import "time"

// Type 媒体类型，只有视频会进入摄取管线
type Type string

const (
	TypeVideo    Type = "video"
	TypeImage    Type = "image"
	TypeCarousel Type = "carousel"
)

// Item 来源账号下的一条媒体
type Item struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	Code     string    `json:"code"`
	VideoURL string    `json:"video_url"`
	TakenAt  time.Time `json:"taken_at"`
}

// Eligible 是否进入摄取管线：非视频按 skipped 计数，不算失败
func (i Item) Eligible() bool {
	return i.Type == TypeVideo && i.VideoURL != ""
}
