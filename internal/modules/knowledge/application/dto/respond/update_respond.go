package respond

// UpdateRespond 摄取响应
type UpdateRespond struct {
	RunID      string `json:"run_id"`              // 本次摄取运行 ID
	Account    string `json:"account"`             // 目标账号
	Requested  int    `json:"requested"`           // 请求拉取的媒体数
	Processed  int    `json:"processed"`           // 成功摄取数
	Skipped    int    `json:"skipped"`             // 非视频跳过数
	Failed     int    `json:"failed"`              // 失败数
	Status     string `json:"status"`              // running/finished/failed
	Enqueued   bool   `json:"enqueued,omitempty"`  // 异步模式：已投递到队列
	DurationMs int64  `json:"duration_ms"`         // 总耗时（毫秒）
	Message    string `json:"message,omitempty"`   // 提示信息
}
