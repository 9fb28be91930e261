package request

// UpdateRequest 摄取请求（query string 优先，JSON body 兜底）
type UpdateRequest struct {
	Limit int  `json:"limit" form:"limit"` // 拉取最近多少条媒体（默认走配置）
	Async bool `json:"async" form:"async"` // true 时投递到 Kafka 异步执行
}
