package request

// QueryRequest 问答请求（query string 优先，JSON body 兜底）
type QueryRequest struct {
	Question string `json:"question" form:"question"` // 用户问题（必填）
	TopK     int    `json:"top_k" form:"top_k"`       // 召回数量（默认 5，范围 1-50）
}
