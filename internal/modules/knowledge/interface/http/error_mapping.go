package http

import (
	"errors"

	"ReelSage/internal/modules/knowledge/domain/kerr"
	"ReelSage/pkg/back"
	"ReelSage/pkg/xerr"

	"github.com/gin-gonic/gin"
)

// writeError 把管线错误映射为 HTTP 状态码。
// 错误一律走对应状态码返回，绝不用 200 响应携带失败。
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, kerr.ErrInvalidConfiguration):
		back.Error(c, xerr.BadRequest, err.Error())
	case errors.Is(err, kerr.ErrEmptyIndex):
		back.Error(c, xerr.Conflict, "知识库为空，请先执行 /update 摄取")
	case errors.Is(err, kerr.ErrEmbeddingSpaceMismatch):
		back.Error(c, xerr.Conflict, err.Error())
	default:
		switch kerr.StageOf(err) {
		case kerr.StageEmbed, kerr.StageGenerate, kerr.StageTranscribe:
			// 上游模型服务的失败
			back.Error(c, xerr.BadGateway, err.Error())
		default:
			back.Error(c, xerr.InternalServerError, err.Error())
		}
	}
}
