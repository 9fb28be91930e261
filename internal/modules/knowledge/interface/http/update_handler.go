package http

import (
	"strconv"
	"strings"

	"ReelSage/internal/modules/knowledge/application/dto/request"
	"ReelSage/internal/modules/knowledge/application/service"
	"ReelSage/pkg/back"
	"ReelSage/pkg/xerr"
	"ReelSage/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UpdateHandler struct {
	updateSvc service.UpdateService
}

func NewUpdateHandler(updateSvc service.UpdateService) *UpdateHandler {
	return &UpdateHandler{updateSvc: updateSvc}
}

// Update POST /update?limit=...&async=...，同步执行或投递队列
func (h *UpdateHandler) Update(c *gin.Context) {
	var req request.UpdateRequest
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			back.Error(c, xerr.BadRequest, "limit 必须是正整数")
			return
		}
		req.Limit = n
	}
	if v := strings.TrimSpace(c.Query("async")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			back.Error(c, xerr.BadRequest, "async 必须是布尔值")
			return
		}
		req.Async = b
	}

	if req.Limit == 0 && c.Request.ContentLength > 0 {
		var body request.UpdateRequest
		if err := c.ShouldBindJSON(&body); err == nil {
			if req.Limit == 0 {
				req.Limit = body.Limit
			}
			if !req.Async {
				req.Async = body.Async
			}
		}
	}
	if req.Limit < 0 {
		back.Error(c, xerr.BadRequest, "limit 必须是正整数")
		return
	}

	if req.Async {
		data, err := h.updateSvc.Enqueue(c.Request.Context(), req.Limit)
		if err != nil {
			zlog.Error("摄取任务入队失败", zap.Error(err))
			writeError(c, err)
			return
		}
		back.Success(c, data)
		return
	}

	data, err := h.updateSvc.Update(c.Request.Context(), req.Limit)
	if err != nil {
		zlog.Error("批量摄取失败", zap.Error(err))
		writeError(c, err)
		return
	}
	back.Success(c, data)
}
