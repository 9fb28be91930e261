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

type QueryHandler struct {
	answerSvc service.AnswerService
}

func NewQueryHandler(answerSvc service.AnswerService) *QueryHandler {
	return &QueryHandler{answerSvc: answerSvc}
}

// Query POST /query?question=...&top_k=...，query string 缺参数时回落到 JSON body
func (h *QueryHandler) Query(c *gin.Context) {
	var req request.QueryRequest
	req.Question = strings.TrimSpace(c.Query("question"))
	if v := strings.TrimSpace(c.Query("top_k")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			back.Error(c, xerr.BadRequest, "top_k 必须是正整数")
			return
		}
		req.TopK = n
	}

	// query string 没给全的字段逐个从 JSON body 补齐
	if (req.Question == "" || req.TopK <= 0) && c.Request.ContentLength > 0 {
		var body request.QueryRequest
		if err := c.ShouldBindJSON(&body); err == nil {
			if req.Question == "" {
				req.Question = strings.TrimSpace(body.Question)
			}
			if req.TopK <= 0 {
				req.TopK = body.TopK
			}
		}
	}

	if req.Question == "" {
		back.Error(c, xerr.BadRequest, "question 不能为空")
		return
	}
	if req.TopK < 0 {
		back.Error(c, xerr.BadRequest, "top_k 必须是正整数")
		return
	}

	data, err := h.answerSvc.Answer(c.Request.Context(), req)
	if err != nil {
		zlog.Error("问答失败", zap.String("question", req.Question), zap.Error(err))
		writeError(c, err)
		return
	}
	back.Success(c, data)
}
