package http

import (
	"strings"

	"ReelSage/internal/config"
	jwtMiddleware "ReelSage/internal/middleware/jwt"
	knowledgeHandler "ReelSage/internal/modules/knowledge/interface/http"
	"ReelSage/pkg/ssl"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewEngine 组装路由。依赖全部显式传入，不搞 init() 全局变量。
func NewEngine(
	conf *config.Config,
	healthH *knowledgeHandler.HealthHandler,
	queryH *knowledgeHandler.QueryHandler,
	updateH *knowledgeHandler.UpdateHandler,
) *gin.Engine {
	ge := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	ge.Use(cors.New(corsConfig))
	ge.Use(ssl.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port))

	ge.GET("/", healthH.Health)

	// 配了 JWT key 才开启鉴权，本地起服务不强制
	group := ge.Group("/")
	if strings.TrimSpace(conf.JwtConfig.Key) != "" {
		group.Use(jwtMiddleware.Auth())
	}
	group.POST("/query", queryH.Query)
	group.POST("/update", updateH.Update)

	return ge
}
