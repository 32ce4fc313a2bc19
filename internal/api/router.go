package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"originmint/internal/config"
)

// NewRouter 注册全部路由
func NewRouter(cfg config.Config, h *HTTPHandler) *gin.Engine {
	r := gin.New()

	// 添加中间件
	r.Use(LoggingMiddleware())
	r.Use(cors.New(corsConfig(cfg.FrontendURL)))
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)
	r.GET("/images/:filename", h.ServeImage)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}

	protected := r.Group("")
	protected.Use(h.APIKeyMiddleware())
	protected.POST("/generate", h.Generate)
	protected.POST("/upload/ipfs", h.UploadIPFS)

	apiGroup := r.Group("/api")
	apiGroup.POST("/rep", h.Rep)
	// EventSource 无法携带自定义头，进度流只按 client_id 订阅
	apiGroup.GET("/mint/events", h.StreamMintEvents)

	protectedAPI := apiGroup.Group("")
	protectedAPI.Use(h.APIKeyMiddleware())
	protectedAPI.POST("/mint/tx", h.MintTx)
	protectedAPI.POST("/mint", h.Mint)
	protectedAPI.GET("/relay-records", h.ListRelayRecords)

	return r
}

// corsConfig 只允许 FRONTEND_URL 跨域并携带凭证
func corsConfig(frontendURL string) cors.Config {
	origins := make([]string, 0, 2)
	for _, origin := range strings.Split(frontendURL, ",") {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = append(origins, "http://localhost:3000")
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}
