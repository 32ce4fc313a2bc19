package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"originmint/internal/auth"
)

const (
	invalidAPIKeyMessage  = "Unauthorized: Invalid API Key"
	walletMismatchMessage = "wallet does not match the authenticated session"

	identityKey = "identity"
)

// APIKeyMiddleware 校验 authorization 头，失败返回 403 且不进入后续处理。
// 通过后把调用方身份放入上下文。
func (h *HTTPHandler) APIKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			id auth.Identity
			ok bool
		)
		if h.authenticator != nil {
			id, ok = h.authenticator.Check(c.GetHeader("Authorization"))
		}
		if !ok {
			logrus.WithFields(logrus.Fields{
				"path":      c.Request.URL.Path,
				"client_ip": c.ClientIP(),
			}).Warn("api_key_rejected")
			c.AbortWithStatusJSON(http.StatusForbidden, LegacyError{
				APIError: APIError{Code: ErrCodeForbidden, Message: invalidAPIKeyMessage},
				Error:    invalidAPIKeyMessage,
			})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// requireWallet 会话绑定了钱包时，请求中的钱包必须与之一致，否则返回 403
func requireWallet(c *gin.Context, wallet string) bool {
	id, _ := c.Get(identityKey)
	identity, _ := id.(auth.Identity)
	if identity.BoundTo(wallet) {
		return true
	}
	logrus.WithFields(logrus.Fields{
		"path":           c.Request.URL.Path,
		"session_wallet": identity.Wallet,
		"wallet":         wallet,
	}).Warn("wallet_mismatch_rejected")
	Forbidden(c, walletMismatchMessage)
	return false
}

// LoggingMiddleware 日志记录中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 处理请求
		c.Next()
		// 记录请求结束
		duration := time.Since(start)
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
