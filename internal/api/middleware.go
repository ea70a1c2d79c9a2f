package api

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"time"

	"github.com/evsong/Evclaude-proxy/internal/config"
	"github.com/evsong/Evclaude-proxy/internal/core"
	"github.com/evsong/Evclaude-proxy/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ContextKeyAPIKey 认证通过后存入 gin.Context 的密钥记录
const ContextKeyAPIKey = "api_key_record"

// clientKey 从请求头提取客户端密钥，x-api-key 优先，其次 Authorization Bearer
func clientKey(c *gin.Context) string {
	if key := c.GetHeader("x-api-key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// keyIDFromContext 取认证通过的密钥 ID，未认证请求返回空串
func keyIDFromContext(c *gin.Context) string {
	if v, ok := c.Get(ContextKeyAPIKey); ok {
		if rec, ok := v.(*model.APIKeyRecord); ok {
			return rec.ID
		}
	}
	return ""
}

// ClientAuthMiddleware 客户端密钥认证
// 缺少密钥 401，密钥未知或被禁用 403；两种失败都计入端点统计（无密钥归属）。
func ClientAuthMiddleware(keys *core.KeyStore, stats *core.Stats) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := clientKey(c)
		if secret == "" {
			stats.Record(c.Request.URL.Path, false, "", 0)
			c.JSON(401, model.ErrorResponse{
				Error: model.ErrorDetail{
					Message: "Missing API key",
					Type:    "authentication_error",
					Code:    "missing_api_key",
				},
			})
			c.Abort()
			return
		}

		rec, ok := keys.Validate(secret)
		if !ok {
			stats.Record(c.Request.URL.Path, false, "", 0)
			c.JSON(403, model.ErrorResponse{
				Error: model.ErrorDetail{
					Message: "Invalid or disabled API key",
					Type:    "authorization_error",
					Code:    "invalid_api_key",
				},
			})
			c.Abort()
			return
		}

		c.Set(ContextKeyAPIKey, rec)
		c.Next()
	}
}

// secureCompare 常数时间字符串比较
func secureCompare(a, b string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// BasicAuthMiddleware 管理后台 Basic Auth
func BasicAuthMiddleware(user, pass string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Basic ") {
			c.Header("WWW-Authenticate", `Basic realm="Admin"`)
			c.String(401, "Authentication required")
			c.Abort()
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
		if err != nil {
			c.Header("WWW-Authenticate", `Basic realm="Admin"`)
			c.String(401, "Invalid credentials")
			c.Abort()
			return
		}

		name, secret, found := strings.Cut(string(decoded), ":")
		if !found || !secureCompare(name, user) || !secureCompare(secret, pass) {
			c.Header("WWW-Authenticate", `Basic realm="Admin"`)
			c.String(401, "Invalid credentials")
			c.Abort()
			return
		}

		c.Next()
	}
}

// CORSMiddleware CORS 中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key, anthropic-version")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// RecoveryMiddleware 恢复中间件
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logrus.Errorf("panic recovered: %v", err)
				if !c.Writer.Written() {
					c.JSON(500, model.ErrorResponse{
						Error: model.ErrorDetail{
							Message: "Internal server error",
							Type:    "internal_error",
						},
					})
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// AccessLogMiddleware 请求访问日志
func AccessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logrus.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"method":  c.Request.Method,
			"path":    path,
		}).Info("http request")
	}
}

// SetupRouter 设置路由
// /v1/messages 走密钥认证 + 拦截管线，/admin 走 Basic Auth，
// 其余任意路径无条件透传上游。
func SetupRouter(cfg *config.Config, proxy *ProxyHandler, admin *AdminHandler, keys *core.KeyStore, stats *core.Stats) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(RecoveryMiddleware())
	r.Use(AccessLogMiddleware())
	r.Use(CORSMiddleware())

	r.POST("/v1/messages", ClientAuthMiddleware(keys, stats), proxy.Messages)

	adminGroup := r.Group("/admin", BasicAuthMiddleware(cfg.Admin.User, cfg.Admin.Pass))
	{
		adminGroup.GET("", admin.Dashboard)
		adminGroup.GET("/stats", admin.Dashboard)

		adminAPI := adminGroup.Group("/api")
		{
			adminAPI.GET("/stats", admin.GetStats)

			adminAPI.GET("/keys", admin.ListKeys)
			adminAPI.POST("/keys", admin.CreateKey)
			adminAPI.PATCH("/keys/:id", admin.UpdateKey)
			adminAPI.DELETE("/keys/:id", admin.DeleteKey)

			adminAPI.GET("/presets", admin.ListPresets)
			adminAPI.POST("/presets", admin.CreatePreset)
			adminAPI.DELETE("/presets/:index", admin.DeletePreset)

			adminAPI.GET("/logs", admin.GetLogs)
		}
	}

	// 其余路径保持原方法透传上游，不做密钥校验
	r.NoRoute(proxy.Forward)

	return r
}
