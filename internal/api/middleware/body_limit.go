package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"skillbridge/backend/pkg/response"
)

// BodyLimit 请求体大小限制中间件
// 声明长度超限时直接拒绝；未声明长度时由 MaxBytesReader 在读取阶段截断，
// 绑定失败后由 Handler 映射为 413
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
