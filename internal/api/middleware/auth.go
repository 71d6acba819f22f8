package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"skillbridge/backend/internal/model"
	"skillbridge/backend/pkg/jwt"
	"skillbridge/backend/pkg/response"
)

// CallerKey gin.Context 中调用方身份的键
const CallerKey = "caller"

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证 Access Token，
// 角色在此处解析一次，之后以 model.Caller 形式向下传递
func JWTAuth(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(c, 10002, "Token 无效或已过期")
			c.Abort()
			return
		}

		if claims.TokenType != jwt.TokenTypeAccess {
			response.Unauthorized(c, 10002, "Token 类型无效")
			c.Abort()
			return
		}

		role, err := model.ParseRole(claims.Role)
		if err != nil || claims.UserID == "" {
			response.Unauthorized(c, 10002, "Token 身份信息无效")
			c.Abort()
			return
		}

		c.Set(CallerKey, model.Caller{UserID: claims.UserID, Role: role})
		c.Next()
	}
}

// RoleAuth 角色权限中间件
// 检查当前用户是否具有指定角色之一
func RoleAuth(allowedRoles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(CallerKey)
		caller, ok := v.(model.Caller)
		if !exists || !ok {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		for _, r := range allowedRoles {
			if caller.Role == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "无权限访问")
		c.Abort()
	}
}
