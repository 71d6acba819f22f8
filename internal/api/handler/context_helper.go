package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"skillbridge/backend/internal/api/middleware"
	"skillbridge/backend/internal/model"
	pkgerrors "skillbridge/backend/pkg/errors"
	"skillbridge/backend/pkg/response"
	"skillbridge/backend/pkg/validator"
)

// MustGetCaller 从 Gin 上下文中安全提取调用方身份。
// 如果 JWT 中间件未正确注入，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetCaller(c *gin.Context) (model.Caller, bool) {
	v, exists := c.Get(middleware.CallerKey)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return model.Caller{}, false
	}
	caller, ok := v.(model.Caller)
	if !ok || caller.UserID == "" {
		response.Unauthorized(c, 10002, "未认证")
		return model.Caller{}, false
	}
	return caller, true
}

// bindJSON 绑定请求体，失败时写入 400（超限时 413）
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

// bindQuery 绑定查询参数，失败时写入 400
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		writeBindError(c, err)
		return false
	}
	return true
}

func writeBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	if details := validator.Describe(err); details != "" {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", details)
		return
	}
	response.BadRequest(c, 10001, "请求格式错误")
}

// writeKindError 按错误分类兜底映射状态码
// 未分类错误记入 c.Errors，由日志中间件输出
func writeKindError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrValidation):
		response.BadRequest(c, 10001, err.Error())
	case errors.Is(err, pkgerrors.ErrAuthorization):
		response.Forbidden(c, 10003, err.Error())
	case errors.Is(err, pkgerrors.ErrNotFound):
		response.NotFound(c, 10006, err.Error())
	case errors.Is(err, pkgerrors.ErrConflict), errors.Is(err, pkgerrors.ErrState):
		response.Conflict(c, 10007, err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
