package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"skillbridge/backend/internal/dto"
	"skillbridge/backend/internal/service"
	"skillbridge/backend/pkg/response"
)

// NotificationHandler 站内通知 HTTP 处理器
type NotificationHandler struct {
	notificationSvc service.NotificationService
}

// NewNotificationHandler 创建 NotificationHandler
func NewNotificationHandler(notificationSvc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationSvc: notificationSvc}
}

// List 我的通知
// GET /api/v1/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.NotificationListRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, unread, err := h.notificationSvc.List(c.Request.Context(), caller.UserID, &req)
	if err != nil {
		h.handleNotificationError(c, err)
		return
	}

	page := response.NewPageData(list, total, req.GetPage(), req.GetPageSize())
	response.OK(c, gin.H{
		"list":         page.List,
		"pagination":   page.Pagination,
		"unread_count": unread,
	})
}

// MarkRead 标记单条已读
// PUT /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	if err := h.notificationSvc.MarkRead(c.Request.Context(), caller.UserID, c.Param("id")); err != nil {
		h.handleNotificationError(c, err)
		return
	}

	response.OK(c, nil)
}

// MarkAllRead 全部标记已读
// PUT /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	n, err := h.notificationSvc.MarkAllRead(c.Request.Context(), caller.UserID)
	if err != nil {
		h.handleNotificationError(c, err)
		return
	}

	response.OK(c, gin.H{"updated": n})
}

func (h *NotificationHandler) handleNotificationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotificationNotFound):
		response.NotFound(c, 22001, "通知不存在")
	default:
		writeKindError(c, err)
	}
}
