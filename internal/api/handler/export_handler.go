package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"skillbridge/backend/internal/dto"
	"skillbridge/backend/internal/service"
	"skillbridge/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器（申诉 Excel、考勤日历）
type ExportHandler struct {
	exportSvc   service.ExportService
	calendarSvc service.CalendarService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService, calendarSvc service.CalendarService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc, calendarSvc: calendarSvc}
}

// ExportAppeals 导出申诉列表
// GET /api/v1/admin/attendance/appeals/export?status=&course_id=
func (h *ExportHandler) ExportAppeals(c *gin.Context) {
	var req dto.AppealExportRequest
	if !bindQuery(c, &req) {
		return
	}

	buf, filename, err := h.exportSvc.ExportAppeals(c.Request.Context(), &req)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// CandidateCalendar 导出本人考勤日历
// GET /api/v1/candidate/attendance/calendar.ics
func (h *ExportHandler) CandidateCalendar(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	ics, err := h.calendarSvc.CandidateCalendar(c.Request.Context(), caller)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="attendance.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics))
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportGenerateFail):
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, 23001, "导出文件生成失败")
	default:
		writeKindError(c, err)
	}
}
