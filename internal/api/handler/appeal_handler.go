package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"skillbridge/backend/internal/dto"
	"skillbridge/backend/internal/service"
	"skillbridge/backend/pkg/response"
)

// AppealHandler 考勤申诉 HTTP 处理器
type AppealHandler struct {
	appealSvc service.AppealService
}

// NewAppealHandler 创建 AppealHandler
func NewAppealHandler(appealSvc service.AppealService) *AppealHandler {
	return &AppealHandler{appealSvc: appealSvc}
}

// Submit 候选人提交申诉
// POST /api/v1/candidate/attendance/:attendanceId/appeal
func (h *AppealHandler) Submit(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.SubmitAppealRequest
	if !bindJSON(c, &req) {
		return
	}

	appeal, err := h.appealSvc.Submit(c.Request.Context(), caller, c.Param("attendanceId"), &req)
	if err != nil {
		h.handleAppealError(c, err)
		return
	}

	response.Created(c, appeal)
}

// ListMine 候选人查看本人申诉
// GET /api/v1/candidate/attendance/appeals
func (h *AppealHandler) ListMine(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.AppealListRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, err := h.appealSvc.ListCandidate(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleAppealError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Cancel 候选人撤回待审核申诉
// DELETE /api/v1/candidate/attendance/appeals/:appealId
func (h *AppealHandler) Cancel(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	appeal, err := h.appealSvc.Cancel(c.Request.Context(), caller, c.Param("appealId"))
	if err != nil {
		h.handleAppealError(c, err)
		return
	}

	response.OK(c, appeal)
}

// ListTrainer 培训师查看所授课程的申诉
// GET /api/v1/trainer/attendance/appeals
func (h *AppealHandler) ListTrainer(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.AppealListRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, err := h.appealSvc.ListTrainer(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleAppealError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Review 培训师审核申诉
// PUT /api/v1/trainer/attendance/appeals/:appealId/review
func (h *AppealHandler) Review(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.ReviewAppealRequest
	if !bindJSON(c, &req) {
		return
	}

	appeal, err := h.appealSvc.Review(c.Request.Context(), caller, c.Param("appealId"), &req)
	if err != nil {
		h.handleAppealError(c, err)
		return
	}

	response.OK(c, appeal)
}

// ListAdmin 管理员查看全部申诉及统计
// GET /api/v1/admin/attendance/appeals
func (h *AppealHandler) ListAdmin(c *gin.Context) {
	var req dto.AppealListRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, err := h.appealSvc.ListAll(c.Request.Context(), &req)
	if err != nil {
		h.handleAppealError(c, err)
		return
	}

	stats, err := h.appealSvc.Statistics(c.Request.Context(), req.CourseID)
	if err != nil {
		h.handleAppealError(c, err)
		return
	}

	response.OK(c, dto.AdminAppealListResponse{
		PageData:   response.NewPageData(list, total, req.GetPage(), req.GetPageSize()),
		Statistics: stats,
	})
}

// Override 管理员改判
// PUT /api/v1/admin/attendance/appeals/:appealId/override
func (h *AppealHandler) Override(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.OverrideAppealRequest
	if !bindJSON(c, &req) {
		return
	}

	appeal, err := h.appealSvc.Override(c.Request.Context(), caller, c.Param("appealId"), &req)
	if err != nil {
		h.handleAppealError(c, err)
		return
	}

	response.OK(c, appeal)
}

// Get 查看申诉详情（含处理记录），可见性在 Service 层校验
// GET /api/v1/attendance/appeals/:appealId
func (h *AppealHandler) Get(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	detail, err := h.appealSvc.Get(c.Request.Context(), caller, c.Param("appealId"))
	if err != nil {
		h.handleAppealError(c, err)
		return
	}

	response.OK(c, detail)
}

func (h *AppealHandler) handleAppealError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAttendanceNotFound):
		response.NotFound(c, 20001, "考勤记录不存在")
	case errors.Is(err, service.ErrAppealNotFound):
		response.NotFound(c, 20002, "申诉不存在")
	case errors.Is(err, service.ErrAppealReasonTooShort),
		errors.Is(err, service.ErrAppealReasonTooLong):
		response.BadRequest(c, 20003, err.Error())
	case errors.Is(err, service.ErrAttendanceNotAppealable):
		response.BadRequest(c, 20004, "仅缺勤或迟到记录可以申诉")
	case errors.Is(err, service.ErrRequestedStatusInvalid):
		response.BadRequest(c, 20005, err.Error())
	case errors.Is(err, service.ErrAppealCommentsRequired):
		response.BadRequest(c, 20006, err.Error())
	case errors.Is(err, service.ErrAppealActiveExists):
		response.Conflict(c, 20007, "该考勤记录已有进行中的申诉")
	case errors.Is(err, service.ErrAppealNotPending):
		response.Conflict(c, 20008, "申诉已处理，无法再次操作")
	case errors.Is(err, service.ErrAppealNotDecided):
		response.Conflict(c, 20009, "仅已审核的申诉可以改判")
	case errors.Is(err, service.ErrAppealConcurrentUpdate):
		response.Error(c, http.StatusConflict, 20010, "申诉已被其他操作修改，请刷新后重试")
	default:
		writeKindError(c, err)
	}
}
