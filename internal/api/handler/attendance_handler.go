package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"skillbridge/backend/internal/dto"
	"skillbridge/backend/internal/service"
	"skillbridge/backend/pkg/response"
)

// AttendanceHandler 考勤 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// Mark 登记考勤
// POST /api/v1/trainer/attendance
func (h *AttendanceHandler) Mark(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.MarkAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := h.attendanceSvc.Mark(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.Created(c, record)
}

// Update 更正考勤
// PUT /api/v1/trainer/attendance/:attendanceId
func (h *AttendanceHandler) Update(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.UpdateAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := h.attendanceSvc.Update(c.Request.Context(), caller, c.Param("attendanceId"), &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, record)
}

// ListCourse 查看课程考勤
// GET /api/v1/trainer/courses/:courseId/attendance
func (h *AttendanceHandler) ListCourse(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CourseAttendanceRequest
	if !bindQuery(c, &req) {
		return
	}

	list, err := h.attendanceSvc.ListCourse(c.Request.Context(), caller, c.Param("courseId"), req.SessionNumber)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ListMine 候选人查看本人考勤
// GET /api/v1/candidate/attendance
func (h *AttendanceHandler) ListMine(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CandidateAttendanceRequest
	if !bindQuery(c, &req) {
		return
	}

	list, err := h.attendanceSvc.ListCandidate(c.Request.Context(), caller, req.CourseID)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

func (h *AttendanceHandler) handleAttendanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEnrollmentNotFound):
		response.NotFound(c, 21001, "选课记录不存在")
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 21002, "课程不存在")
	case errors.Is(err, service.ErrAttendanceNotFound):
		response.NotFound(c, 21003, "考勤记录不存在")
	case errors.Is(err, service.ErrAttendanceExists):
		response.Conflict(c, 21004, "该课次考勤已登记")
	case errors.Is(err, service.ErrEnrollmentInactive):
		response.Conflict(c, 21005, "选课已结束或已退课")
	case errors.Is(err, service.ErrAttendanceConcurrent):
		response.Conflict(c, 21006, "考勤记录已被其他操作修改，请刷新后重试")
	case errors.Is(err, service.ErrNotCourseTrainer):
		response.Forbidden(c, 21007, "只能管理本人授课课程的考勤")
	default:
		writeKindError(c, err)
	}
}
