package dto

import "skillbridge/backend/pkg/response"

// ── 考勤申诉模块 DTO ──

// SubmitAppealRequest 候选人提交申诉请求
// reason 的最小长度按去除首尾空白后的字符数在业务层校验
type SubmitAppealRequest struct {
	Reason              string   `json:"reason"               binding:"required,max=1000"`
	RequestedStatus     *string  `json:"requested_status"     binding:"omitempty,attendance_status"`
	SupportingDocuments []string `json:"supporting_documents" binding:"omitempty,dive,required,max=500"`
}

// ReviewAppealRequest 培训师审核请求
type ReviewAppealRequest struct {
	Decision         string  `json:"decision"          binding:"required,appeal_decision"`
	ReviewerComments string  `json:"reviewer_comments" binding:"max=1000"`
	NewStatus        *string `json:"new_status"        binding:"omitempty,attendance_status"`
}

// OverrideAppealRequest 管理员改判请求
type OverrideAppealRequest struct {
	NewDecision string  `json:"new_decision" binding:"required,override_decision"`
	NewStatus   *string `json:"new_status"   binding:"omitempty,attendance_status"`
	Comments    string  `json:"comments"     binding:"max=1000"`
}

// AppealListRequest 申诉列表查询参数
type AppealListRequest struct {
	PaginationRequest
	Status   string `form:"status"    binding:"omitempty,oneof=PENDING APPROVED REJECTED CANCELLED"`
	CourseID string `form:"course_id" binding:"omitempty,uuid"`
}

// AppealExportRequest 申诉导出查询参数
type AppealExportRequest struct {
	Status   string `form:"status"    binding:"omitempty,oneof=PENDING APPROVED REJECTED CANCELLED"`
	CourseID string `form:"course_id" binding:"omitempty,uuid"`
}

// AppealResponse 申诉信息响应
type AppealResponse struct {
	ID                  string       `json:"id"`
	AttendanceID        string       `json:"attendance_id"`
	Candidate           UserBrief    `json:"candidate"`
	Course              *CourseBrief `json:"course,omitempty"`
	SessionDate         string       `json:"session_date,omitempty"`
	SessionNumber       int          `json:"session_number,omitempty"`
	AttendanceStatus    string       `json:"attendance_status,omitempty"` // 考勤记录当前状态
	OriginalStatus      string       `json:"original_status"`
	RequestedStatus     *string      `json:"requested_status,omitempty"`
	Reason              string       `json:"reason"`
	SupportingDocuments []string     `json:"supporting_documents"`
	Status              string       `json:"status"`
	ReviewedBy          *string      `json:"reviewed_by,omitempty"`
	ReviewedAt          *string      `json:"reviewed_at,omitempty"`
	ReviewerComments    string       `json:"reviewer_comments,omitempty"`
	OverriddenBy        *string      `json:"overridden_by,omitempty"`
	OverriddenAt        *string      `json:"overridden_at,omitempty"`
	CreatedAt           string       `json:"created_at"`
	UpdatedAt           string       `json:"updated_at"`
}

// AppealActionResponse 申诉操作日志
type AppealActionResponse struct {
	ID               string  `json:"id"`
	Action           string  `json:"action"`
	FromStatus       *string `json:"from_status,omitempty"`
	ToStatus         string  `json:"to_status"`
	AttendanceBefore *string `json:"attendance_before,omitempty"`
	AttendanceAfter  *string `json:"attendance_after,omitempty"`
	OperatorID       string  `json:"operator_id"`
	Comments         string  `json:"comments,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// AppealDetailResponse 申诉详情（含操作日志）
type AppealDetailResponse struct {
	AppealResponse
	Actions []AppealActionResponse `json:"actions"`
}

// AppealStatistics 申诉数量统计
type AppealStatistics struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Approved  int64 `json:"approved"`
	Rejected  int64 `json:"rejected"`
	Cancelled int64 `json:"cancelled"`
}

// AdminAppealListResponse 管理员申诉列表：分页数据附带统计
type AdminAppealListResponse struct {
	response.PageData
	Statistics *AppealStatistics `json:"statistics"`
}
