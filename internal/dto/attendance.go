package dto

// ── 考勤模块 DTO ──

// MarkAttendanceRequest 培训师登记考勤请求
type MarkAttendanceRequest struct {
	EnrollmentID  string `json:"enrollment_id"  binding:"required,uuid"`
	SessionNumber int    `json:"session_number" binding:"required,min=1"`
	SessionDate   string `json:"session_date"   binding:"required,datetime=2006-01-02"`
	Status        string `json:"status"         binding:"required,attendance_status"`
	Notes         string `json:"notes"          binding:"max=500"`
}

// UpdateAttendanceRequest 更正考勤请求
type UpdateAttendanceRequest struct {
	Status string  `json:"status" binding:"required,attendance_status"`
	Notes  *string `json:"notes"  binding:"omitempty,max=500"`
}

// CandidateAttendanceRequest 候选人考勤查询参数
type CandidateAttendanceRequest struct {
	CourseID string `form:"course_id" binding:"omitempty,uuid"`
}

// CourseAttendanceRequest 课程考勤查询参数
type CourseAttendanceRequest struct {
	SessionNumber *int `form:"session_number" binding:"omitempty,min=1"`
}

// AttendanceResponse 考勤记录响应
type AttendanceResponse struct {
	ID            string       `json:"id"`
	EnrollmentID  string       `json:"enrollment_id"`
	Candidate     *UserBrief   `json:"candidate,omitempty"`
	Course        *CourseBrief `json:"course,omitempty"`
	SessionDate   string       `json:"session_date"`
	SessionNumber int          `json:"session_number"`
	Status        string       `json:"status"`
	MarkedBy      string       `json:"marked_by"`
	Notes         string       `json:"notes,omitempty"`
	Version       int          `json:"version"`
	UpdatedAt     string       `json:"updated_at"`
}
