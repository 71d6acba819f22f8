package model

import (
	"time"

	"gorm.io/datatypes"
)

// AppealStatus 申诉状态
type AppealStatus string

const (
	AppealPending   AppealStatus = "PENDING"
	AppealApproved  AppealStatus = "APPROVED"
	AppealRejected  AppealStatus = "REJECTED"
	AppealCancelled AppealStatus = "CANCELLED"
)

// Valid 是否为合法申诉状态
func (s AppealStatus) Valid() bool {
	switch s {
	case AppealPending, AppealApproved, AppealRejected, AppealCancelled:
		return true
	}
	return false
}

// Active PENDING 与 APPROVED 占用考勤记录，同一记录至多一条
func (s AppealStatus) Active() bool {
	return s == AppealPending || s == AppealApproved
}

// Decided 已由培训师或管理员作出决定（可被管理员改判）
func (s AppealStatus) Decided() bool {
	return s == AppealApproved || s == AppealRejected
}

// ActiveAppealStatuses 占用考勤记录的申诉状态
var ActiveAppealStatuses = []AppealStatus{AppealPending, AppealApproved}

// ReviewDecision 培训师审核结论
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "APPROVE"
	DecisionReject  ReviewDecision = "REJECT"
)

// AttendanceAppeal 考勤申诉表：对应 attendance_appeals
type AttendanceAppeal struct {
	AppealID            string                      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"appeal_id"`
	AttendanceID        string                      `gorm:"type:uuid;not null"                             json:"attendance_id"`
	CandidateID         string                      `gorm:"type:uuid;not null"                             json:"candidate_id"`
	OriginalStatus      AttendanceStatus            `gorm:"type:varchar(10);not null;<-:create"            json:"original_status"` // 提交时快照，仅创建时写入
	RequestedStatus     *AttendanceStatus           `gorm:"type:varchar(10)"                               json:"requested_status,omitempty"`
	Reason              string                      `gorm:"type:varchar(1000);not null"                    json:"reason"`
	SupportingDocuments datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'"               json:"supporting_documents"`
	Status              AppealStatus                `gorm:"type:varchar(10);not null;default:'PENDING'"    json:"status"`
	ReviewedBy          *string                     `gorm:"type:uuid"                                      json:"reviewed_by,omitempty"`
	ReviewedAt          *time.Time                  `json:"reviewed_at,omitempty"`
	ReviewerComments    string                      `gorm:"type:varchar(1000)"                             json:"reviewer_comments,omitempty"`
	OverriddenBy        *string                     `gorm:"type:uuid"                                      json:"overridden_by,omitempty"`
	OverriddenAt        *time.Time                  `json:"overridden_at,omitempty"`
	LastRemindedAt      *time.Time                  `json:"last_reminded_at,omitempty"`
	VersionedModel

	// 关联
	Attendance *AttendanceRecord `gorm:"foreignKey:AttendanceID;references:AttendanceID" json:"attendance,omitempty"`
	Candidate  *User             `gorm:"foreignKey:CandidateID;references:UserID"        json:"candidate,omitempty"`
}

// TableName 指定表名
func (AttendanceAppeal) TableName() string { return "attendance_appeals" }

// AppealAction 申诉操作类型
type AppealAction string

const (
	ActionSubmit   AppealAction = "submit"
	ActionReview   AppealAction = "review"
	ActionCancel   AppealAction = "cancel"
	ActionOverride AppealAction = "override"
)

// AppealActionLog 申诉操作日志表：对应 appeal_action_logs（纯审计日志，只追加）
type AppealActionLog struct {
	ActionLogID      string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"action_log_id"`
	AppealID         string            `gorm:"type:uuid;not null"                             json:"appeal_id"`
	Action           AppealAction      `gorm:"type:varchar(20);not null"                      json:"action"`
	FromStatus       *AppealStatus     `gorm:"type:varchar(10)"                               json:"from_status,omitempty"`
	ToStatus         AppealStatus      `gorm:"type:varchar(10);not null"                      json:"to_status"`
	AttendanceBefore *AttendanceStatus `gorm:"type:varchar(10)"                               json:"attendance_before,omitempty"`
	AttendanceAfter  *AttendanceStatus `gorm:"type:varchar(10)"                               json:"attendance_after,omitempty"`
	OperatorID       string            `gorm:"type:uuid;not null"                             json:"operator_id"`
	Comments         string            `gorm:"type:varchar(1000)"                             json:"comments,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (AppealActionLog) TableName() string { return "appeal_action_logs" }
