package model

import "time"

// AttendanceStatus 考勤状态
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceExcused AttendanceStatus = "EXCUSED"
)

// Valid 是否为合法考勤状态
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// Appealable 仅缺勤与迟到可申诉
func (s AttendanceStatus) Appealable() bool {
	return s == AttendanceAbsent || s == AttendanceLate
}

// AttendanceRecord 考勤记录表：对应 attendance_records
type AttendanceRecord struct {
	AttendanceID  string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"attendance_id"`
	EnrollmentID  string           `gorm:"type:uuid;not null"                             json:"enrollment_id"`
	SessionDate   time.Time        `gorm:"type:date;not null"                             json:"session_date"`
	SessionNumber int              `gorm:"not null"                                       json:"session_number"`
	Status        AttendanceStatus `gorm:"type:varchar(10);not null"                      json:"status"`
	MarkedBy      string           `gorm:"type:uuid;not null"                             json:"marked_by"`
	Notes         string           `gorm:"type:varchar(500)"                              json:"notes,omitempty"`
	VersionedModel

	// 关联
	Enrollment *Enrollment `gorm:"foreignKey:EnrollmentID;references:EnrollmentID" json:"enrollment,omitempty"`
}

// TableName 指定表名
func (AttendanceRecord) TableName() string { return "attendance_records" }
