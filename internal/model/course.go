package model

// Course 课程表：对应 courses
type Course struct {
	CourseID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"course_id"`
	Code      string `gorm:"type:varchar(50);not null"                      json:"code"`
	Title     string `gorm:"type:varchar(200);not null"                     json:"title"`
	TrainerID string `gorm:"type:uuid;not null"                             json:"trainer_id"`
	VersionedModel

	// 关联
	Trainer *User `gorm:"foreignKey:TrainerID;references:UserID" json:"trainer,omitempty"`
}

// TableName 指定表名
func (Course) TableName() string { return "courses" }

// Enrollment 选课表：对应 enrollments（候选人 × 课程）
type Enrollment struct {
	EnrollmentID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"enrollment_id"`
	CandidateID  string `gorm:"type:uuid;not null"                             json:"candidate_id"`
	CourseID     string `gorm:"type:uuid;not null"                             json:"course_id"`
	Status       string `gorm:"type:varchar(20);not null;default:'active'"     json:"status"` // active | completed | withdrawn
	VersionedModel

	// 关联
	Candidate *User   `gorm:"foreignKey:CandidateID;references:UserID" json:"candidate,omitempty"`
	Course    *Course `gorm:"foreignKey:CourseID;references:CourseID"  json:"course,omitempty"`
}

// TableName 指定表名
func (Enrollment) TableName() string { return "enrollments" }
