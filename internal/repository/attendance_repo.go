package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"skillbridge/backend/internal/model"
	pkgerrors "skillbridge/backend/pkg/errors"
)

// AttendanceFilter 考勤列表过滤条件
type AttendanceFilter struct {
	CandidateID   string
	CourseID      string
	SessionNumber *int
}

// AttendanceRepository 考勤记录数据访问接口
type AttendanceRepository interface {
	Create(ctx context.Context, record *model.AttendanceRecord) error
	// GetByID 查询考勤记录（含 Enrollment 与 Course）
	GetByID(ctx context.Context, id string) (*model.AttendanceRecord, error)
	// GetByIDForUpdate SELECT ... FOR UPDATE 锁定考勤行，必须在事务连接上调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.AttendanceRecord, error)
	// UpdateStatus 乐观锁更新考勤状态与备注
	UpdateStatus(ctx context.Context, record *model.AttendanceRecord) error
	List(ctx context.Context, filter AttendanceFilter) ([]model.AttendanceRecord, error)
}

type attendanceRepo struct {
	db *gorm.DB
}

// NewAttendanceRepo 创建 AttendanceRepository 实例
func NewAttendanceRepo(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

func (r *attendanceRepo) Create(ctx context.Context, record *model.AttendanceRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *attendanceRepo) GetByID(ctx context.Context, id string) (*model.AttendanceRecord, error) {
	var record model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Preload("Enrollment").
		Preload("Enrollment.Course").
		Where("attendance_id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *attendanceRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.AttendanceRecord, error) {
	var record model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("attendance_id = ?", id).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	// 关联单独加载，避免 FOR UPDATE 作用到预加载查询
	var enrollment model.Enrollment
	if err := r.db.WithContext(ctx).
		Preload("Course").
		Where("enrollment_id = ?", record.EnrollmentID).
		First(&enrollment).Error; err != nil {
		return nil, err
	}
	record.Enrollment = &enrollment
	return &record, nil
}

func (r *attendanceRepo) UpdateStatus(ctx context.Context, record *model.AttendanceRecord) error {
	oldVersion := record.Version
	result := r.db.WithContext(ctx).
		Model(&model.AttendanceRecord{}).
		Where("attendance_id = ? AND version = ?", record.AttendanceID, oldVersion).
		Updates(map[string]interface{}{
			"status":     record.Status,
			"notes":      record.Notes,
			"updated_by": record.UpdatedBy,
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	record.Version = oldVersion + 1
	return nil
}

func (r *attendanceRepo) List(ctx context.Context, filter AttendanceFilter) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord

	db := r.db.WithContext(ctx).
		Model(&model.AttendanceRecord{}).
		Joins("JOIN enrollments e ON e.enrollment_id = attendance_records.enrollment_id")

	if filter.CandidateID != "" {
		db = db.Where("e.candidate_id = ?", filter.CandidateID)
	}
	if filter.CourseID != "" {
		db = db.Where("e.course_id = ?", filter.CourseID)
	}
	if filter.SessionNumber != nil {
		db = db.Where("attendance_records.session_number = ?", *filter.SessionNumber)
	}

	err := db.
		Preload("Enrollment").
		Preload("Enrollment.Course").
		Preload("Enrollment.Candidate").
		Order("attendance_records.session_date ASC, attendance_records.session_number ASC").
		Find(&records).Error
	return records, err
}
