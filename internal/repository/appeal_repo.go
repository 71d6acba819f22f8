package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"skillbridge/backend/internal/model"
	pkgerrors "skillbridge/backend/pkg/errors"
)

// AppealFilter 申诉列表过滤条件（空字段不过滤）
type AppealFilter struct {
	CandidateID string
	TrainerID   string
	CourseID    string
	Status      *model.AppealStatus
}

// AppealRepository 考勤申诉数据访问接口
type AppealRepository interface {
	Create(ctx context.Context, appeal *model.AttendanceAppeal) error
	// GetByID 查询申诉（含考勤记录、选课、课程、候选人）
	GetByID(ctx context.Context, id string) (*model.AttendanceAppeal, error)
	// GetByIDForUpdate 锁定申诉行并加载关联，必须在事务连接上调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.AttendanceAppeal, error)
	// FindActiveByAttendance 查询考勤记录上处于 PENDING/APPROVED 的申诉，excludeID 非空时排除该申诉
	FindActiveByAttendance(ctx context.Context, attendanceID, excludeID string) (*model.AttendanceAppeal, error)
	// UpdateDecision 乐观锁写入状态与审核字段
	UpdateDecision(ctx context.Context, appeal *model.AttendanceAppeal) error
	List(ctx context.Context, filter AppealFilter, offset, limit int) ([]model.AttendanceAppeal, int64, error)
	ListAll(ctx context.Context, filter AppealFilter) ([]model.AttendanceAppeal, error)
	CountByStatus(ctx context.Context, filter AppealFilter) (map[model.AppealStatus]int64, error)
	// ListStalePending 查询创建早于 before 且最近提醒早于 before（或从未提醒）的待审核申诉
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]model.AttendanceAppeal, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

type appealRepo struct {
	db *gorm.DB
}

// NewAppealRepo 创建 AppealRepository 实例
func NewAppealRepo(db *gorm.DB) AppealRepository {
	return &appealRepo{db: db}
}

func (r *appealRepo) Create(ctx context.Context, appeal *model.AttendanceAppeal) error {
	return r.db.WithContext(ctx).Create(appeal).Error
}

func (r *appealRepo) preloadAll(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Candidate").
		Preload("Attendance").
		Preload("Attendance.Enrollment").
		Preload("Attendance.Enrollment.Course")
}

func (r *appealRepo) GetByID(ctx context.Context, id string) (*model.AttendanceAppeal, error) {
	var appeal model.AttendanceAppeal
	err := r.preloadAll(r.db.WithContext(ctx)).
		Where("appeal_id = ?", id).
		First(&appeal).Error
	if err != nil {
		return nil, err
	}
	return &appeal, nil
}

func (r *appealRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.AttendanceAppeal, error) {
	var appeal model.AttendanceAppeal
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("appeal_id = ?", id).
		First(&appeal).Error
	if err != nil {
		return nil, err
	}

	var record model.AttendanceRecord
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("attendance_id = ?", appeal.AttendanceID).
		First(&record).Error; err != nil {
		return nil, err
	}
	var enrollment model.Enrollment
	if err := r.db.WithContext(ctx).
		Preload("Course").
		Where("enrollment_id = ?", record.EnrollmentID).
		First(&enrollment).Error; err != nil {
		return nil, err
	}
	record.Enrollment = &enrollment
	appeal.Attendance = &record
	return &appeal, nil
}

func (r *appealRepo) FindActiveByAttendance(ctx context.Context, attendanceID, excludeID string) (*model.AttendanceAppeal, error) {
	var appeal model.AttendanceAppeal
	db := r.db.WithContext(ctx).
		Where("attendance_id = ? AND status IN ?", attendanceID, model.ActiveAppealStatuses)
	if excludeID != "" {
		db = db.Where("appeal_id <> ?", excludeID)
	}
	if err := db.First(&appeal).Error; err != nil {
		return nil, err
	}
	return &appeal, nil
}

func (r *appealRepo) UpdateDecision(ctx context.Context, appeal *model.AttendanceAppeal) error {
	oldVersion := appeal.Version
	result := r.db.WithContext(ctx).
		Model(&model.AttendanceAppeal{}).
		Where("appeal_id = ? AND version = ?", appeal.AppealID, oldVersion).
		Updates(map[string]interface{}{
			"status":            appeal.Status,
			"reviewed_by":       appeal.ReviewedBy,
			"reviewed_at":       appeal.ReviewedAt,
			"reviewer_comments": appeal.ReviewerComments,
			"overridden_by":     appeal.OverriddenBy,
			"overridden_at":     appeal.OverriddenAt,
			"updated_by":        appeal.UpdatedBy,
			"version":           oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	appeal.Version = oldVersion + 1
	return nil
}

// scoped 按过滤条件拼接查询；按培训师/课程过滤需要连接考勤 → 选课 → 课程
func (r *appealRepo) scoped(ctx context.Context, filter AppealFilter) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&model.AttendanceAppeal{})

	if filter.TrainerID != "" || filter.CourseID != "" {
		db = db.
			Joins("JOIN attendance_records ar ON ar.attendance_id = attendance_appeals.attendance_id").
			Joins("JOIN enrollments e ON e.enrollment_id = ar.enrollment_id").
			Joins("JOIN courses c ON c.course_id = e.course_id")
		if filter.TrainerID != "" {
			db = db.Where("c.trainer_id = ?", filter.TrainerID)
		}
		if filter.CourseID != "" {
			db = db.Where("c.course_id = ?", filter.CourseID)
		}
	}
	if filter.CandidateID != "" {
		db = db.Where("attendance_appeals.candidate_id = ?", filter.CandidateID)
	}
	if filter.Status != nil {
		db = db.Where("attendance_appeals.status = ?", *filter.Status)
	}
	return db
}

func (r *appealRepo) List(ctx context.Context, filter AppealFilter, offset, limit int) ([]model.AttendanceAppeal, int64, error) {
	var appeals []model.AttendanceAppeal
	var total int64

	if err := r.scoped(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.preloadAll(r.scoped(ctx, filter)).
		Offset(offset).Limit(limit).
		Order("attendance_appeals.created_at DESC").
		Find(&appeals).Error
	return appeals, total, err
}

func (r *appealRepo) ListAll(ctx context.Context, filter AppealFilter) ([]model.AttendanceAppeal, error) {
	var appeals []model.AttendanceAppeal
	err := r.preloadAll(r.scoped(ctx, filter)).
		Order("attendance_appeals.created_at ASC").
		Find(&appeals).Error
	return appeals, err
}

func (r *appealRepo) CountByStatus(ctx context.Context, filter AppealFilter) (map[model.AppealStatus]int64, error) {
	type row struct {
		Status model.AppealStatus
		Total  int64
	}
	var rows []row

	err := r.scoped(ctx, filter).
		Select("attendance_appeals.status AS status, COUNT(*) AS total").
		Group("attendance_appeals.status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.AppealStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

func (r *appealRepo) ListStalePending(ctx context.Context, before time.Time, limit int) ([]model.AttendanceAppeal, error) {
	var appeals []model.AttendanceAppeal
	err := r.preloadAll(r.db.WithContext(ctx)).
		Where("status = ? AND created_at < ?", model.AppealPending, before).
		Where("last_reminded_at IS NULL OR last_reminded_at < ?", before).
		Order("created_at ASC").
		Limit(limit).
		Find(&appeals).Error
	return appeals, err
}

func (r *appealRepo) MarkReminded(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.AttendanceAppeal{}).
		Where("appeal_id = ?", id).
		UpdateColumn("last_reminded_at", at).Error
}
