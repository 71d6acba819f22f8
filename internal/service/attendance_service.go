package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"skillbridge/backend/internal/dto"
	"skillbridge/backend/internal/model"
	"skillbridge/backend/internal/repository"
	pkgerrors "skillbridge/backend/pkg/errors"
)

// ── 考勤模块业务错误 ──

var (
	ErrEnrollmentNotFound      = fmt.Errorf("%w: 选课记录不存在", pkgerrors.ErrNotFound)
	ErrCourseNotFound          = fmt.Errorf("%w: 课程不存在", pkgerrors.ErrNotFound)
	ErrEnrollmentInactive      = fmt.Errorf("%w: 选课已结束或已退课", pkgerrors.ErrState)
	ErrSessionDateInvalid      = fmt.Errorf("%w: 课次日期格式错误，应为 YYYY-MM-DD", pkgerrors.ErrValidation)
	ErrAttendanceExists        = fmt.Errorf("%w: 该课次考勤已登记", pkgerrors.ErrConflict)
	ErrAttendanceConcurrent    = fmt.Errorf("%w: 考勤记录已被其他操作修改，请刷新后重试", pkgerrors.ErrState)
	ErrNotCourseTrainer        = fmt.Errorf("%w: 只能管理本人授课课程的考勤", pkgerrors.ErrAuthorization)
	ErrAttendanceMarkForbidden = fmt.Errorf("%w: 仅培训师或管理员可以登记考勤", pkgerrors.ErrAuthorization)
)

// AttendanceService 考勤业务接口
type AttendanceService interface {
	// Mark 培训师/管理员登记某一课次的考勤
	Mark(ctx context.Context, caller model.Caller, req *dto.MarkAttendanceRequest) (*dto.AttendanceResponse, error)
	// Update 直接更正考勤状态（乐观锁）
	Update(ctx context.Context, caller model.Caller, attendanceID string, req *dto.UpdateAttendanceRequest) (*dto.AttendanceResponse, error)
	ListCandidate(ctx context.Context, caller model.Caller, courseID string) ([]dto.AttendanceResponse, error)
	ListCourse(ctx context.Context, caller model.Caller, courseID string, sessionNumber *int) ([]dto.AttendanceResponse, error)
}

type attendanceService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(repo *repository.Repository, logger *zap.Logger) AttendanceService {
	return &attendanceService{repo: repo, logger: logger}
}

// ────────────────────── Mark ──────────────────────

func (s *attendanceService) Mark(ctx context.Context, caller model.Caller, req *dto.MarkAttendanceRequest) (*dto.AttendanceResponse, error) {
	if caller.Role != model.RoleTrainer && !caller.IsAdmin() {
		return nil, ErrAttendanceMarkForbidden
	}

	status := model.AttendanceStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		return nil, ErrAttendanceStatusInvalid
	}
	sessionDate, err := time.Parse(dateLayout, req.SessionDate)
	if err != nil {
		return nil, ErrSessionDateInvalid
	}

	enrollment, err := s.repo.Enrollment.GetByID(ctx, req.EnrollmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		s.logger.Error("查询选课失败", zap.String("enrollment_id", req.EnrollmentID), zap.Error(err))
		return nil, err
	}
	if err := checkCourseAccess(caller, enrollment.Course); err != nil {
		return nil, err
	}
	if enrollment.Status != "active" {
		return nil, ErrEnrollmentInactive
	}

	record := &model.AttendanceRecord{
		EnrollmentID:  enrollment.EnrollmentID,
		SessionDate:   sessionDate,
		SessionNumber: req.SessionNumber,
		Status:        status,
		MarkedBy:      caller.UserID,
		Notes:         req.Notes,
	}
	record.CreatedBy = &caller.UserID
	record.UpdatedBy = &caller.UserID

	if err := s.repo.Attendance.Create(ctx, record); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAttendanceExists
		}
		s.logger.Error("登记考勤失败", zap.Error(err))
		return nil, err
	}
	record.Enrollment = enrollment

	resp := toAttendanceResponse(record)
	return &resp, nil
}

// ────────────────────── Update ──────────────────────

func (s *attendanceService) Update(ctx context.Context, caller model.Caller, attendanceID string, req *dto.UpdateAttendanceRequest) (*dto.AttendanceResponse, error) {
	if caller.Role != model.RoleTrainer && !caller.IsAdmin() {
		return nil, ErrAttendanceMarkForbidden
	}

	status := model.AttendanceStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		return nil, ErrAttendanceStatusInvalid
	}

	record, err := s.repo.Attendance.GetByID(ctx, attendanceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttendanceNotFound
		}
		s.logger.Error("查询考勤记录失败", zap.String("attendance_id", attendanceID), zap.Error(err))
		return nil, err
	}
	if record.Enrollment == nil {
		return nil, ErrEnrollmentNotFound
	}
	if err := checkCourseAccess(caller, record.Enrollment.Course); err != nil {
		return nil, err
	}

	record.Status = status
	if req.Notes != nil {
		record.Notes = *req.Notes
	}
	record.UpdatedBy = &caller.UserID

	if err := s.repo.Attendance.UpdateStatus(ctx, record); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrAttendanceConcurrent
		}
		s.logger.Error("更正考勤失败", zap.String("attendance_id", attendanceID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("考勤已更正",
		zap.String("attendance_id", attendanceID),
		zap.String("status", string(status)),
		zap.String("operator_id", caller.UserID),
	)

	resp := toAttendanceResponse(record)
	return &resp, nil
}

// ────────────────────── List ──────────────────────

func (s *attendanceService) ListCandidate(ctx context.Context, caller model.Caller, courseID string) ([]dto.AttendanceResponse, error) {
	records, err := s.repo.Attendance.List(ctx, repository.AttendanceFilter{
		CandidateID: caller.UserID,
		CourseID:    courseID,
	})
	if err != nil {
		s.logger.Error("查询候选人考勤失败", zap.Error(err))
		return nil, err
	}
	return toAttendanceResponses(records), nil
}

func (s *attendanceService) ListCourse(ctx context.Context, caller model.Caller, courseID string, sessionNumber *int) ([]dto.AttendanceResponse, error) {
	course, err := s.repo.Course.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}
	if err := checkCourseAccess(caller, course); err != nil {
		return nil, err
	}

	records, err := s.repo.Attendance.List(ctx, repository.AttendanceFilter{
		CourseID:      courseID,
		SessionNumber: sessionNumber,
	})
	if err != nil {
		s.logger.Error("查询课程考勤失败", zap.Error(err))
		return nil, err
	}
	return toAttendanceResponses(records), nil
}

// checkCourseAccess 管理员可管理全部课程，培训师仅限本人授课
func checkCourseAccess(caller model.Caller, course *model.Course) error {
	if caller.IsAdmin() {
		return nil
	}
	if caller.Role != model.RoleTrainer {
		return ErrAttendanceMarkForbidden
	}
	if course == nil || course.TrainerID != caller.UserID {
		return ErrNotCourseTrainer
	}
	return nil
}

func toAttendanceResponses(records []model.AttendanceRecord) []dto.AttendanceResponse {
	result := make([]dto.AttendanceResponse, 0, len(records))
	for i := range records {
		result = append(result, toAttendanceResponse(&records[i]))
	}
	return result
}
