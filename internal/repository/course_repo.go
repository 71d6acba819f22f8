package repository

import (
	"context"

	"gorm.io/gorm"

	"skillbridge/backend/internal/model"
)

// CourseRepository 课程数据访问接口
type CourseRepository interface {
	Create(ctx context.Context, course *model.Course) error
	GetByID(ctx context.Context, id string) (*model.Course, error)
	ListByTrainer(ctx context.Context, trainerID string) ([]model.Course, error)
}

// EnrollmentRepository 选课数据访问接口
type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *model.Enrollment) error
	GetByID(ctx context.Context, id string) (*model.Enrollment, error)
	ListByCandidate(ctx context.Context, candidateID string) ([]model.Enrollment, error)
}

// ── Course Repository 实现 ──

type courseRepo struct {
	db *gorm.DB
}

func NewCourseRepo(db *gorm.DB) CourseRepository {
	return &courseRepo{db: db}
}

func (r *courseRepo) Create(ctx context.Context, course *model.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepo) GetByID(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	err := r.db.WithContext(ctx).
		Preload("Trainer").
		Where("course_id = ?", id).
		First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) ListByTrainer(ctx context.Context, trainerID string) ([]model.Course, error) {
	var courses []model.Course
	err := r.db.WithContext(ctx).
		Where("trainer_id = ?", trainerID).
		Order("code ASC").
		Find(&courses).Error
	return courses, err
}

// ── Enrollment Repository 实现 ──

type enrollmentRepo struct {
	db *gorm.DB
}

func NewEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) Create(ctx context.Context, enrollment *model.Enrollment) error {
	return r.db.WithContext(ctx).Create(enrollment).Error
}

func (r *enrollmentRepo) GetByID(ctx context.Context, id string) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.db.WithContext(ctx).
		Preload("Course").
		Preload("Candidate").
		Where("enrollment_id = ?", id).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *enrollmentRepo) ListByCandidate(ctx context.Context, candidateID string) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("candidate_id = ?", candidateID).
		Order("created_at ASC").
		Find(&enrollments).Error
	return enrollments, err
}
