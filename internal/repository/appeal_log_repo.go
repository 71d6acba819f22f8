package repository

import (
	"context"

	"gorm.io/gorm"

	"skillbridge/backend/internal/model"
)

// AppealActionLogRepository 申诉操作日志数据访问接口（只追加）
type AppealActionLogRepository interface {
	Create(ctx context.Context, log *model.AppealActionLog) error
	ListByAppeal(ctx context.Context, appealID string) ([]model.AppealActionLog, error)
}

type appealActionLogRepo struct {
	db *gorm.DB
}

// NewAppealActionLogRepo 创建 AppealActionLogRepository 实例
func NewAppealActionLogRepo(db *gorm.DB) AppealActionLogRepository {
	return &appealActionLogRepo{db: db}
}

func (r *appealActionLogRepo) Create(ctx context.Context, log *model.AppealActionLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *appealActionLogRepo) ListByAppeal(ctx context.Context, appealID string) ([]model.AppealActionLog, error) {
	var logs []model.AppealActionLog
	err := r.db.WithContext(ctx).
		Where("appeal_id = ?", appealID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}
