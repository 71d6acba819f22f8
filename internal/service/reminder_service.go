package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"skillbridge/backend/config"
	"skillbridge/backend/internal/repository"
)

// reminderBatchSize 单次提醒处理的申诉上限
const reminderBatchSize = 200

// ReminderService 积压申诉提醒
type ReminderService interface {
	// RemindStalePending 提醒培训师处理超时未审核的申诉，返回已提醒条数
	// 只写通知与 last_reminded_at，不改变申诉状态
	RemindStalePending(ctx context.Context, now time.Time) (int, error)
}

type reminderService struct {
	cfg      *config.AppealConfig
	repo     *repository.Repository
	notifier Notifier
	logger   *zap.Logger
}

// NewReminderService 创建 ReminderService 实例
func NewReminderService(cfg *config.AppealConfig, repo *repository.Repository, notifier Notifier, logger *zap.Logger) ReminderService {
	return &reminderService{cfg: cfg, repo: repo, notifier: notifier, logger: logger}
}

func (s *reminderService) RemindStalePending(ctx context.Context, now time.Time) (int, error) {
	before := now.Add(-s.cfg.ReminderAfter)

	appeals, err := s.repo.Appeal.ListStalePending(ctx, before, reminderBatchSize)
	if err != nil {
		s.logger.Error("查询待提醒申诉失败", zap.Error(err))
		return 0, err
	}

	reminded := 0
	for i := range appeals {
		a := &appeals[i]
		if err := s.notifier.AppealReminder(ctx, a); err != nil {
			s.logger.Warn("发送申诉提醒失败", zap.String("appeal_id", a.AppealID), zap.Error(err))
			continue
		}
		if err := s.repo.Appeal.MarkReminded(ctx, a.AppealID, now); err != nil {
			s.logger.Error("记录提醒时间失败", zap.String("appeal_id", a.AppealID), zap.Error(err))
			continue
		}
		reminded++
	}
	return reminded, nil
}
