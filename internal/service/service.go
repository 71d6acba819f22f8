package service

import (
	"go.uber.org/zap"

	"skillbridge/backend/config"
	"skillbridge/backend/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Appeal       AppealService
	Attendance   AttendanceService
	Notification NotificationService
	Export       ExportService
	Calendar     CalendarService
	Reminder     ReminderService
}

// NewService 创建 Service 聚合
// cache 为 nil 时申诉统计直接查库；mailer 为 nil 时仅写站内通知
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	cache StatsCache,
	mailer Mailer,
	logger *zap.Logger,
) *Service {
	notifier := NewNotifier(repo, mailer, logger)
	return &Service{
		Appeal:       NewAppealService(&cfg.Appeal, repo, cache, notifier, logger),
		Attendance:   NewAttendanceService(repo, logger),
		Notification: NewNotificationService(repo, logger),
		Export:       NewExportService(repo, logger),
		Calendar:     NewCalendarService(repo, logger),
		Reminder:     NewReminderService(&cfg.Appeal, repo, notifier, logger),
	}
}
