package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"skillbridge/backend/internal/service"
)

// reminderJobTimeout 单次提醒任务超时
const reminderJobTimeout = 5 * time.Minute

// Scheduler 定时任务调度器
type Scheduler struct {
	cron     *cron.Cron
	reminder service.ReminderService
	spec     string
	logger   *zap.Logger
}

// New 创建调度器；spec 为空时 Start 不注册任何任务
func New(reminder service.ReminderService, spec string, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		reminder: reminder,
		spec:     spec,
		logger:   logger,
	}
}

// Start 注册任务并启动调度
func (s *Scheduler) Start() error {
	if s.spec == "" {
		s.logger.Info("申诉提醒任务未启用")
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.runReminder); err != nil {
		return fmt.Errorf("注册申诉提醒任务失败: %w", err)
	}

	s.cron.Start()
	s.logger.Info("定时任务已启动", zap.String("reminder_cron", s.spec))
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("定时任务已停止")
	case <-ctx.Done():
		s.logger.Warn("等待定时任务结束超时")
	}
}

func (s *Scheduler) runReminder() {
	ctx, cancel := context.WithTimeout(context.Background(), reminderJobTimeout)
	defer cancel()

	n, err := s.reminder.RemindStalePending(ctx, time.Now())
	if err != nil {
		s.logger.Error("申诉提醒任务失败", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("申诉提醒任务完成", zap.Int("reminded", n))
	}
}
