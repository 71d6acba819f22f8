package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubReminder struct {
	calls atomic.Int32
	err   error
}

func (s *stubReminder) RemindStalePending(_ context.Context, _ time.Time) (int, error) {
	s.calls.Add(1)
	return 1, s.err
}

func TestScheduler_EmptySpecDisabled(t *testing.T) {
	r := &stubReminder{}
	s := New(r, "", zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("空表达式应直接返回: %v", err)
	}
	s.Stop(context.Background())
	if r.calls.Load() != 0 {
		t.Error("未启用时不应执行任务")
	}
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := New(&stubReminder{}, "not a cron", zap.NewNop())
	if err := s.Start(); err == nil {
		t.Fatal("非法表达式应返回错误")
	}
}

func TestScheduler_RunReminder(t *testing.T) {
	r := &stubReminder{}
	s := New(r, "@hourly", zap.NewNop())
	s.runReminder()
	if r.calls.Load() != 1 {
		t.Errorf("期望执行 1 次，实际 %d", r.calls.Load())
	}

	// 任务失败只记录日志
	r.err = errors.New("db down")
	s.runReminder()
	if r.calls.Load() != 2 {
		t.Errorf("期望执行 2 次，实际 %d", r.calls.Load())
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(&stubReminder{}, "@every 1h", zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start 应成功: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
