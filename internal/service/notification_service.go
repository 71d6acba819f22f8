package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"skillbridge/backend/internal/dto"
	"skillbridge/backend/internal/repository"
	pkgerrors "skillbridge/backend/pkg/errors"
)

// ErrNotificationNotFound 通知不存在或不属于当前用户
var ErrNotificationNotFound = fmt.Errorf("%w: 通知不存在", pkgerrors.ErrNotFound)

// NotificationService 站内通知业务接口
type NotificationService interface {
	List(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type notificationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, logger: logger}
}

// List 返回通知列表、总数与未读数
func (s *notificationService) List(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, int64, error) {
	list, total, err := s.repo.Notification.ListByUser(ctx, userID, req.UnreadOnly, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询通知列表失败", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, 0, err
	}
	unread, err := s.repo.Notification.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Error("统计未读通知失败", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, 0, err
	}

	result := make([]dto.NotificationResponse, 0, len(list))
	for i := range list {
		result = append(result, toNotificationResponse(&list[i]))
	}
	return result, total, unread, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id string) error {
	ok, err := s.repo.Notification.MarkRead(ctx, userID, id)
	if err != nil {
		s.logger.Error("标记通知已读失败", zap.String("id", id), zap.Error(err))
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.Notification.MarkAllRead(ctx, userID)
	if err != nil {
		s.logger.Error("全部标记已读失败", zap.String("user_id", userID), zap.Error(err))
		return 0, err
	}
	return n, nil
}
