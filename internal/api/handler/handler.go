package handler

import "skillbridge/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Appeal       *AppealHandler
	Attendance   *AttendanceHandler
	Notification *NotificationHandler
	Export       *ExportHandler
	Health       *HealthHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, checks ...HealthCheck) *Handler {
	return &Handler{
		Appeal:       NewAppealHandler(svc.Appeal),
		Attendance:   NewAttendanceHandler(svc.Attendance),
		Notification: NewNotificationHandler(svc.Notification),
		Export:       NewExportHandler(svc.Export, svc.Calendar),
		Health:       NewHealthHandler(checks...),
	}
}
