package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"skillbridge/backend/config"
	"skillbridge/backend/internal/api/handler"
	"skillbridge/backend/internal/api/middleware"
	"skillbridge/backend/internal/model"
	"skillbridge/backend/pkg/jwt"
)

// Setup 初始化并返回 Gin 路由引擎
// limiter 为 nil 时不限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, limiter middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", h.Health.Check)

	// 写接口限流
	writeLimit := middleware.RateLimit(limiter, cfg.RateLimit.Limit, cfg.RateLimit.Window)

	// ── API v1（全部需要认证）──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		// 候选人
		candidate := v1.Group("/candidate/attendance", middleware.RoleAuth(model.RoleCandidate))
		{
			candidate.GET("", h.Attendance.ListMine)
			candidate.GET("/calendar.ics", h.Export.CandidateCalendar)
			candidate.POST("/:attendanceId/appeal", writeLimit, h.Appeal.Submit)
			candidate.GET("/appeals", h.Appeal.ListMine)
			candidate.DELETE("/appeals/:appealId", writeLimit, h.Appeal.Cancel)
		}

		// 培训师（考勤登记与课程考勤同时开放给管理员）
		trainer := v1.Group("/trainer")
		{
			trainer.GET("/attendance/appeals", middleware.RoleAuth(model.RoleTrainer), h.Appeal.ListTrainer)
			trainer.PUT("/attendance/appeals/:appealId/review", middleware.RoleAuth(model.RoleTrainer), writeLimit, h.Appeal.Review)

			trainer.POST("/attendance", middleware.RoleAuth(model.RoleTrainer, model.RoleAdmin), writeLimit, h.Attendance.Mark)
			trainer.PUT("/attendance/:attendanceId", middleware.RoleAuth(model.RoleTrainer, model.RoleAdmin), writeLimit, h.Attendance.Update)
			trainer.GET("/courses/:courseId/attendance", middleware.RoleAuth(model.RoleTrainer, model.RoleAdmin), h.Attendance.ListCourse)
		}

		// 管理员
		admin := v1.Group("/admin/attendance/appeals", middleware.RoleAuth(model.RoleAdmin))
		{
			admin.GET("", h.Appeal.ListAdmin)
			admin.GET("/export", h.Export.ExportAppeals)
			admin.PUT("/:appealId/override", writeLimit, h.Appeal.Override)
		}

		// 任意角色（可见性在 Service 层校验）
		v1.GET("/attendance/appeals/:appealId", h.Appeal.Get)

		// 站内通知
		notifications := v1.Group("/notifications")
		{
			notifications.GET("", h.Notification.List)
			notifications.PUT("/read-all", h.Notification.MarkAllRead)
			notifications.PUT("/:id/read", h.Notification.MarkRead)
		}
	}

	return r
}
