package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"skillbridge/backend/config"
	"skillbridge/backend/internal/api/handler"
	"skillbridge/backend/internal/api/middleware"
	"skillbridge/backend/internal/api/router"
	"skillbridge/backend/internal/repository"
	"skillbridge/backend/internal/scheduler"
	"skillbridge/backend/internal/service"
	"skillbridge/backend/pkg/database"
	"skillbridge/backend/pkg/jwt"
	applogger "skillbridge/backend/pkg/logger"
	"skillbridge/backend/pkg/redis"
	"skillbridge/backend/pkg/validator"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认查找 ./config/config.yaml）")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：失败时不限流、统计直接查库）
	var (
		cache   service.StatsCache
		limiter middleware.RateLimiter
	)
	checks := []handler.HealthCheck{{Name: "database", Ping: sqlDB.PingContext}}

	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，限流与统计缓存将不可用", zap.Error(err))
		rdb = nil
	} else {
		cache = rdb
		limiter = rdb
		checks = append(checks, handler.HealthCheck{Name: "redis", Ping: rdb.Ping})
	}

	// 5. 初始化 JWT 校验与参数校验规则
	jwtMgr := jwt.NewManager(&cfg.Auth)
	if err := validator.Register(); err != nil {
		logger.Fatal("注册参数校验规则失败", zap.Error(err))
	}

	// 6. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	mailer := service.NewMailer(&cfg.Mail, logger)
	svc := service.NewService(cfg, repo, cache, mailer, logger)
	h := handler.NewHandler(svc, checks...)

	// 7. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, limiter, logger)

	// 8. 启动定时提醒任务
	sched := scheduler.New(svc.Reminder, cfg.Appeal.ReminderCron, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("启动定时任务失败", zap.Error(err))
	}

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	sched.Stop(ctx)

	sqlDB.Close()
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
