package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sysu-ecnc-dev/leavemaster/internal/config"
	"github.com/sysu-ecnc-dev/leavemaster/internal/handler"
	"github.com/sysu-ecnc-dev/leavemaster/internal/repository"
	"github.com/sysu-ecnc-dev/leavemaster/internal/seed"
)

func main() {
	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	/**********************************************
	 * 创建 repository 并写入初始数据
	 **********************************************/
	repo := repository.NewRepository(clockwork.NewRealClock())
	if err := seed.Seed(repo, seed.Options{
		Password:        cfg.DevServer.SeedPassword,
		RandomEmployees: cfg.DevServer.RandomEmployees,
		LeavesPerPerson: 2,
	}); err != nil {
		logger.Error("无法写入初始数据", "error", err)
		return
	}
	for _, account := range seed.Accounts {
		logger.Info("演示账号", "email", account.Email, "role", account.Role)
	}

	/**********************************************
	 * 创建 handler
	 **********************************************/
	hub := handler.NewHub()
	h, err := handler.NewHandler(cfg, repo, hub)
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
		return
	}
	h.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.DevServer.Port),
		Handler:      h.Mux,
		IdleTimeout:  time.Duration(cfg.DevServer.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.DevServer.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.DevServer.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.DevServer.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.DevServer.ShutdownTimeout)*time.Second)
	defer cancel()

	// Shutdown 不会关闭推送连接，需要单独处理
	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}
	logger.Info("服务器已成功关闭")
}
