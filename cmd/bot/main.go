package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"normalizer_bot/internal/app"
	"normalizer_bot/internal/config"
	"normalizer_bot/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	// .env 不存在时静默跳过，线上环境直接注入环境变量
	_ = godotenv.Load()

	// 初始化logger
	logger.Init()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatalf("配置加载失败: %v", err)
	}

	// 初始化应用
	application, err := app.New(cfg)
	if err != nil {
		logger.L().Fatalf("应用初始化失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// 启动 Bot（阻塞式轮询放后台协程）
	botDone := make(chan error, 1)
	go func() {
		botDone <- application.TelegramBot.Start(ctx)
	}()

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.L().Infof("Received signal %s, shutting down...", sig)
	case err := <-botDone:
		if err != nil {
			logger.L().Errorf("Bot exited with error: %v", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := application.Close(shutdownCtx); err != nil {
		logger.L().Errorf("Shutdown failed: %v", err)
	}

	logger.L().Info("Bye")
}
