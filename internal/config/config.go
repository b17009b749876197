package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config 应用程序配置
type Config struct {
	TelegramToken     string  // Telegram Bot API Token
	BotOwnerIDs       []int64 // Bot 管理员 ID 列表（可触发批量归一化等命令）
	MongoURI          string  // MongoDB 连接 URI
	MongoDBName       string  // MongoDB 数据库名称
	HashRetentionDays int     // 指纹物理保留天数（TTL 索引，去重窗口固定为 3 天）
}

// Load 从环境变量加载配置
// 凭证缺失属于启动期致命错误，由调用方终止进程
func Load() (*Config, error) {
	mongoDBName := os.Getenv("MONGO_DB_NAME")
	if mongoDBName == "" {
		mongoDBName = "normalizer_bot"
	}

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDBName:   mongoDBName,
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN must be set")
	}
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI must be set")
	}

	// 解析BOT_OWNER_IDS
	ownerIDsStr := os.Getenv("BOT_OWNER_IDS")
	if ownerIDsStr != "" {
		var err error
		cfg.BotOwnerIDs, err = parseOwnerIDs(ownerIDsStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse BOT_OWNER_IDS: %w", err)
		}
	}

	// 解析HASH_RETENTION_DAYS（默认4天，必须覆盖3天去重窗口）
	retentionDaysStr := os.Getenv("HASH_RETENTION_DAYS")
	if retentionDaysStr == "" {
		cfg.HashRetentionDays = 4
	} else {
		days, err := strconv.Atoi(retentionDaysStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse HASH_RETENTION_DAYS: %w", err)
		}
		if days < 3 {
			return nil, fmt.Errorf("HASH_RETENTION_DAYS must be >= 3, got %d", days)
		}
		cfg.HashRetentionDays = days
	}

	return cfg, nil
}

// parseOwnerIDs 解析逗号分隔的用户ID字符串
// 支持格式: "123456789" 或 "123456789,987654321"
func parseOwnerIDs(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid owner ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
