package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// buildStatusMessage 构建 /status 命令的响应文本
func (b *Bot) buildStatusMessage(ctx context.Context, chatID int64) string {
	lines := []string{"📊 运行状态"}

	if !b.startTime.IsZero() {
		uptime := time.Since(b.startTime)
		lines = append(lines, fmt.Sprintf("⏱ 运行时间: %s", formatDuration(uptime)))
	}

	if b.workerPool != nil {
		stats := b.workerPool.Stats()
		lines = append(lines, fmt.Sprintf("🛠 工作池: %d 个协程，队列 %d/%d", stats.Workers, stats.QueueLength, stats.QueueCapacity))
	}

	if b.normalizerService != nil {
		lines = append(lines, fmt.Sprintf("⏳ 延迟窗口内消息: %d 条", b.normalizerService.PendingCount()))
	}

	if b.db != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := b.db.Client().Ping(dbCtx, nil); err != nil {
			lines = append(lines, fmt.Sprintf("🗄 数据库: ⚠️ %v", err))
		} else {
			lines = append(lines, "🗄 数据库: ✅ 正常")
		}
	}

	if chatID < 0 && b.batchJobRepo != nil {
		jobCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if job, err := b.batchJobRepo.Get(jobCtx, chatID); err == nil && job != nil {
			state := "已完成"
			if job.IsRunning {
				state = "运行中"
			}
			if job.ErrorMessage != "" {
				state = fmt.Sprintf("失败（%s）", job.ErrorMessage)
			}
			lines = append(lines, fmt.Sprintf("📦 批量归一化: %s，进度 %d/%d (%.1f%%)",
				state, job.ProcessedMessages, job.TotalMessages, job.ProgressPercent()))
		}
	}

	return strings.Join(lines, "\n")
}

// formatDuration 将持续时间格式化为人类可读的字符串
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	d = d.Round(time.Second)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	parts := make([]string, 0, 4)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d天", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d小时", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d分钟", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d秒", seconds))
	}

	return strings.Join(parts, " ")
}
