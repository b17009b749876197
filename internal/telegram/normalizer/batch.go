package normalizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"normalizer_bot/internal/logger"
	"normalizer_bot/internal/telegram/repository"

	"github.com/google/uuid"
)

// 批量归一化参数边界
const (
	DefaultBatchSize = 100
	MaxBatchSize     = 1000
)

// sendRatePerSecond 重放历史时的发送速率上限
const sendRatePerSecond = 5

// ErrBatchAlreadyRunning 同一群组的批量任务已在运行
var ErrBatchAlreadyRunning = errors.New("batch normalization already running for this chat")

// ErrGroupNotActive 群组不存在或未启用归一化
var ErrGroupNotActive = errors.New("group is not active")

// BatchNormalizer 历史消息批量归一化
// 重放本地留痕的历史消息，逐条走与实时相同的归一化流水线。
// 已归一化的留痕会被流水线删除，因此中断后重跑天然从断点续起。
type BatchNormalizer struct {
	service  *Service
	groups   GroupSource
	jobs     repository.BatchJobRepository
	messages repository.MessageRepository
}

// NewBatchNormalizer 创建批量归一化器
func NewBatchNormalizer(service *Service, groups GroupSource, jobs repository.BatchJobRepository, messages repository.MessageRepository) *BatchNormalizer {
	return &BatchNormalizer{
		service:  service,
		groups:   groups,
		jobs:     jobs,
		messages: messages,
	}
}

// Run 同步执行一次批量归一化，返回任务 ID
// 运行标记通过原子抢占获得，同一群组同时只有一个任务；
// 无论成功失败，结束时都清除运行标记。
func (b *BatchNormalizer) Run(ctx context.Context, chatID int64, batchSize int) (string, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	group, err := b.groups.GetActiveByChatID(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("failed to load group config: %w", err)
	}
	if group == nil {
		return "", ErrGroupNotActive
	}

	remaining, err := b.messages.CountByChat(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("failed to count messages: %w", err)
	}

	taskID := uuid.New().String()

	job, started, err := b.jobs.TryStart(ctx, chatID, taskID, batchSize, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to start batch job: %w", err)
	}
	if !started {
		return "", ErrBatchAlreadyRunning
	}

	// 续跑时累计进度保留，总数 = 已处理 + 本次剩余
	processed := job.ProcessedMessages
	total := processed + int(remaining)

	// 收尾必须落库，即使任务因 context 取消而中断
	finishCtx := context.WithoutCancel(ctx)

	// 总数先落库，中途查看进度时 processed ≤ total 始终成立
	if err := b.jobs.UpdateProgress(ctx, chatID, processed, total); err != nil {
		if finishErr := b.jobs.Finish(finishCtx, chatID, err.Error()); finishErr != nil {
			logger.L().Errorf("Failed to finish batch job: chat_id=%d, err=%v", chatID, finishErr)
		}
		return taskID, fmt.Errorf("failed to record batch totals: %w", err)
	}

	logger.L().Infof("Batch normalization started: chat_id=%d, task_id=%s, remaining=%d, processed=%d, total=%d",
		chatID, taskID, remaining, processed, total)

	limiter := NewRateLimiter(sendRatePerSecond)
	defer limiter.Close()

	if err := b.replay(ctx, group.ChatID, batchSize, limiter, &processed, total); err != nil {
		if finishErr := b.jobs.Finish(finishCtx, chatID, err.Error()); finishErr != nil {
			logger.L().Errorf("Failed to finish batch job: chat_id=%d, err=%v", chatID, finishErr)
		}
		return taskID, err
	}

	if err := b.jobs.Finish(finishCtx, chatID, ""); err != nil {
		return taskID, fmt.Errorf("failed to finish batch job: %w", err)
	}

	logger.L().Infof("Batch normalization finished: chat_id=%d, task_id=%s, processed=%d", chatID, taskID, processed)
	return taskID, nil
}

// replay 按消息 ID 游标分批重放历史
// 单条消息的归一化失败在流水线内记日志后继续；
// 存储层或上下文错误中断整个任务。
func (b *BatchNormalizer) replay(ctx context.Context, chatID int64, batchSize int, limiter *RateLimiter, processed *int, total int) error {
	group, err := b.groups.GetActiveByChatID(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to load group config: %w", err)
	}
	if group == nil {
		return ErrGroupNotActive
	}

	cursor := 0
	for {
		batch, err := b.messages.ListByChatAfter(ctx, chatID, cursor, int64(batchSize))
		if err != nil {
			return fmt.Errorf("failed to list messages: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		for _, m := range batch {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("batch interrupted: %w", err)
			}

			snap := SnapshotFromStored(m)
			b.service.Normalize(ctx, group, snap, time.Now())

			cursor = m.MessageID
			*processed++
		}

		if err := b.jobs.UpdateProgress(ctx, chatID, *processed, total); err != nil {
			return fmt.Errorf("failed to update progress: %w", err)
		}

		logger.L().Infof("Batch progress: chat_id=%d, processed=%d/%d", chatID, *processed, total)
	}
}
