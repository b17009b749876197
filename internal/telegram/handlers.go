package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"normalizer_bot/internal/logger"
	"normalizer_bot/internal/telegram/normalizer"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// registerHandlers 注册所有命令处理器（异步执行）
func (b *Bot) registerHandlers() {
	// 管理命令（仅 Owner） - 异步执行
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypeExact,
		b.asyncHandler(b.RequireOwner(b.handleStatus)))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/normalize_history", bot.MatchTypePrefix,
		b.asyncHandler(b.RequireOwner(b.handleNormalizeHistory)))

	logger.L().Debug("All handlers registered with async execution")
}

// asyncHandler 把 handler 包装为工作池任务
func (b *Bot) asyncHandler(handler bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		b.workerPool.Submit(HandlerTask{
			Ctx:         ctx,
			BotInstance: botInstance,
			Update:      update,
			Handler:     handler,
		})
	}
}

// defaultHandler 兜底处理所有未命中命令的更新
// 群消息进归一化流水线，删除事件撤销对应的在途条目
func (b *Bot) defaultHandler(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	switch {
	case update.Message != nil:
		b.asyncHandler(b.handleGroupMessage)(ctx, botInstance, update)
	case update.DeletedBusinessMessages != nil:
		b.asyncHandler(b.handleDeletedMessages)(ctx, botInstance, update)
	}
}

// handleGroupMessage 群消息进线
func (b *Bot) handleGroupMessage(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	b.normalizerService.HandleIncoming(ctx, update.Message)
}

// handleDeletedMessages 消息删除事件
func (b *Bot) handleDeletedMessages(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	deleted := update.DeletedBusinessMessages
	b.normalizerService.HandleDeleted(ctx, deleted.Chat.ID, deleted.MessageIDs)
}

// handleStatus 处理 /status 命令
func (b *Bot) handleStatus(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.Message == nil {
		return
	}

	b.sendMessage(ctx, update.Message.Chat.ID, b.buildStatusMessage(ctx, update.Message.Chat.ID))
}

// handleNormalizeHistory 处理 /normalize_history 命令
// 在目标群内执行，可选参数为批次大小：/normalize_history [batch_size]
func (b *Bot) handleNormalizeHistory(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	if chatID >= 0 {
		b.sendErrorMessage(ctx, chatID, "此命令需要在目标群组内执行")
		return
	}

	batchSize := 0
	parts := strings.Fields(update.Message.Text)
	if len(parts) >= 2 {
		if _, err := fmt.Sscanf(parts[1], "%d", &batchSize); err != nil || batchSize <= 0 {
			b.sendErrorMessage(ctx, chatID, "用法: /normalize_history [batch_size]\n例如: /normalize_history 100")
			return
		}
	}

	// 长任务放独立协程，命令立即返回
	go func() {
		runCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		taskID, err := b.batchNormalizer.Run(runCtx, chatID, batchSize)
		if err != nil {
			switch {
			case errors.Is(err, normalizer.ErrBatchAlreadyRunning):
				b.sendErrorMessage(runCtx, chatID, "该群组已有批量归一化任务在运行")
			case errors.Is(err, normalizer.ErrGroupNotActive):
				b.sendErrorMessage(runCtx, chatID, "该群组未启用归一化")
			default:
				logger.L().Errorf("Batch normalization failed: chat_id=%d, err=%v", chatID, err)
				b.sendErrorMessage(runCtx, chatID, "批量归一化失败，请查看日志")
			}
			return
		}

		b.sendSuccessMessage(runCtx, chatID, fmt.Sprintf("批量归一化完成（任务 %s）", taskID))
	}()

	b.sendMessage(ctx, chatID, "⏳ 批量归一化已启动...")
}
