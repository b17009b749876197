package telegram

import (
	"context"
	"fmt"
	"time"

	"normalizer_bot/internal/config"
	"normalizer_bot/internal/logger"
	"normalizer_bot/internal/telegram/normalizer"
	"normalizer_bot/internal/telegram/repository"

	"github.com/go-telegram/bot"
	"go.mongodb.org/mongo-driver/mongo"
)

// 工作池与缓存参数
const (
	poolWorkers   = 8
	poolQueueSize = 256
	groupCacheTTL = 30 * time.Second
)

// Config Telegram Bot 配置
type Config struct {
	Token             string  // Bot Token
	OwnerIDs          []int64 // Owner 用户 IDs
	HashRetentionDays int     // 指纹物理保留天数
	Debug             bool    // 是否开启调试模式
}

// Bot Telegram Bot 服务
type Bot struct {
	bot       *bot.Bot
	db        *mongo.Database
	ownerIDs  []int64
	startTime time.Time

	workerPool *WorkerPool

	groupRepo    repository.GroupRepository
	batchJobRepo repository.BatchJobRepository

	normalizerService *normalizer.Service
	inviteManager     *normalizer.InviteManager
	batchNormalizer   *normalizer.BatchNormalizer
	sweepScheduler    *inviteSweepScheduler
}

// New 创建 Telegram Bot 实例
func New(cfg Config, db *mongo.Database) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token cannot be empty")
	}

	groupRepo := repository.NewMongoGroupRepository(db)
	quotaRepo := repository.NewMongoAuthorQuotaRepository(db)
	hashRepo := repository.NewMongoPostHashRepository(db)
	inviteRepo := repository.NewMongoPendingInviteRepository(db)
	batchJobRepo := repository.NewMongoBatchJobRepository(db)
	messageRepo := repository.NewMongoMessageRepository(db)
	authorRepo := repository.NewMongoAuthorRepository(db)

	telegramBot := &Bot{
		db:           db,
		ownerIDs:     cfg.OwnerIDs,
		startTime:    time.Now(),
		workerPool:   NewWorkerPool(poolWorkers, poolQueueSize),
		groupRepo:    groupRepo,
		batchJobRepo: batchJobRepo,
	}

	opts := []bot.Option{
		bot.WithDefaultHandler(telegramBot.defaultHandler),
	}
	if cfg.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	telegramBot.bot = b

	// 组装归一化流水线
	transport := newBotTransport(b)
	groups := newCachedGroupSource(groupRepo, groupCacheTTL)

	telegramBot.inviteManager = normalizer.NewInviteManager(transport, inviteRepo, authorRepo)
	telegramBot.normalizerService = normalizer.NewService(normalizer.ServiceDeps{
		Transport: transport,
		Groups:    groups,
		Quota:     normalizer.NewQuotaTracker(quotaRepo),
		Hashes:    hashRepo,
		Messages:  messageRepo,
		Authors:   authorRepo,
		Invites:   telegramBot.inviteManager,
	})
	telegramBot.batchNormalizer = normalizer.NewBatchNormalizer(
		telegramBot.normalizerService, groups, batchJobRepo, messageRepo)
	telegramBot.sweepScheduler = newInviteSweepScheduler(telegramBot)

	telegramBot.registerHandlers()

	if err := telegramBot.ensureIndexes(context.Background(), cfg.HashRetentionDays,
		groupRepo, quotaRepo, hashRepo, inviteRepo, batchJobRepo, messageRepo, authorRepo); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	logger.L().Info("Telegram bot initialized successfully")
	return telegramBot, nil
}

// InitFromConfig 从应用配置初始化 Telegram Bot
func InitFromConfig(cfg *config.Config, db *mongo.Database) (*Bot, error) {
	telegramCfg := Config{
		Token:             cfg.TelegramToken,
		OwnerIDs:          cfg.BotOwnerIDs,
		HashRetentionDays: cfg.HashRetentionDays,
		Debug:             false,
	}
	return New(telegramCfg, db)
}

// Start 启动 Bot（阻塞式，应在 goroutine 中运行）
func (b *Bot) Start(ctx context.Context) error {
	me, err := b.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot identity: %w", err)
	}
	b.normalizerService.SetSelfID(me.ID)
	logger.L().Infof("Bot identity: @%s (id=%d)", me.Username, me.ID)

	if chatIDs, err := b.groupRepo.ListActiveChatIDs(ctx); err != nil {
		logger.L().Warnf("Failed to list active groups: %v", err)
	} else {
		logger.L().Infof("Normalization active in %d groups", len(chatIDs))
	}

	b.sweepScheduler.start()

	logger.L().Info("Starting Telegram bot...")
	b.bot.Start(ctx)
	logger.L().Info("Telegram bot stopped")
	return nil
}

// Stop 停止 Bot 的后台组件
// 轮询本身通过 Start 的 context 取消结束
func (b *Bot) Stop(ctx context.Context) error {
	logger.L().Info("Stopping Telegram bot...")

	b.sweepScheduler.stop()
	b.normalizerService.Stop()
	b.workerPool.Shutdown()

	return nil
}

// ensureIndexes 确保所有数据库索引存在
func (b *Bot) ensureIndexes(ctx context.Context, retentionDays int,
	groupRepo repository.GroupRepository,
	quotaRepo repository.AuthorQuotaRepository,
	hashRepo repository.PostHashRepository,
	inviteRepo repository.PendingInviteRepository,
	batchJobRepo repository.BatchJobRepository,
	messageRepo repository.MessageRepository,
	authorRepo repository.AuthorRepository,
) error {
	if err := groupRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure group indexes: %w", err)
	}
	if err := quotaRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure quota indexes: %w", err)
	}
	if err := hashRepo.EnsureIndexes(ctx, retentionDays); err != nil {
		return fmt.Errorf("failed to ensure hash indexes: %w", err)
	}
	if err := inviteRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure invite indexes: %w", err)
	}
	if err := batchJobRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure batch job indexes: %w", err)
	}
	if err := messageRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure message indexes: %w", err)
	}
	if err := authorRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure author indexes: %w", err)
	}

	logger.L().Debug("All indexes ensured")
	return nil
}
