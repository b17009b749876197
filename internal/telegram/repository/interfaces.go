package repository

import (
	"context"
	"errors"
	"time"

	"normalizer_bot/internal/telegram/models"
)

// ErrDuplicateHash 指纹唯一索引冲突
// 两个并发任务写同一指纹时，输掉的一方据此判定"已被处理"
var ErrDuplicateHash = errors.New("post hash already exists")

// GroupRepository 群组配置数据访问接口（核心流程只读）
type GroupRepository interface {
	// GetActiveByChatID 获取启用中的群组配置，不存在或未启用时返回 (nil, nil)
	GetActiveByChatID(ctx context.Context, chatID int64) (*models.NormalizerGroup, error)

	// ListActiveChatIDs 列出所有启用群组的 chat_id（启动时用）
	ListActiveChatIDs(ctx context.Context) ([]int64, error)

	// CreateOrUpdate 创建或更新群组配置（外部管理端写入）
	CreateOrUpdate(ctx context.Context, group *models.NormalizerGroup) error

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// AuthorQuotaRepository 作者配额数据访问接口
type AuthorQuotaRepository interface {
	// GetOrCreate 原子获取或创建配额行
	GetOrCreate(ctx context.Context, chatID, userID int64, now time.Time) (*models.AuthorQuota, error)

	// Save 持久化计数与清零标记
	Save(ctx context.Context, quota *models.AuthorQuota) error

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// PostHashRepository 内容指纹数据访问接口
type PostHashRepository interface {
	// Exists 是否存在 since 之后写入的同 (chat_id, hash) 指纹
	Exists(ctx context.Context, chatID int64, hash string, since time.Time) (bool, error)

	// Create 写入指纹；唯一索引冲突时返回 ErrDuplicateHash
	Create(ctx context.Context, chatID int64, hash string, now time.Time) error

	// EnsureIndexes 确保索引存在（含 TTL 物理清理）
	EnsureIndexes(ctx context.Context, retentionDays int) error
}

// PendingInviteRepository 邀请跟踪数据访问接口
type PendingInviteRepository interface {
	// GetOrCreate 原子获取或以 pending 状态创建记录，已有记录原样返回
	GetOrCreate(ctx context.Context, chatID, userID int64, now time.Time) (*models.PendingInvite, error)

	// TransitionStatus 仅当当前状态为 from 时迁移到 to；状态不匹配返回 (false, nil)
	TransitionStatus(ctx context.Context, chatID, userID int64, from, to string, invitedAt *time.Time) (bool, error)

	// ListAwaitingAddedBefore 列出 added_at 早于 cutoff 且仍在等待（pending/invited）的记录
	ListAwaitingAddedBefore(ctx context.Context, cutoff time.Time) ([]*models.PendingInvite, error)

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// BatchJobRepository 批量归一化任务数据访问接口
type BatchJobRepository interface {
	// Get 获取群组的任务记录，不存在返回 (nil, nil)
	Get(ctx context.Context, chatID int64) (*models.BatchJob, error)

	// TryStart 原子抢占任务：未在运行时置为运行中并更新参数，返回任务快照
	// 已在运行时返回 (nil, false, nil)。快照里带着上一轮的累计进度
	TryStart(ctx context.Context, chatID int64, taskID string, batchSize int, now time.Time) (*models.BatchJob, bool, error)

	// UpdateProgress 更新已处理数与总数，保持 processed ≤ total 可校验
	UpdateProgress(ctx context.Context, chatID int64, processed, total int) error

	// Finish 清除运行标记并记录错误信息（成功时 errMsg 为空）
	Finish(ctx context.Context, chatID int64, errMsg string) error

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// MessageRepository 消息历史数据访问接口
type MessageRepository interface {
	// Upsert 写入或更新消息留痕
	Upsert(ctx context.Context, message *models.Message) error

	// CountByChat 统计群组留痕消息总数
	CountByChat(ctx context.Context, chatID int64) (int64, error)

	// ListByChatAfter 按消息 ID 升序列出群组消息，从 afterMessageID 之后开始
	ListByChatAfter(ctx context.Context, chatID int64, afterMessageID int, limit int64) ([]*models.Message, error)

	// Delete 删除单条留痕（原消息被删除时同步清理）
	Delete(ctx context.Context, chatID int64, messageID int) error

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}

// AuthorRepository 用户资料快照数据访问接口
type AuthorRepository interface {
	// Upsert 写入或更新用户资料
	Upsert(ctx context.Context, author *models.Author) error

	// GetByUserID 查询用户资料，不存在返回 (nil, nil)
	GetByUserID(ctx context.Context, userID int64) (*models.Author, error)

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}
