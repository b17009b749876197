package normalizer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"normalizer_bot/internal/logger"
	"normalizer_bot/internal/telegram/models"
	"normalizer_bot/internal/telegram/repository"

	botModels "github.com/go-telegram/bot/models"
)

// processTimeout 单条消息归一化的处理超时
const processTimeout = 2 * time.Minute

// GroupSource 群组配置读取接口
// Repository 与 TTL 缓存包装层都满足该契约
type GroupSource interface {
	GetActiveByChatID(ctx context.Context, chatID int64) (*models.NormalizerGroup, error)
}

// ServiceDeps 归一化服务的依赖集合
type ServiceDeps struct {
	Transport Transport
	Groups    GroupSource
	Quota     *QuotaTracker
	Hashes    repository.PostHashRepository
	Messages  repository.MessageRepository
	Authors   repository.AuthorRepository
	Invites   *InviteManager
}

// Service 归一化主流程
// 进线登记 → 延迟到期 → 校验 → 查重 → 配额 → 删原帖重发 → 邀请
type Service struct {
	transport Transport
	groups    GroupSource
	quota     *QuotaTracker
	hashes    repository.PostHashRepository
	messages  repository.MessageRepository
	authors   repository.AuthorRepository
	invites   *InviteManager
	scheduler *DeferredScheduler

	selfID int64

	// 按钮轮换游标，按群组维护，进程内状态
	rotMu    sync.Mutex
	rotation map[int64]int
}

// NewService 创建归一化服务
func NewService(deps ServiceDeps) *Service {
	return &Service{
		transport: deps.Transport,
		groups:    deps.Groups,
		quota:     deps.Quota,
		hashes:    deps.Hashes,
		messages:  deps.Messages,
		authors:   deps.Authors,
		invites:   deps.Invites,
		scheduler: NewDeferredScheduler(),
		rotation:  make(map[int64]int),
	}
}

// SetSelfID 设置 Bot 自身的用户 ID，用于过滤自己发出的消息
func (s *Service) SetSelfID(id int64) {
	s.selfID = id
}

// PendingCount 当前延迟窗口内的在途消息数
func (s *Service) PendingCount() int {
	return s.scheduler.Len()
}

// Stop 停止调度器，丢弃尚未到期的在途消息
func (s *Service) Stop() {
	s.scheduler.Stop()
}

// HandleIncoming 处理进线消息：过滤、留痕、登记延迟
func (s *Service) HandleIncoming(ctx context.Context, msg *botModels.Message) {
	if msg == nil {
		return
	}

	group, err := s.groups.GetActiveByChatID(ctx, msg.Chat.ID)
	if err != nil {
		logger.L().Errorf("Failed to load group config: chat_id=%d, err=%v", msg.Chat.ID, err)
		return
	}
	if group == nil {
		return
	}

	if msg.From != nil && s.selfID != 0 && msg.From.ID == s.selfID {
		return
	}

	snap := SnapshotFromMessage(msg)
	if !snap.HasContent() {
		return
	}

	if msg.From != nil {
		author := &models.Author{
			UserID:    msg.From.ID,
			Username:  msg.From.Username,
			FirstName: msg.From.FirstName,
			LastName:  msg.From.LastName,
		}
		if err := s.authors.Upsert(ctx, author); err != nil {
			logger.L().Warnf("Failed to upsert author: user_id=%d, err=%v", msg.From.ID, err)
		}
	}

	sentAt := time.Unix(int64(msg.Date), 0)
	if err := s.messages.Upsert(ctx, StoredFromSnapshot(snap, sentAt)); err != nil {
		logger.L().Warnf("Failed to store message record: chat_id=%d, message_id=%d, err=%v",
			snap.Key.ChatID, snap.Key.MessageID, err)
	}

	delay := jitteredDelay(group.DelaySeconds)
	s.scheduler.Schedule(snap, delay, s.onExpired)

	logger.L().Infof("Message scheduled: chat_id=%d, message_id=%d, delay=%s",
		snap.Key.ChatID, snap.Key.MessageID, delay)
}

// HandleDeleted 处理消息删除事件：撤销在途条目并清理留痕
func (s *Service) HandleDeleted(ctx context.Context, chatID int64, messageIDs []int) {
	for _, id := range messageIDs {
		key := MessageKey{ChatID: chatID, MessageID: id}
		if s.scheduler.Cancel(key) {
			logger.L().Infof("Pending message cancelled by deletion: chat_id=%d, message_id=%d", chatID, id)
		}
		if err := s.messages.Delete(ctx, chatID, id); err != nil {
			logger.L().Warnf("Failed to delete message record: chat_id=%d, message_id=%d, err=%v", chatID, id, err)
		}
	}
}

// onExpired 延迟到期回调：重读配置后进入归一化流水线
func (s *Service) onExpired(snap *Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	group, err := s.groups.GetActiveByChatID(ctx, snap.Key.ChatID)
	if err != nil {
		logger.L().Errorf("Failed to reload group config: chat_id=%d, err=%v", snap.Key.ChatID, err)
		return
	}
	if group == nil {
		logger.L().Infof("Group no longer active, dropping: chat_id=%d, message_id=%d",
			snap.Key.ChatID, snap.Key.MessageID)
		return
	}

	s.Normalize(ctx, group, snap, time.Now())
}

// Normalize 对一条快照执行完整归一化
// 校验存在性 → 指纹查重 → 配额预占 → 删原帖 → 重发 → 记指纹 → 邀请。
// 批量归一化复用同一流水线。
func (s *Service) Normalize(ctx context.Context, group *models.NormalizerGroup, snap *Snapshot, now time.Time) {
	key := snap.Key

	exists, err := s.transport.MessageExists(ctx, key.ChatID, key.MessageID)
	if err != nil {
		logger.L().Warnf("Message existence probe failed: chat_id=%d, message_id=%d, err=%v",
			key.ChatID, key.MessageID, err)
		return
	}
	if !exists {
		logger.L().Infof("Message gone before processing: chat_id=%d, message_id=%d", key.ChatID, key.MessageID)
		s.dropRecord(ctx, key)
		return
	}

	digest := Fingerprint(snap.Content(), snap.Media.FileID)
	since := now.Add(-models.DuplicateWindow)

	dup, err := s.hashes.Exists(ctx, key.ChatID, digest, since)
	if err != nil {
		logger.L().Errorf("Failed to check fingerprint: chat_id=%d, message_id=%d, err=%v",
			key.ChatID, key.MessageID, err)
		return
	}
	if dup {
		logger.L().Infof("Duplicate content, removing original: chat_id=%d, message_id=%d", key.ChatID, key.MessageID)
		s.removeOriginal(ctx, key)
		return
	}

	if snap.SenderID != 0 {
		verdict, err := s.quota.CheckAndReserve(ctx, group, snap.SenderID, now)
		if err != nil {
			logger.L().Errorf("Failed to check quota: chat_id=%d, user_id=%d, err=%v",
				key.ChatID, snap.SenderID, err)
			return
		}
		if verdict != VerdictAllowed {
			logger.L().Infof("Quota rejected (%s), removing original: chat_id=%d, user_id=%d, message_id=%d",
				verdict, key.ChatID, snap.SenderID, key.MessageID)
			s.removeOriginal(ctx, key)
			return
		}
	}

	newID, err := s.repost(ctx, group, snap)
	if err != nil {
		logger.L().Errorf("Failed to repost: chat_id=%d, message_id=%d, err=%v", key.ChatID, key.MessageID, err)
		return
	}

	if err := s.hashes.Create(ctx, key.ChatID, digest, now); err != nil {
		if errors.Is(err, repository.ErrDuplicateHash) {
			logger.L().Debugf("Fingerprint already recorded: chat_id=%d", key.ChatID)
		} else {
			logger.L().Errorf("Failed to record fingerprint: chat_id=%d, err=%v", key.ChatID, err)
		}
	}

	s.dropRecord(ctx, key)

	logger.L().Infof("Message normalized: chat_id=%d, original_id=%d, new_id=%d", key.ChatID, key.MessageID, newID)

	if snap.ForwardFromID != 0 && snap.ForwardFromID != snap.SenderID {
		s.invites.OnForwardDetected(ctx, group, snap.ForwardFromID, newID)
	}
}

// repost 删除原帖并以 Bot 身份重发内容，返回新消息 ID
func (s *Service) repost(ctx context.Context, group *models.NormalizerGroup, snap *Snapshot) (int, error) {
	key := snap.Key
	body, entities := appendSuffix(snap.Content(), snap.Entities, group.SuffixText)
	markup := s.buttonMarkup(group, snap.SenderID)

	if snap.Media.Kind != MediaNone && !snap.Media.Native() {
		// 未知媒体类型走通用复制；复制成功后才删原帖
		newID, err := s.transport.CopyMessage(ctx, group.ChatID, key.ChatID, key.MessageID, body, entities, markup)
		if err != nil {
			return 0, fmt.Errorf("copy fallback failed: %w", err)
		}
		if err := s.transport.DeleteMessage(ctx, key.ChatID, key.MessageID); err != nil {
			logger.L().Warnf("Failed to delete original after copy: chat_id=%d, message_id=%d, err=%v",
				key.ChatID, key.MessageID, err)
		}
		return newID, nil
	}

	// 先删原帖再重发，保证群里不会短暂出现两份同样的内容
	if err := s.transport.DeleteMessage(ctx, key.ChatID, key.MessageID); err != nil {
		return 0, fmt.Errorf("failed to delete original: %w", err)
	}

	switch {
	case snap.Media.Kind == MediaNone:
		if body == "" {
			return 0, fmt.Errorf("nothing to repost")
		}
		return s.transport.SendText(ctx, group.ChatID, body, entities, markup)
	case snap.Media.SupportsCaption():
		return s.transport.SendMedia(ctx, group.ChatID, snap.Media, body, entities, markup)
	default:
		// 贴纸、圆形视频不支持说明文字，媒体与文字拆成两条发
		id, err := s.transport.SendMedia(ctx, group.ChatID, snap.Media, "", nil, markup)
		if err != nil {
			return 0, err
		}
		if body != "" {
			if _, err := s.transport.SendText(ctx, group.ChatID, body, entities, nil); err != nil {
				logger.L().Warnf("Failed to send trailing text: chat_id=%d, err=%v", group.ChatID, err)
			}
		}
		return id, nil
	}
}

// buttonMarkup 构造内联按钮，并推进该群的轮换游标
// 每次重发都推进一格，与作者是谁无关
func (s *Service) buttonMarkup(group *models.NormalizerGroup, senderID int64) botModels.ReplyMarkup {
	if group.ButtonsCount == models.ButtonsNone {
		return nil
	}

	var row []botModels.InlineKeyboardButton

	if senderID != 0 {
		index := s.nextRotationIndex(group.ChatID)
		row = append(row, botModels.InlineKeyboardButton{
			Text: group.ButtonText(index),
			URL:  fmt.Sprintf("tg://user?id=%d", senderID),
		})
	}

	if group.ButtonsCount >= models.ButtonsDouble && group.Button2Text != "" && group.Button2URL != "" {
		row = append(row, botModels.InlineKeyboardButton{
			Text: group.Button2Text,
			URL:  group.Button2URL,
		})
	}

	if len(row) == 0 {
		return nil
	}
	return &botModels.InlineKeyboardMarkup{
		InlineKeyboard: [][]botModels.InlineKeyboardButton{row},
	}
}

// nextRotationIndex 取当前轮换游标并后移一格
func (s *Service) nextRotationIndex(chatID int64) int {
	s.rotMu.Lock()
	defer s.rotMu.Unlock()

	index := s.rotation[chatID]
	s.rotation[chatID] = index + 1
	return index
}

// removeOriginal 删除原帖并清理留痕（查重/配额拒绝路径）
func (s *Service) removeOriginal(ctx context.Context, key MessageKey) {
	if err := s.transport.DeleteMessage(ctx, key.ChatID, key.MessageID); err != nil {
		logger.L().Warnf("Failed to delete rejected message: chat_id=%d, message_id=%d, err=%v",
			key.ChatID, key.MessageID, err)
	}
	s.dropRecord(ctx, key)
}

// dropRecord 清理历史留痕，失败只记日志
func (s *Service) dropRecord(ctx context.Context, key MessageKey) {
	if err := s.messages.Delete(ctx, key.ChatID, key.MessageID); err != nil {
		logger.L().Warnf("Failed to drop message record: chat_id=%d, message_id=%d, err=%v",
			key.ChatID, key.MessageID, err)
	}
}

// appendSuffix 在正文末尾追加群组后缀
// 原有格式 span 全部保留，后缀本身不带格式
func appendSuffix(body string, entities []botModels.MessageEntity, suffix string) (string, []botModels.MessageEntity) {
	if suffix == "" {
		return body, entities
	}
	if body == "" {
		return suffix, entities
	}
	return body + "\n\n" + suffix, entities
}

// jitteredDelay 在 [base, base+JitterSeconds] 内均匀抽取实际延迟
func jitteredDelay(baseSeconds int) time.Duration {
	if baseSeconds < 1 {
		baseSeconds = 1
	}
	jitter := rand.Intn(models.JitterSeconds + 1)
	return time.Duration(baseSeconds+jitter) * time.Second
}
