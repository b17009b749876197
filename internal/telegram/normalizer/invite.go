package normalizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"normalizer_bot/internal/logger"
	"normalizer_bot/internal/telegram/models"
	"normalizer_bot/internal/telegram/repository"
)

// InviteManager 转发来源作者的邀请跟踪
// 发现转发帖时给原作者私信邀请入群，并记录待定邀请，
// 后续由定时扫描确认是否入群。
type InviteManager struct {
	transport Transport
	invites   repository.PendingInviteRepository
	authors   repository.AuthorRepository
}

// NewInviteManager 创建邀请管理器
func NewInviteManager(transport Transport, invites repository.PendingInviteRepository, authors repository.AuthorRepository) *InviteManager {
	return &InviteManager{
		transport: transport,
		invites:   invites,
		authors:   authors,
	}
}

// OnForwardDetected 处理一条已归一化的转发帖
// 私信投递与记录创建互相独立：私信失败不影响记录，记录失败不拦截私信
func (m *InviteManager) OnForwardDetected(ctx context.Context, group *models.NormalizerGroup, authorID int64, repostID int) {
	if !group.InviteEnabled {
		return
	}

	text := m.renderInvite(ctx, group, authorID, repostID)

	delivered := true
	if err := m.transport.SendDirect(ctx, authorID, text); err != nil {
		// 未和 Bot 对话过的用户收不到私信，属常态
		delivered = false
		logger.L().Infof("Invite delivery failed: user_id=%d, err=%v", authorID, err)
	}

	member, err := m.transport.IsChatMember(ctx, group.ChatID, authorID)
	if err != nil {
		logger.L().Debugf("Membership check failed, assuming non-member: chat_id=%d, user_id=%d, err=%v",
			group.ChatID, authorID, err)
		member = false
	}
	if member {
		return
	}

	now := time.Now()
	invite, err := m.invites.GetOrCreate(ctx, group.ChatID, authorID, now)
	if err != nil {
		logger.L().Errorf("Failed to record pending invite: chat_id=%d, user_id=%d, err=%v",
			group.ChatID, authorID, err)
		return
	}

	if delivered && invite.Status == models.InviteStatusPending {
		if _, err := m.invites.TransitionStatus(ctx, group.ChatID, authorID,
			models.InviteStatusPending, models.InviteStatusInvited, &now); err != nil {
			logger.L().Errorf("Failed to mark invite as delivered: chat_id=%d, user_id=%d, err=%v",
				group.ChatID, authorID, err)
		}
	}
}

// SweepPending 扫描等待中的邀请记录
// 已入群的迁移到 joined；超过放弃期限仍未入群的迁移到 skipped。
// 返回 (扫描数, 入群数, 放弃数)。
func (m *InviteManager) SweepPending(ctx context.Context, now time.Time) (int, int, int, error) {
	cutoff := now.Add(-models.InviteCheckAfter)
	giveUp := now.Add(-models.InviteGiveUpAfter)

	list, err := m.invites.ListAwaitingAddedBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to list pending invites: %w", err)
	}

	var joined, skipped int
	for _, inv := range list {
		if ctx.Err() != nil {
			return len(list), joined, skipped, ctx.Err()
		}

		member, err := m.transport.IsChatMember(ctx, inv.ChatID, inv.UserID)
		if err != nil {
			logger.L().Warnf("Membership check failed during sweep: chat_id=%d, user_id=%d, err=%v",
				inv.ChatID, inv.UserID, err)
			continue
		}

		switch {
		case member:
			ok, err := m.invites.TransitionStatus(ctx, inv.ChatID, inv.UserID,
				inv.Status, models.InviteStatusJoined, nil)
			if err != nil {
				logger.L().Errorf("Failed to mark invite as joined: chat_id=%d, user_id=%d, err=%v",
					inv.ChatID, inv.UserID, err)
				continue
			}
			if ok {
				joined++
				logger.L().Infof("Invited author joined: chat_id=%d, user_id=%d", inv.ChatID, inv.UserID)
			}
		case inv.AddedAt.Before(giveUp):
			ok, err := m.invites.TransitionStatus(ctx, inv.ChatID, inv.UserID,
				inv.Status, models.InviteStatusSkipped, nil)
			if err != nil {
				logger.L().Errorf("Failed to mark invite as skipped: chat_id=%d, user_id=%d, err=%v",
					inv.ChatID, inv.UserID, err)
				continue
			}
			if ok {
				skipped++
			}
		}
	}

	return len(list), joined, skipped, nil
}

// renderInvite 渲染邀请文案，占位符尽力填充，取不到的退化为通用称呼
func (m *InviteManager) renderInvite(ctx context.Context, group *models.NormalizerGroup, authorID int64, repostID int) string {
	name, username := m.lookupAuthor(ctx, authorID)

	groupName := "群组"
	var groupUsername string
	if info, err := m.transport.GetChatInfo(ctx, group.ChatID); err == nil && info != nil {
		if info.Title != "" {
			groupName = info.Title
		}
		groupUsername = info.Username
	}

	replacer := strings.NewReplacer(
		"{author_name}", name,
		"{author_username}", username,
		"{group_name}", groupName,
		"{post_link}", permalink(group.ChatID, groupUsername, repostID),
		"{rules_link}", group.RulesLink,
	)
	return replacer.Replace(group.InviteTemplate())
}

// lookupAuthor 取作者称呼：本地快照优先，其次向 Telegram 查询
func (m *InviteManager) lookupAuthor(ctx context.Context, authorID int64) (name, username string) {
	name = "朋友"

	if author, err := m.authors.GetByUserID(ctx, authorID); err == nil && author != nil {
		if display := author.DisplayName(); display != "" {
			name = display
		}
		return name, author.Username
	}

	if info, err := m.transport.GetChatInfo(ctx, authorID); err == nil && info != nil {
		display := strings.TrimSpace(info.FirstName + " " + info.LastName)
		if display != "" {
			name = display
		}
		return name, info.Username
	}

	return name, ""
}

// permalink 拼接群内帖子的公开链接
// 公开群走用户名，私有超级群走 t.me/c/ 内部链接（去掉 -100 前缀）
func permalink(chatID int64, chatUsername string, messageID int) string {
	if chatUsername != "" {
		return fmt.Sprintf("https://t.me/%s/%d", chatUsername, messageID)
	}

	internal := fmt.Sprintf("%d", chatID)
	internal = strings.TrimPrefix(internal, "-100")
	internal = strings.TrimPrefix(internal, "-")
	return fmt.Sprintf("https://t.me/c/%s/%d", internal, messageID)
}
