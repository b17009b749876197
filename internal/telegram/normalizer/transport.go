package normalizer

import (
	"context"

	botModels "github.com/go-telegram/bot/models"
)

// ChatInfo 聊天基本信息（渲染邀请模板、拼帖子链接用）
type ChatInfo struct {
	ID        int64
	Title     string
	Username  string
	FirstName string
	LastName  string
}

// Transport 消息传输层契约
// 核心管线只依赖该接口；Telegram Bot API 适配器在 internal/telegram 实现
type Transport interface {
	// DeleteMessage 删除消息
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error

	// MessageExists 探测消息是否仍然存在
	MessageExists(ctx context.Context, chatID int64, messageID int) (bool, error)

	// SendText 发送纯文本消息，返回新消息 ID
	SendText(ctx context.Context, chatID int64, text string, entities []botModels.MessageEntity, markup botModels.ReplyMarkup) (int, error)

	// SendMedia 按媒体类型原样重发，返回新消息 ID
	SendMedia(ctx context.Context, chatID int64, media Media, caption string, entities []botModels.MessageEntity, markup botModels.ReplyMarkup) (int, error)

	// CopyMessage 通用复制兜底（未知媒体、相册成员），返回新消息 ID
	CopyMessage(ctx context.Context, chatID, fromChatID int64, messageID int, caption string, entities []botModels.MessageEntity, markup botModels.ReplyMarkup) (int, error)

	// SendDirect 给用户发私信
	SendDirect(ctx context.Context, userID int64, text string) error

	// IsChatMember 用户是否为群成员（member/administrator/creator 视为在群）
	IsChatMember(ctx context.Context, chatID, userID int64) (bool, error)

	// GetChatInfo 查询聊天信息（对用户 ID 调用可取到资料，需 Bot 见过该用户）
	GetChatInfo(ctx context.Context, chatID int64) (*ChatInfo, error)
}
