package telegram

import (
	"context"
	"fmt"
	"strings"

	"normalizer_bot/internal/telegram/normalizer"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// botTransport Telegram Bot API 适配器，实现 normalizer.Transport
type botTransport struct {
	bot *bot.Bot
}

func newBotTransport(b *bot.Bot) normalizer.Transport {
	return &botTransport{bot: b}
}

// DeleteMessage 删除消息
func (t *botTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	ok, err := t.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if !ok {
		return fmt.Errorf("delete message returned false: chat_id=%d, message_id=%d", chatID, messageID)
	}
	return nil
}

// MessageExists 探测消息是否仍然存在
// Bot API 没有按 ID 取消息的接口，用设置空 reaction 探测：
// 消息在则成功，不在则报 message not found 类错误。
// 其余错误（网络、限流、权限）原样上抛，由调用方按瞬态失败处理
func (t *botTransport) MessageExists(ctx context.Context, chatID int64, messageID int) (bool, error) {
	ok, err := t.bot.SetMessageReaction(ctx, &bot.SetMessageReactionParams{
		ChatID:    chatID,
		MessageID: messageID,
		Reaction:  []botModels.ReactionType{},
	})
	if err != nil {
		if isMessageGoneError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to probe message: %w", err)
	}
	return ok, nil
}

// isMessageGoneError 判断探测错误是否意味着消息已不存在
func isMessageGoneError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "message to react not found") ||
		strings.Contains(msg, "message not found") ||
		strings.Contains(msg, "message can't be reacted") ||
		strings.Contains(msg, "message_id_invalid")
}

// SendText 发送纯文本消息
func (t *botTransport) SendText(ctx context.Context, chatID int64, text string, entities []botModels.MessageEntity, markup botModels.ReplyMarkup) (int, error) {
	msg, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		Entities:    entities,
		ReplyMarkup: markup,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return msg.ID, nil
}

// SendMedia 按媒体类型重发
func (t *botTransport) SendMedia(ctx context.Context, chatID int64, media normalizer.Media, caption string, entities []botModels.MessageEntity, markup botModels.ReplyMarkup) (int, error) {
	file := &botModels.InputFileString{Data: media.FileID}

	var (
		msg *botModels.Message
		err error
	)

	switch media.Kind {
	case normalizer.MediaPhoto:
		msg, err = t.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:          chatID,
			Photo:           file,
			Caption:         caption,
			CaptionEntities: entities,
			ReplyMarkup:     markup,
		})
	case normalizer.MediaVideo:
		msg, err = t.bot.SendVideo(ctx, &bot.SendVideoParams{
			ChatID:          chatID,
			Video:           file,
			Caption:         caption,
			CaptionEntities: entities,
			ReplyMarkup:     markup,
		})
	case normalizer.MediaDocument:
		msg, err = t.bot.SendDocument(ctx, &bot.SendDocumentParams{
			ChatID:          chatID,
			Document:        file,
			Caption:         caption,
			CaptionEntities: entities,
			ReplyMarkup:     markup,
		})
	case normalizer.MediaAudio:
		msg, err = t.bot.SendAudio(ctx, &bot.SendAudioParams{
			ChatID:          chatID,
			Audio:           file,
			Caption:         caption,
			CaptionEntities: entities,
			ReplyMarkup:     markup,
		})
	case normalizer.MediaVoice:
		msg, err = t.bot.SendVoice(ctx, &bot.SendVoiceParams{
			ChatID:          chatID,
			Voice:           file,
			Caption:         caption,
			CaptionEntities: entities,
			ReplyMarkup:     markup,
		})
	case normalizer.MediaVideoNote:
		msg, err = t.bot.SendVideoNote(ctx, &bot.SendVideoNoteParams{
			ChatID:      chatID,
			VideoNote:   file,
			ReplyMarkup: markup,
		})
	case normalizer.MediaSticker:
		msg, err = t.bot.SendSticker(ctx, &bot.SendStickerParams{
			ChatID:      chatID,
			Sticker:     file,
			ReplyMarkup: markup,
		})
	default:
		return 0, fmt.Errorf("unsupported media kind: %q", media.Kind)
	}

	if err != nil {
		return 0, fmt.Errorf("failed to send %s: %w", media.Kind, err)
	}
	return msg.ID, nil
}

// CopyMessage 通用复制兜底
func (t *botTransport) CopyMessage(ctx context.Context, chatID, fromChatID int64, messageID int, caption string, entities []botModels.MessageEntity, markup botModels.ReplyMarkup) (int, error) {
	id, err := t.bot.CopyMessage(ctx, &bot.CopyMessageParams{
		ChatID:          chatID,
		FromChatID:      fromChatID,
		MessageID:       messageID,
		Caption:         caption,
		CaptionEntities: entities,
		ReplyMarkup:     markup,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to copy message: %w", err)
	}
	return id.ID, nil
}

// SendDirect 给用户发私信
func (t *botTransport) SendDirect(ctx context.Context, userID int64, text string) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: userID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send direct message: %w", err)
	}
	return nil
}

// IsChatMember 用户是否为群成员
func (t *botTransport) IsChatMember(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := t.bot.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: chatID,
		UserID: userID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to get chat member: %w", err)
	}

	switch member.Type {
	case botModels.ChatMemberTypeOwner, botModels.ChatMemberTypeAdministrator, botModels.ChatMemberTypeMember:
		return true, nil
	default:
		return false, nil
	}
}

// GetChatInfo 查询聊天信息
func (t *botTransport) GetChatInfo(ctx context.Context, chatID int64) (*normalizer.ChatInfo, error) {
	chat, err := t.bot.GetChat(ctx, &bot.GetChatParams{ChatID: chatID})
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	return &normalizer.ChatInfo{
		ID:        chat.ID,
		Title:     chat.Title,
		Username:  chat.Username,
		FirstName: chat.FirstName,
		LastName:  chat.LastName,
	}, nil
}
