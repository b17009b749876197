package normalizer

import (
	"encoding/json"
	"time"

	"normalizer_bot/internal/logger"
	"normalizer_bot/internal/telegram/models"

	botModels "github.com/go-telegram/bot/models"
)

// MessageKey 待处理表的键
type MessageKey struct {
	ChatID    int64
	MessageID int
}

// Snapshot 进线时捕获的消息快照
// 延迟窗口内不再回源拉取，后续所有阶段都基于该快照
type Snapshot struct {
	Key           MessageKey
	SenderID      int64 // 频道署名帖无发送者时为 0
	ForwardFromID int64 // 转发来源用户 ID，非转发或来源隐藏时为 0
	Text          string
	Caption       string
	Entities      []botModels.MessageEntity
	Media         Media
	MediaGroupID  string
}

// Content 取正文：text 优先，其次 caption
func (s *Snapshot) Content() string {
	if s.Text != "" {
		return s.Text
	}
	return s.Caption
}

// HasContent 是否携带可处理内容（文本、说明或媒体）
func (s *Snapshot) HasContent() bool {
	return s.Text != "" || s.Caption != "" || s.Media.Kind != MediaNone
}

// SnapshotFromMessage 从传输层消息构建快照
func SnapshotFromMessage(m *botModels.Message) *Snapshot {
	s := &Snapshot{
		Key:          MessageKey{ChatID: m.Chat.ID, MessageID: m.ID},
		Text:         m.Text,
		Caption:      m.Caption,
		Media:        extractMedia(m),
		MediaGroupID: m.MediaGroupID,
	}

	if m.From != nil {
		s.SenderID = m.From.ID
	}
	if m.ForwardOrigin != nil && m.ForwardOrigin.Type == botModels.MessageOriginTypeUser {
		if origin := m.ForwardOrigin.MessageOriginUser; origin != nil {
			s.ForwardFromID = origin.SenderUser.ID
		}
	}

	if len(m.Entities) > 0 {
		s.Entities = m.Entities
	} else {
		s.Entities = m.CaptionEntities
	}

	return s
}

// SnapshotFromStored 从历史留痕还原快照（批量归一化用）
func SnapshotFromStored(m *models.Message) *Snapshot {
	s := &Snapshot{
		Key:           MessageKey{ChatID: m.ChatID, MessageID: m.MessageID},
		SenderID:      m.SenderID,
		ForwardFromID: m.ForwardFromID,
		Text:          m.Text,
		Caption:       m.Caption,
		Media:         Media{Kind: MediaKind(m.MediaKind), FileID: m.MediaFileID},
	}

	if len(m.EntitiesJSON) > 0 {
		if err := json.Unmarshal(m.EntitiesJSON, &s.Entities); err != nil {
			// 格式 span 丢失不阻塞处理，退化为无格式转发
			logger.L().Warnf("Failed to decode stored entities: chat_id=%d, message_id=%d, err=%v", m.ChatID, m.MessageID, err)
		}
	}

	return s
}

// StoredFromSnapshot 将快照转为历史留痕记录
func StoredFromSnapshot(s *Snapshot, sentAt time.Time) *models.Message {
	m := &models.Message{
		ChatID:        s.Key.ChatID,
		MessageID:     s.Key.MessageID,
		SenderID:      s.SenderID,
		ForwardFromID: s.ForwardFromID,
		Text:          s.Text,
		Caption:       s.Caption,
		MediaKind:     string(s.Media.Kind),
		MediaFileID:   s.Media.FileID,
		SentAt:        sentAt,
	}

	if len(s.Entities) > 0 {
		if data, err := json.Marshal(s.Entities); err == nil {
			m.EntitiesJSON = data
		}
	}

	return m
}
