package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message 进线消息的历史留痕，按 (chat_id, message_id) 唯一
// 实时管线在进线时尽力写入；批量归一化以此为历史消息来源
// （Bot API 无法按范围拉取群历史）
type Message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ChatID    int64              `bson:"chat_id"`
	MessageID int                `bson:"message_id"`

	SenderID      int64  `bson:"sender_id,omitempty"`       // 频道署名帖无发送者时为 0
	ForwardFromID int64  `bson:"forward_from_id,omitempty"` // 转发来源用户 ID，非转发为 0
	Text          string `bson:"text,omitempty"`
	Caption       string `bson:"caption,omitempty"`
	MediaKind     string `bson:"media_kind,omitempty"` // photo/video/document/audio/voice/video_note/sticker
	MediaFileID   string `bson:"media_file_id,omitempty"`
	EntitiesJSON  []byte `bson:"entities_json,omitempty"` // 原始格式 span，转发时原样回放

	SentAt    time.Time `bson:"sent_at"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}
