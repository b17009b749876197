package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DuplicateWindow 去重比较窗口：只有 3 天内的指纹视为存活
const DuplicateWindow = 3 * 24 * time.Hour

// PostHash 已接受转发帖的内容指纹，按 (chat_id, message_hash) 唯一
// 仅在消息成功转发后写入；物理清理由 TTL 索引完成
type PostHash struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ChatID      int64              `bson:"chat_id"`
	MessageHash string             `bson:"message_hash"` // sha256(text + "|" + media_id) 的十六进制
	CreatedAt   time.Time          `bson:"created_at"`
}
