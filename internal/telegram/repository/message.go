package repository

import (
	"context"
	"fmt"
	"time"

	"normalizer_bot/internal/telegram/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMessageRepository 消息历史数据访问层（MongoDB 实现）
type MongoMessageRepository struct {
	collection *mongo.Collection
}

// NewMongoMessageRepository 创建消息历史 Repository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &MongoMessageRepository{
		collection: db.Collection("messages"),
	}
}

// Upsert 写入或更新消息留痕
func (r *MongoMessageRepository) Upsert(ctx context.Context, message *models.Message) error {
	now := time.Now()
	message.UpdatedAt = now

	filter := bson.M{
		"chat_id":    message.ChatID,
		"message_id": message.MessageID,
	}

	update := bson.M{
		"$set": bson.M{
			"sender_id":       message.SenderID,
			"forward_from_id": message.ForwardFromID,
			"text":            message.Text,
			"caption":         message.Caption,
			"media_kind":      message.MediaKind,
			"media_file_id":   message.MediaFileID,
			"entities_json":   message.EntitiesJSON,
			"sent_at":         message.SentAt,
			"updated_at":      message.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert message: %w", err)
	}

	return nil
}

// CountByChat 统计群组留痕消息总数
func (r *MongoMessageRepository) CountByChat(ctx context.Context, chatID int64) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"chat_id": chatID})
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// ListByChatAfter 按消息 ID 升序列出群组消息，从 afterMessageID 之后开始
// 游标翻页，已处理并删除的行不会影响后续批次的定位
func (r *MongoMessageRepository) ListByChatAfter(ctx context.Context, chatID int64, afterMessageID int, limit int64) ([]*models.Message, error) {
	filter := bson.M{
		"chat_id":    chatID,
		"message_id": bson.M{"$gt": afterMessageID},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "message_id", Value: 1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	return messages, nil
}

// Delete 删除单条留痕
func (r *MongoMessageRepository) Delete(ctx context.Context, chatID int64, messageID int) error {
	filter := bson.M{"chat_id": chatID, "message_id": messageID}

	if _, err := r.collection.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}

// EnsureIndexes 确保索引存在
func (r *MongoMessageRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "chat_id", Value: 1},
				{Key: "message_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "chat_id", Value: 1},
				{Key: "sent_at", Value: -1},
			},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
