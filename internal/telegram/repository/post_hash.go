package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPostHashRepository 内容指纹数据访问层（MongoDB 实现）
type MongoPostHashRepository struct {
	collection *mongo.Collection
}

// NewMongoPostHashRepository 创建内容指纹 Repository
func NewMongoPostHashRepository(db *mongo.Database) PostHashRepository {
	return &MongoPostHashRepository{
		collection: db.Collection("post_hashes"),
	}
}

// Exists 是否存在 since 之后写入的同 (chat_id, hash) 指纹
func (r *MongoPostHashRepository) Exists(ctx context.Context, chatID int64, hash string, since time.Time) (bool, error) {
	filter := bson.M{
		"chat_id":      chatID,
		"message_hash": hash,
		"created_at":   bson.M{"$gte": since},
	}

	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check post hash: %w", err)
	}

	return count > 0, nil
}

// Create 写入指纹
// 唯一索引冲突说明并发任务已写过同一指纹，返回 ErrDuplicateHash 由调用方按"已处理"对待
func (r *MongoPostHashRepository) Create(ctx context.Context, chatID int64, hash string, now time.Time) error {
	doc := bson.M{
		"chat_id":      chatID,
		"message_hash": hash,
		"created_at":   now,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateHash
		}
		return fmt.Errorf("failed to create post hash: %w", err)
	}

	return nil
}

// EnsureIndexes 确保索引存在
// TTL 索引做物理清理；去重窗口（3 天）由查询条件保证，retentionDays 只需不小于窗口
func (r *MongoPostHashRepository) EnsureIndexes(ctx context.Context, retentionDays int) error {
	if retentionDays < 3 {
		return fmt.Errorf("retention days must be >= 3, got %d", retentionDays)
	}

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "chat_id", Value: 1},
				{Key: "message_hash", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retentionDays) * 24 * 3600),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
