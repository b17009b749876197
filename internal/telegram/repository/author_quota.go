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

// MongoAuthorQuotaRepository 作者配额数据访问层（MongoDB 实现）
type MongoAuthorQuotaRepository struct {
	collection *mongo.Collection
}

// NewMongoAuthorQuotaRepository 创建作者配额 Repository
func NewMongoAuthorQuotaRepository(db *mongo.Database) AuthorQuotaRepository {
	return &MongoAuthorQuotaRepository{
		collection: db.Collection("author_quotas"),
	}
}

// GetOrCreate 原子获取或创建配额行
// 依赖 (chat_id, user_id) 唯一索引，upsert 保证并发下只会创建一条
func (r *MongoAuthorQuotaRepository) GetOrCreate(ctx context.Context, chatID, userID int64, now time.Time) (*models.AuthorQuota, error) {
	filter := bson.M{"chat_id": chatID, "user_id": userID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"posts_today":     0,
			"posts_this_week": 0,
			"last_day_reset":  now,
			"last_week_reset": now,
			"created_at":      now,
			"updated_at":      now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var quota models.AuthorQuota
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&quota); err != nil {
		return nil, fmt.Errorf("failed to get or create author quota: %w", err)
	}

	return &quota, nil
}

// Save 持久化计数与清零标记
func (r *MongoAuthorQuotaRepository) Save(ctx context.Context, quota *models.AuthorQuota) error {
	quota.UpdatedAt = time.Now()

	filter := bson.M{"chat_id": quota.ChatID, "user_id": quota.UserID}
	update := bson.M{
		"$set": bson.M{
			"posts_today":     quota.PostsToday,
			"posts_this_week": quota.PostsThisWeek,
			"last_day_reset":  quota.LastDayReset,
			"last_week_reset": quota.LastWeekReset,
			"updated_at":      quota.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to save author quota: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("author quota not found: chat_id=%d, user_id=%d", quota.ChatID, quota.UserID)
	}

	return nil
}

// EnsureIndexes 确保索引存在
func (r *MongoAuthorQuotaRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "chat_id", Value: 1},
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "last_day_reset", Value: 1},
				{Key: "last_week_reset", Value: 1},
			},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
