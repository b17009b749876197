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

// MongoGroupRepository 群组配置数据访问层（MongoDB 实现）
type MongoGroupRepository struct {
	collection *mongo.Collection
}

// NewMongoGroupRepository 创建群组配置 Repository
func NewMongoGroupRepository(db *mongo.Database) GroupRepository {
	return &MongoGroupRepository{
		collection: db.Collection("normalizer_groups"),
	}
}

// GetActiveByChatID 获取启用中的群组配置
func (r *MongoGroupRepository) GetActiveByChatID(ctx context.Context, chatID int64) (*models.NormalizerGroup, error) {
	filter := bson.M{"chat_id": chatID, "is_active": true}

	var group models.NormalizerGroup
	err := r.collection.FindOne(ctx, filter).Decode(&group)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group config: %w", err)
	}

	return &group, nil
}

// ListActiveChatIDs 列出所有启用群组的 chat_id
func (r *MongoGroupRepository) ListActiveChatIDs(ctx context.Context) ([]int64, error) {
	filter := bson.M{"is_active": true}
	opts := options.Find().SetProjection(bson.M{"chat_id": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list active groups: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []int64
	for cursor.Next(ctx) {
		var doc struct {
			ChatID int64 `bson:"chat_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode group: %w", err)
		}
		ids = append(ids, doc.ChatID)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return ids, nil
}

// CreateOrUpdate 创建或更新群组配置
func (r *MongoGroupRepository) CreateOrUpdate(ctx context.Context, group *models.NormalizerGroup) error {
	if err := group.Validate(); err != nil {
		return fmt.Errorf("invalid group config: %w", err)
	}

	now := time.Now()
	group.UpdatedAt = now

	filter := bson.M{"chat_id": group.ChatID}
	update := bson.M{
		"$set": bson.M{
			"is_active":             group.IsActive,
			"delay_seconds":         group.DelaySeconds,
			"limit_posts_day":       group.LimitPostsDay,
			"limit_posts_week":      group.LimitPostsWeek,
			"suffix_text":           group.SuffixText,
			"buttons_count":         group.ButtonsCount,
			"button_rotation_texts": group.ButtonRotationTexts,
			"button2_text":          group.Button2Text,
			"button2_url":           group.Button2URL,
			"invite_enabled":        group.InviteEnabled,
			"invite_text":           group.InviteText,
			"rules_link":            group.RulesLink,
			"updated_at":            group.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to create or update group config: %w", err)
	}

	return nil
}

// EnsureIndexes 确保索引存在
func (r *MongoGroupRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chat_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "is_active", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
