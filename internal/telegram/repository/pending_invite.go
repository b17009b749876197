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

// MongoPendingInviteRepository 邀请跟踪数据访问层（MongoDB 实现）
type MongoPendingInviteRepository struct {
	collection *mongo.Collection
}

// NewMongoPendingInviteRepository 创建邀请跟踪 Repository
func NewMongoPendingInviteRepository(db *mongo.Database) PendingInviteRepository {
	return &MongoPendingInviteRepository{
		collection: db.Collection("pending_invites"),
	}
}

// GetOrCreate 原子获取或以 pending 状态创建记录
// 已有记录（不论状态）原样返回，保证幂等
func (r *MongoPendingInviteRepository) GetOrCreate(ctx context.Context, chatID, userID int64, now time.Time) (*models.PendingInvite, error) {
	filter := bson.M{"chat_id": chatID, "user_id": userID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"status":   models.InviteStatusPending,
			"added_at": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var invite models.PendingInvite
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&invite); err != nil {
		return nil, fmt.Errorf("failed to get or create pending invite: %w", err)
	}

	return &invite, nil
}

// TransitionStatus 仅当当前状态为 from 时迁移到 to
// 条件更新保证终态（joined/skipped）不会被并发扫描回退
func (r *MongoPendingInviteRepository) TransitionStatus(ctx context.Context, chatID, userID int64, from, to string, invitedAt *time.Time) (bool, error) {
	filter := bson.M{
		"chat_id": chatID,
		"user_id": userID,
		"status":  from,
	}

	set := bson.M{"status": to}
	if invitedAt != nil {
		set["invited_at"] = *invitedAt
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to transition invite status: %w", err)
	}

	return result.MatchedCount > 0, nil
}

// ListAwaitingAddedBefore 列出 added_at 早于 cutoff 且仍在等待的记录
// pending 与 invited 都参与扫描，终态不再出现在结果里
func (r *MongoPendingInviteRepository) ListAwaitingAddedBefore(ctx context.Context, cutoff time.Time) ([]*models.PendingInvite, error) {
	filter := bson.M{
		"status":   bson.M{"$in": bson.A{models.InviteStatusPending, models.InviteStatusInvited}},
		"added_at": bson.M{"$lte": cutoff},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invites: %w", err)
	}
	defer cursor.Close(ctx)

	var invites []*models.PendingInvite
	if err := cursor.All(ctx, &invites); err != nil {
		return nil, fmt.Errorf("failed to decode pending invites: %w", err)
	}

	return invites, nil
}

// EnsureIndexes 确保索引存在
func (r *MongoPendingInviteRepository) EnsureIndexes(ctx context.Context) error {
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
				{Key: "status", Value: 1},
				{Key: "added_at", Value: 1},
			},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
