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

// MongoBatchJobRepository 批量归一化任务数据访问层（MongoDB 实现）
type MongoBatchJobRepository struct {
	collection *mongo.Collection
}

// NewMongoBatchJobRepository 创建批量任务 Repository
func NewMongoBatchJobRepository(db *mongo.Database) BatchJobRepository {
	return &MongoBatchJobRepository{
		collection: db.Collection("batch_jobs"),
	}
}

// Get 获取群组的任务记录
func (r *MongoBatchJobRepository) Get(ctx context.Context, chatID int64) (*models.BatchJob, error) {
	var job models.BatchJob
	err := r.collection.FindOne(ctx, bson.M{"chat_id": chatID}).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get batch job: %w", err)
	}
	return &job, nil
}

// TryStart 原子抢占任务
// 以 is_running=false（或不存在）为条件做 upsert，两个并发触发只有一个能成功
func (r *MongoBatchJobRepository) TryStart(ctx context.Context, chatID int64, taskID string, batchSize int, now time.Time) (*models.BatchJob, bool, error) {
	filter := bson.M{
		"chat_id":    chatID,
		"is_running": bson.M{"$ne": true},
	}
	// 总数依赖已有进度，抢占后由 UpdateProgress 落库
	update := bson.M{
		"$set": bson.M{
			"is_running":    true,
			"batch_size":    batchSize,
			"task_id":       taskID,
			"error_message": "",
			"last_run_at":   now,
			"updated_at":    now,
		},
		"$setOnInsert": bson.M{
			"processed_messages": 0,
			"total_messages":     0,
			"created_at":         now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var job models.BatchJob
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job); err != nil {
		// 过滤条件不匹配且 upsert 撞唯一索引：任务已在运行
		if err == mongo.ErrNoDocuments || mongo.IsDuplicateKeyError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to start batch job: %w", err)
	}

	return &job, true, nil
}

// UpdateProgress 更新已处理数与总数
// 续跑时总数 = 历史累计 + 本轮剩余，与累计进度一起写入
func (r *MongoBatchJobRepository) UpdateProgress(ctx context.Context, chatID int64, processed, total int) error {
	filter := bson.M{"chat_id": chatID}
	update := bson.M{
		"$set": bson.M{
			"processed_messages": processed,
			"total_messages":     total,
			"updated_at":         time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update batch progress: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("batch job not found: chat_id=%d", chatID)
	}

	return nil
}

// Finish 清除运行标记并记录错误信息
// 成功与失败路径都必须走到这里，保证 is_running 不会悬挂
func (r *MongoBatchJobRepository) Finish(ctx context.Context, chatID int64, errMsg string) error {
	filter := bson.M{"chat_id": chatID}
	update := bson.M{
		"$set": bson.M{
			"is_running":    false,
			"error_message": errMsg,
			"updated_at":    time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to finish batch job: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("batch job not found: chat_id=%d", chatID)
	}

	return nil
}

// EnsureIndexes 确保索引存在
func (r *MongoBatchJobRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chat_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
