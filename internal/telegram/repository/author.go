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

// MongoAuthorRepository 用户资料快照数据访问层（MongoDB 实现）
type MongoAuthorRepository struct {
	collection *mongo.Collection
}

// NewMongoAuthorRepository 创建用户资料 Repository
func NewMongoAuthorRepository(db *mongo.Database) AuthorRepository {
	return &MongoAuthorRepository{
		collection: db.Collection("authors"),
	}
}

// Upsert 写入或更新用户资料
func (r *MongoAuthorRepository) Upsert(ctx context.Context, author *models.Author) error {
	now := time.Now()
	author.UpdatedAt = now

	filter := bson.M{"user_id": author.UserID}
	update := bson.M{
		"$set": bson.M{
			"username":   author.Username,
			"first_name": author.FirstName,
			"last_name":  author.LastName,
			"updated_at": author.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert author: %w", err)
	}

	return nil
}

// GetByUserID 查询用户资料
func (r *MongoAuthorRepository) GetByUserID(ctx context.Context, userID int64) (*models.Author, error) {
	var author models.Author
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&author)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get author: %w", err)
	}

	return &author, nil
}

// EnsureIndexes 确保索引存在
func (r *MongoAuthorRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
