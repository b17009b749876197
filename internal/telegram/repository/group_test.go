package repository

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoGroupRepositoryGetActiveByChatID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		repo := &MongoGroupRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(
			0,
			groupNamespace(mt),
			mtest.FirstBatch,
			bson.D{
				{Key: "chat_id", Value: int64(-1001234567890)},
				{Key: "is_active", Value: true},
				{Key: "delay_seconds", Value: 60},
				{Key: "limit_posts_day", Value: 5},
			},
		))

		group, err := repo.GetActiveByChatID(context.Background(), -1001234567890)
		if err != nil {
			t.Fatalf("GetActiveByChatID failed: %v", err)
		}
		if group == nil {
			t.Fatalf("expected group, got nil")
		}
		if group.DelaySeconds != 60 || group.LimitPostsDay != 5 {
			t.Fatalf("unexpected group: %+v", group)
		}
	})

	mt.Run("missing returns nil", func(mt *mtest.T) {
		repo := &MongoGroupRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(
			0,
			groupNamespace(mt),
			mtest.FirstBatch,
		))

		group, err := repo.GetActiveByChatID(context.Background(), -100999)
		if err != nil {
			t.Fatalf("GetActiveByChatID failed: %v", err)
		}
		if group != nil {
			t.Fatalf("expected nil for missing group, got %+v", group)
		}
	})
}

func TestMongoGroupRepositoryListActiveChatIDs(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("collects ids", func(mt *mtest.T) {
		repo := &MongoGroupRepository{collection: mt.Coll}

		first := mtest.CreateCursorResponse(
			1,
			groupNamespace(mt),
			mtest.FirstBatch,
			bson.D{
				{Key: "chat_id", Value: int64(-100)},
				{Key: "is_active", Value: true},
			},
			bson.D{
				{Key: "chat_id", Value: int64(-200)},
				{Key: "is_active", Value: true},
			},
		)
		getMore := mtest.CreateCursorResponse(0, groupNamespace(mt), mtest.NextBatch)
		mt.AddMockResponses(first, getMore)

		ids, err := repo.ListActiveChatIDs(context.Background())
		if err != nil {
			t.Fatalf("ListActiveChatIDs failed: %v", err)
		}
		if len(ids) != 2 || ids[0] != -100 || ids[1] != -200 {
			t.Fatalf("unexpected ids: %v", ids)
		}
	})
}

func groupNamespace(mt *mtest.T) string {
	return mt.DB.Name() + "." + mt.Coll.Name()
}
