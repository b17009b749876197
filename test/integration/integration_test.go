//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	mongoclient "normalizer_bot/internal/mongo"
	"normalizer_bot/internal/telegram/models"
	"normalizer_bot/internal/telegram/repository"

	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

func TestNormalizerRepositoriesIntegrationFlow(t *testing.T) {
	t.Parallel()

	db := setupIntegrationDatabase(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const chatID = int64(-1001234567890)
	now := time.Now().UTC().Truncate(time.Second)

	groupRepo := repository.NewMongoGroupRepository(db)
	if err := groupRepo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("failed to ensure group indexes: %v", err)
	}

	group := &models.NormalizerGroup{
		ChatID:       chatID,
		IsActive:     true,
		DelaySeconds: 60,
	}
	if err := groupRepo.CreateOrUpdate(ctx, group); err != nil {
		t.Fatalf("failed to create group config: %v", err)
	}

	loaded, err := groupRepo.GetActiveByChatID(ctx, chatID)
	if err != nil {
		t.Fatalf("failed to load group config: %v", err)
	}
	if loaded == nil || loaded.DelaySeconds != 60 {
		t.Fatalf("unexpected group config: %+v", loaded)
	}

	hashRepo := repository.NewMongoPostHashRepository(db)
	if err := hashRepo.EnsureIndexes(ctx, 4); err != nil {
		t.Fatalf("failed to ensure hash indexes: %v", err)
	}

	if err := hashRepo.Create(ctx, chatID, "digest-1", now); err != nil {
		t.Fatalf("failed to create hash: %v", err)
	}
	if err := hashRepo.Create(ctx, chatID, "digest-1", now); !errors.Is(err, repository.ErrDuplicateHash) {
		t.Fatalf("expected ErrDuplicateHash on second insert, got %v", err)
	}
	found, err := hashRepo.Exists(ctx, chatID, "digest-1", now.Add(-models.DuplicateWindow))
	if err != nil {
		t.Fatalf("failed to check hash: %v", err)
	}
	if !found {
		t.Fatalf("expected hash to exist within window")
	}

	inviteRepo := repository.NewMongoPendingInviteRepository(db)
	if err := inviteRepo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("failed to ensure invite indexes: %v", err)
	}

	invite, err := inviteRepo.GetOrCreate(ctx, chatID, 777, now.Add(-8*24*time.Hour))
	if err != nil {
		t.Fatalf("failed to create invite: %v", err)
	}
	if invite.Status != models.InviteStatusPending {
		t.Fatalf("expected pending status, got %q", invite.Status)
	}

	ok, err := inviteRepo.TransitionStatus(ctx, chatID, 777, models.InviteStatusPending, models.InviteStatusJoined, nil)
	if err != nil {
		t.Fatalf("failed to transition invite: %v", err)
	}
	if !ok {
		t.Fatalf("expected transition to succeed")
	}
	// 终态不再回退
	ok, err = inviteRepo.TransitionStatus(ctx, chatID, 777, models.InviteStatusPending, models.InviteStatusInvited, nil)
	if err != nil {
		t.Fatalf("failed to re-transition invite: %v", err)
	}
	if ok {
		t.Fatalf("terminal state must not transition again")
	}

	messageRepo := repository.NewMongoMessageRepository(db)
	if err := messageRepo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("failed to ensure message indexes: %v", err)
	}

	for i := 1; i <= 3; i++ {
		record := &models.Message{
			ChatID:    chatID,
			MessageID: i,
			SenderID:  42,
			Text:      fmt.Sprintf("message %d", i),
			SentAt:    now.Add(time.Duration(i) * time.Minute),
		}
		if err := messageRepo.Upsert(ctx, record); err != nil {
			t.Fatalf("failed to upsert message %d: %v", i, err)
		}
	}

	count, err := messageRepo.CountByChat(ctx, chatID)
	if err != nil {
		t.Fatalf("failed to count messages: %v", err)
	}
	if count != 3 {
		t.Fatalf("unexpected message count: got %d, want 3", count)
	}

	page, err := messageRepo.ListByChatAfter(ctx, chatID, 1, 10)
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(page) != 2 || page[0].MessageID != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}

	if err := messageRepo.Delete(ctx, chatID, 2); err != nil {
		t.Fatalf("failed to delete message: %v", err)
	}
	if count, _ = messageRepo.CountByChat(ctx, chatID); count != 2 {
		t.Fatalf("expected 2 messages after delete, got %d", count)
	}

	jobRepo := repository.NewMongoBatchJobRepository(db)
	if err := jobRepo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("failed to ensure batch job indexes: %v", err)
	}

	job, started, err := jobRepo.TryStart(ctx, chatID, "task-1", 100, now)
	if err != nil {
		t.Fatalf("failed to start batch job: %v", err)
	}
	if !started || !job.IsRunning {
		t.Fatalf("expected job to be claimed")
	}

	if err := jobRepo.UpdateProgress(ctx, chatID, 60, 100); err != nil {
		t.Fatalf("failed to update batch progress: %v", err)
	}

	if _, started, err = jobRepo.TryStart(ctx, chatID, "task-2", 100, now); err != nil {
		t.Fatalf("second TryStart failed: %v", err)
	} else if started {
		t.Fatalf("running job must not be claimed twice")
	}

	if err := jobRepo.Finish(ctx, chatID, ""); err != nil {
		t.Fatalf("failed to finish batch job: %v", err)
	}
	finished, err := jobRepo.Get(ctx, chatID)
	if err != nil {
		t.Fatalf("failed to get batch job: %v", err)
	}
	if finished.IsRunning {
		t.Fatalf("expected running flag cleared")
	}
	if finished.ProcessedMessages != 60 || finished.TotalMessages != 100 {
		t.Fatalf("expected progress 60/100 preserved, got %d/%d",
			finished.ProcessedMessages, finished.TotalMessages)
	}
}

func setupIntegrationDatabase(t *testing.T) *mongodriver.Database {
	t.Helper()

	uri := envOrDefault("MONGO_URI", "mongodb://localhost:27017")
	baseDatabase := envOrDefault("TEST_DATABASE", "test_normalizer_bot")
	databaseName := fmt.Sprintf("%s_%d", baseDatabase, time.Now().UnixNano())

	client, err := mongoclient.NewClient(mongoclient.Config{
		URI:      uri,
		Database: databaseName,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		if isCIEnvironment() {
			t.Fatalf("failed to connect MongoDB in CI: %v", err)
		}
		t.Skipf("MongoDB is not available locally, skip integration test: %v", err)
		return nil
	}

	db := client.Database()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := db.Drop(ctx); err != nil {
			t.Errorf("failed to drop integration database %s: %v", databaseName, err)
		}
		if err := client.Close(ctx); err != nil {
			t.Errorf("failed to close MongoDB connection: %v", err)
		}
	})

	return db
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func isCIEnvironment() bool {
	return os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
}
