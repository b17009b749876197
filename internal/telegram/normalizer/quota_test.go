package normalizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"normalizer_bot/internal/telegram/models"
)

// stubQuotaRepo 内存版配额存储，service 测试也复用
type stubQuotaRepo struct {
	mu     sync.Mutex
	rows   map[[2]int64]*models.AuthorQuota
	getErr error
	capErr error
}

func newStubQuotaRepo() *stubQuotaRepo {
	return &stubQuotaRepo{rows: make(map[[2]int64]*models.AuthorQuota)}
}

func (r *stubQuotaRepo) GetOrCreate(ctx context.Context, chatID, userID int64, now time.Time) (*models.AuthorQuota, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := [2]int64{chatID, userID}
	if row, ok := r.rows[key]; ok {
		copied := *row
		return &copied, nil
	}

	row := &models.AuthorQuota{
		ChatID:        chatID,
		UserID:        userID,
		LastDayReset:  now,
		LastWeekReset: now,
	}
	r.rows[key] = row
	copied := *row
	return &copied, nil
}

func (r *stubQuotaRepo) Save(ctx context.Context, quota *models.AuthorQuota) error {
	if r.capErr != nil {
		return r.capErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *quota
	r.rows[[2]int64{quota.ChatID, quota.UserID}] = &copied
	return nil
}

func (r *stubQuotaRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (r *stubQuotaRepo) row(chatID, userID int64) *models.AuthorQuota {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[[2]int64{chatID, userID}]
}

func testGroup(limitDay, limitWeek int) *models.NormalizerGroup {
	return &models.NormalizerGroup{
		ChatID:         -1001234567890,
		IsActive:       true,
		DelaySeconds:   60,
		LimitPostsDay:  limitDay,
		LimitPostsWeek: limitWeek,
	}
}

func TestQuotaTrackerAllowsAndIncrements(t *testing.T) {
	repo := newStubQuotaRepo()
	tracker := NewQuotaTracker(repo)
	group := testGroup(3, 10)
	now := time.Now()

	for i := 0; i < 3; i++ {
		verdict, err := tracker.CheckAndReserve(context.Background(), group, 42, now)
		if err != nil {
			t.Fatalf("CheckAndReserve failed: %v", err)
		}
		if verdict != VerdictAllowed {
			t.Fatalf("post %d: expected allowed, got %s", i+1, verdict)
		}
	}

	row := repo.row(group.ChatID, 42)
	if row.PostsToday != 3 || row.PostsThisWeek != 3 {
		t.Fatalf("expected counters 3/3, got %d/%d", row.PostsToday, row.PostsThisWeek)
	}
}

func TestQuotaTrackerDayLimit(t *testing.T) {
	repo := newStubQuotaRepo()
	tracker := NewQuotaTracker(repo)
	group := testGroup(2, 0)
	now := time.Now()

	for i := 0; i < 2; i++ {
		if verdict, _ := tracker.CheckAndReserve(context.Background(), group, 42, now); verdict != VerdictAllowed {
			t.Fatalf("post %d: expected allowed, got %s", i+1, verdict)
		}
	}

	verdict, err := tracker.CheckAndReserve(context.Background(), group, 42, now)
	if err != nil {
		t.Fatalf("CheckAndReserve failed: %v", err)
	}
	if verdict != VerdictDayLimitExceeded {
		t.Fatalf("expected day limit exceeded, got %s", verdict)
	}

	// 拒绝不消耗名额
	row := repo.row(group.ChatID, 42)
	if row.PostsToday != 2 {
		t.Fatalf("expected counter unchanged at 2, got %d", row.PostsToday)
	}
}

func TestQuotaTrackerWeekLimit(t *testing.T) {
	repo := newStubQuotaRepo()
	tracker := NewQuotaTracker(repo)
	group := testGroup(0, 1)
	now := time.Now()

	if verdict, _ := tracker.CheckAndReserve(context.Background(), group, 7, now); verdict != VerdictAllowed {
		t.Fatalf("expected first post allowed, got %s", verdict)
	}

	verdict, err := tracker.CheckAndReserve(context.Background(), group, 7, now)
	if err != nil {
		t.Fatalf("CheckAndReserve failed: %v", err)
	}
	if verdict != VerdictWeekLimitExceeded {
		t.Fatalf("expected week limit exceeded, got %s", verdict)
	}
}

func TestQuotaTrackerZeroMeansUnlimited(t *testing.T) {
	repo := newStubQuotaRepo()
	tracker := NewQuotaTracker(repo)
	group := testGroup(0, 0)
	now := time.Now()

	for i := 0; i < 50; i++ {
		verdict, err := tracker.CheckAndReserve(context.Background(), group, 42, now)
		if err != nil {
			t.Fatalf("CheckAndReserve failed: %v", err)
		}
		if verdict != VerdictAllowed {
			t.Fatalf("post %d: expected allowed, got %s", i+1, verdict)
		}
	}
}

func TestQuotaTrackerResetsAcrossDay(t *testing.T) {
	repo := newStubQuotaRepo()
	tracker := NewQuotaTracker(repo)
	group := testGroup(1, 0)

	day1 := time.Date(2026, 8, 25, 23, 0, 0, 0, time.UTC)
	if verdict, _ := tracker.CheckAndReserve(context.Background(), group, 42, day1); verdict != VerdictAllowed {
		t.Fatalf("day1: expected allowed, got %s", verdict)
	}
	if verdict, _ := tracker.CheckAndReserve(context.Background(), group, 42, day1); verdict != VerdictDayLimitExceeded {
		t.Fatalf("day1: expected day limit exceeded, got %s", verdict)
	}

	// 次日凌晨，日计数清零
	day2 := time.Date(2026, 8, 26, 0, 30, 0, 0, time.UTC)
	verdict, err := tracker.CheckAndReserve(context.Background(), group, 42, day2)
	if err != nil {
		t.Fatalf("CheckAndReserve failed: %v", err)
	}
	if verdict != VerdictAllowed {
		t.Fatalf("day2: expected allowed after reset, got %s", verdict)
	}
}

func TestQuotaTrackerWeekSurvivesDayReset(t *testing.T) {
	repo := newStubQuotaRepo()
	tracker := NewQuotaTracker(repo)
	group := testGroup(0, 2)

	// 同一 ISO 周内的两天
	day1 := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) // Tuesday
	day2 := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) // Wednesday

	if verdict, _ := tracker.CheckAndReserve(context.Background(), group, 42, day1); verdict != VerdictAllowed {
		t.Fatalf("day1: expected allowed, got %s", verdict)
	}
	if verdict, _ := tracker.CheckAndReserve(context.Background(), group, 42, day2); verdict != VerdictAllowed {
		t.Fatalf("day2: expected allowed, got %s", verdict)
	}

	verdict, _ := tracker.CheckAndReserve(context.Background(), group, 42, day2)
	if verdict != VerdictWeekLimitExceeded {
		t.Fatalf("expected week limit exceeded across day boundary, got %s", verdict)
	}

	// 下一 ISO 周（周一），周计数清零
	nextWeek := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	if verdict, _ := tracker.CheckAndReserve(context.Background(), group, 42, nextWeek); verdict != VerdictAllowed {
		t.Fatalf("next week: expected allowed after reset, got %s", verdict)
	}
}

func TestQuotaTrackerNegativeCounterRejected(t *testing.T) {
	repo := newStubQuotaRepo()
	repo.rows[[2]int64{-1001234567890, 42}] = &models.AuthorQuota{
		ChatID:        -1001234567890,
		UserID:        42,
		PostsToday:    -1,
		LastDayReset:  time.Now(),
		LastWeekReset: time.Now(),
	}

	tracker := NewQuotaTracker(repo)
	verdict, err := tracker.CheckAndReserve(context.Background(), testGroup(5, 5), 42, time.Now())
	if err != nil {
		t.Fatalf("CheckAndReserve failed: %v", err)
	}
	if verdict != VerdictStateViolation {
		t.Fatalf("expected state violation, got %s", verdict)
	}
}

func TestQuotaTrackerRepoError(t *testing.T) {
	repo := newStubQuotaRepo()
	repo.getErr = errors.New("mongo down")

	tracker := NewQuotaTracker(repo)
	if _, err := tracker.CheckAndReserve(context.Background(), testGroup(5, 5), 42, time.Now()); err == nil {
		t.Fatalf("expected error but got nil")
	}
}

func TestQuotaTrackerSerializesSameAuthor(t *testing.T) {
	repo := newStubQuotaRepo()
	tracker := NewQuotaTracker(repo)
	group := testGroup(10, 0)
	now := time.Now()

	var wg sync.WaitGroup
	allowed := make(chan Verdict, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			verdict, err := tracker.CheckAndReserve(context.Background(), group, 42, now)
			if err != nil {
				t.Errorf("CheckAndReserve failed: %v", err)
				return
			}
			allowed <- verdict
		}()
	}
	wg.Wait()
	close(allowed)

	var pass int
	for verdict := range allowed {
		if verdict == VerdictAllowed {
			pass++
		}
	}

	// 临界区串行化后恰好放行到限额为止
	if pass != 10 {
		t.Fatalf("expected exactly 10 allowed, got %d", pass)
	}
	if row := repo.row(group.ChatID, 42); row.PostsToday != 10 {
		t.Fatalf("expected counter 10, got %d", row.PostsToday)
	}
}
