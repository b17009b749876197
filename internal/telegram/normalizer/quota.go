package normalizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"normalizer_bot/internal/telegram/models"
	"normalizer_bot/internal/telegram/repository"
)

// Verdict 配额检查结论
type Verdict int

const (
	VerdictAllowed Verdict = iota
	VerdictDayLimitExceeded
	VerdictWeekLimitExceeded
	VerdictStateViolation // 配额行数据异常，按拒绝处理（宁可不转发）
)

// String 返回结论的可读名称
func (v Verdict) String() string {
	switch v {
	case VerdictAllowed:
		return "allowed"
	case VerdictDayLimitExceeded:
		return "day_limit_exceeded"
	case VerdictWeekLimitExceeded:
		return "week_limit_exceeded"
	case VerdictStateViolation:
		return "state_violation"
	default:
		return "unknown"
	}
}

// QuotaTracker 作者配额跟踪器
// 读取-清零-检查-递增对同一 (chat_id, user_id) 是逻辑临界区，
// 用按键互斥锁串行化，防止同一作者并发发帖读到过期计数双双通过
type QuotaTracker struct {
	repo repository.AuthorQuotaRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewQuotaTracker 创建配额跟踪器
func NewQuotaTracker(repo repository.AuthorQuotaRepository) *QuotaTracker {
	return &QuotaTracker{
		repo:  repo,
		locks: make(map[string]*sync.Mutex),
	}
}

// CheckAndReserve 检查并预占一个发帖名额
// 流程：取行（惰性创建）→ 跨日/跨周清零 → 与群限额比较（0 = 不限制，
// 限额为含边界上限：计数已达限额即拒绝）→ 允许时两个计数各加一并持久化。
// 预占后转发失败会消耗一个名额，由调用方记录日志。
func (t *QuotaTracker) CheckAndReserve(ctx context.Context, group *models.NormalizerGroup, userID int64, now time.Time) (Verdict, error) {
	lock := t.lockFor(group.ChatID, userID)
	lock.Lock()
	defer lock.Unlock()

	quota, err := t.repo.GetOrCreate(ctx, group.ChatID, userID, now)
	if err != nil {
		return VerdictStateViolation, fmt.Errorf("failed to load quota: %w", err)
	}

	if quota.PostsToday < 0 || quota.PostsThisWeek < 0 {
		return VerdictStateViolation, nil
	}

	// 清零先于限额判断；即使随后被拒绝，清零结果也要落库
	changed := quota.ResetIfNeeded(now)

	verdict := VerdictAllowed
	switch {
	case group.LimitPostsDay > 0 && quota.PostsToday >= group.LimitPostsDay:
		verdict = VerdictDayLimitExceeded
	case group.LimitPostsWeek > 0 && quota.PostsThisWeek >= group.LimitPostsWeek:
		verdict = VerdictWeekLimitExceeded
	}

	if verdict == VerdictAllowed {
		quota.PostsToday++
		quota.PostsThisWeek++
		changed = true
	}

	if changed {
		if err := t.repo.Save(ctx, quota); err != nil {
			return VerdictStateViolation, fmt.Errorf("failed to save quota: %w", err)
		}
	}

	return verdict, nil
}

// lockFor 返回 (chat_id, user_id) 对应的互斥锁，懒创建且不回收
func (t *QuotaTracker) lockFor(chatID, userID int64) *sync.Mutex {
	key := fmt.Sprintf("%d:%d", chatID, userID)

	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[key] = lock
	}
	return lock
}
