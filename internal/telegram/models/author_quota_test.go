package models

import (
	"testing"
	"time"
)

func TestResetIfNeededSameDayNoop(t *testing.T) {
	now := time.Date(2026, 8, 26, 15, 0, 0, 0, time.UTC)
	q := &AuthorQuota{
		PostsToday:    3,
		PostsThisWeek: 7,
		LastDayReset:  time.Date(2026, 8, 26, 1, 0, 0, 0, time.UTC),
		LastWeekReset: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
	}

	if q.ResetIfNeeded(now) {
		t.Fatalf("same day and week must not reset")
	}
	if q.PostsToday != 3 || q.PostsThisWeek != 7 {
		t.Fatalf("counters changed unexpectedly: %d/%d", q.PostsToday, q.PostsThisWeek)
	}
}

func TestResetIfNeededDayBoundary(t *testing.T) {
	// 周三跨到周四，同一 ISO 周
	now := time.Date(2026, 8, 27, 0, 5, 0, 0, time.UTC)
	q := &AuthorQuota{
		PostsToday:    3,
		PostsThisWeek: 7,
		LastDayReset:  time.Date(2026, 8, 26, 23, 0, 0, 0, time.UTC),
		LastWeekReset: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
	}

	if !q.ResetIfNeeded(now) {
		t.Fatalf("expected day reset")
	}
	if q.PostsToday != 0 {
		t.Fatalf("expected day counter reset, got %d", q.PostsToday)
	}
	if q.PostsThisWeek != 7 {
		t.Fatalf("week counter must survive day reset, got %d", q.PostsThisWeek)
	}
}

func TestResetIfNeededWeekBoundary(t *testing.T) {
	// 周日跨到周一
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	q := &AuthorQuota{
		PostsToday:    2,
		PostsThisWeek: 9,
		LastDayReset:  time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		LastWeekReset: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
	}

	if !q.ResetIfNeeded(now) {
		t.Fatalf("expected reset across week boundary")
	}
	if q.PostsToday != 0 || q.PostsThisWeek != 0 {
		t.Fatalf("expected both counters reset, got %d/%d", q.PostsToday, q.PostsThisWeek)
	}
}

func TestResetIfNeededYearBoundary(t *testing.T) {
	// 2026-12-28 与 2027-01-01 同属 ISO 2026-W53，周计数不清零
	now := time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC)
	q := &AuthorQuota{
		PostsThisWeek: 4,
		LastDayReset:  time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		LastWeekReset: time.Date(2026, 12, 28, 0, 0, 0, 0, time.UTC),
	}

	if !q.ResetIfNeeded(now) {
		t.Fatalf("expected day reset")
	}
	if q.PostsThisWeek != 4 {
		t.Fatalf("same ISO week across year must keep week counter, got %d", q.PostsThisWeek)
	}
}
