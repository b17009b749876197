package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthorQuota 作者发帖计数器，按 (chat_id, user_id) 唯一
// 作者首次发帖时惰性创建，不会自动删除
type AuthorQuota struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	ChatID int64              `bson:"chat_id"`
	UserID int64              `bson:"user_id"`

	PostsToday    int `bson:"posts_today"`
	PostsThisWeek int `bson:"posts_this_week"`

	LastDayReset  time.Time `bson:"last_day_reset"`  // 上次按日清零的日期
	LastWeekReset time.Time `bson:"last_week_reset"` // 上次按 ISO 周清零的日期

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// ResetIfNeeded 跨日/跨 ISO 周时将对应计数清零
// 两个检查相互独立，都会执行；必须在读取计数判断限额之前调用
// 返回是否发生了清零（需要持久化）
func (q *AuthorQuota) ResetIfNeeded(now time.Time) bool {
	changed := false

	today := truncateToDay(now)
	if truncateToDay(q.LastDayReset).Before(today) {
		q.PostsToday = 0
		q.LastDayReset = today
		changed = true
	}

	curYear, curWeek := now.ISOWeek()
	lastYear, lastWeek := q.LastWeekReset.ISOWeek()
	if curYear > lastYear || (curYear == lastYear && curWeek != lastWeek) {
		q.PostsThisWeek = 0
		q.LastWeekReset = today
		changed = true
	}

	return changed
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
