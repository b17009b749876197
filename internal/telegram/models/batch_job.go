package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BatchJob 历史消息批量归一化任务，每个群组一条
type BatchJob struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	ChatID int64              `bson:"chat_id"`

	BatchSize         int  `bson:"batch_size"`
	TotalMessages     int  `bson:"total_messages"`
	ProcessedMessages int  `bson:"processed_messages"` // 不变式：processed <= total；重入时从该值续跑
	IsRunning         bool `bson:"is_running"`         // 成功与失败都必须清除

	LastRunAt    *time.Time `bson:"last_run_at,omitempty"`
	ErrorMessage string     `bson:"error_message,omitempty"`
	TaskID       string     `bson:"task_id,omitempty"` // 外部任务引用（uuid）

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// ProgressPercent 完成百分比，total 为 0 时返回 0
func (j *BatchJob) ProgressPercent() float64 {
	if j.TotalMessages == 0 {
		return 0
	}
	p := float64(j.ProcessedMessages) / float64(j.TotalMessages) * 100
	if p > 100 {
		return 100
	}
	return p
}
