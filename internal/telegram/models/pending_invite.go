package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 邀请状态常量
// 状态机：pending → invited → joined 为正常路径
// joined / skipped 为终态，不再转移
const (
	InviteStatusPending = "pending" // 已登记，等待后续检查
	InviteStatusInvited = "invited" // 邀请私信已成功送达
	InviteStatusJoined  = "joined"  // 检查时发现已入群
	InviteStatusSkipped = "skipped" // 超过重试期限，放弃
)

// InviteCheckAfter 登记满该时长后，周期扫描才开始做成员检查
const InviteCheckAfter = 7 * 24 * time.Hour

// InviteGiveUpAfter 登记满该时长仍未入群则转为 skipped
const InviteGiveUpAfter = 30 * 24 * time.Hour

// PendingInvite 转发内容原作者的邀请跟踪记录，按 (chat_id, user_id) 唯一
type PendingInvite struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	ChatID int64              `bson:"chat_id"`
	UserID int64              `bson:"user_id"`

	Status    string     `bson:"status"`
	AddedAt   time.Time  `bson:"added_at"`
	InvitedAt *time.Time `bson:"invited_at,omitempty"`
}

// IsTerminal 是否处于终态
func (p *PendingInvite) IsTerminal() bool {
	return p.Status == InviteStatusJoined || p.Status == InviteStatusSkipped
}
