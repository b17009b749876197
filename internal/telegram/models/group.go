package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JitterSeconds 延迟抖动窗口：实际延迟在 [DelaySeconds, DelaySeconds+120] 内均匀抽取
const JitterSeconds = 120

// 按钮数量取值
const (
	ButtonsNone   = 0 // 不附加按钮
	ButtonsSingle = 1 // 仅轮换按钮
	ButtonsDouble = 2 // 轮换按钮 + 固定按钮
)

// defaultButtonCycle 按钮轮换的默认文案（未配置 button_rotation_texts 时使用）
var defaultButtonCycle = []string{"联系作者", "作者主页", "找TA反馈", "作者联系方式"}

// DefaultInviteText 邀请私信的默认模板
const DefaultInviteText = "你好，{author_name}（@{author_username}）！\n" +
	"你的内容已发布到群组 {group_name}。\n\n" +
	"帖子链接：{post_link}\n" +
	"群规：{rules_link}\n" +
	"欢迎以后直接来群里发帖 :)"

// NormalizerGroup 归一化群组配置
// 由外部管理端维护，核心流程只读
type NormalizerGroup struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	ChatID int64              `bson:"chat_id"` // Telegram Chat ID（超级群为负数，唯一）

	IsActive bool `bson:"is_active"` // 是否启用归一化

	DelaySeconds int `bson:"delay_seconds"` // 延迟基数（秒，>=1）

	LimitPostsDay  int `bson:"limit_posts_day"`  // 每日发帖上限，0 = 不限制
	LimitPostsWeek int `bson:"limit_posts_week"` // 每周发帖上限，0 = 不限制

	SuffixText string `bson:"suffix_text,omitempty"` // 追加到每个转发帖末尾的文本

	ButtonsCount        int      `bson:"buttons_count"`                  // 按钮数量：0/1/2
	ButtonRotationTexts []string `bson:"button_rotation_texts,omitempty"` // 按钮1的轮换文案列表
	Button2Text         string   `bson:"button2_text,omitempty"`         // 按钮2的固定文案
	Button2URL          string   `bson:"button2_url,omitempty"`          // 按钮2的链接

	InviteEnabled bool   `bson:"invite_enabled"`       // 是否给转发内容原作者发邀请
	InviteText    string `bson:"invite_text,omitempty"` // 邀请模板，占位符：{author_name} {author_username} {group_name} {post_link} {rules_link}
	RulesLink     string `bson:"rules_link,omitempty"`  // 群规链接

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Validate 校验配置合法性
func (g *NormalizerGroup) Validate() error {
	if g.ChatID >= 0 {
		return fmt.Errorf("chat_id must be negative for supergroups, got %d", g.ChatID)
	}
	if g.DelaySeconds < 1 {
		return fmt.Errorf("delay_seconds must be >= 1, got %d", g.DelaySeconds)
	}
	if g.LimitPostsDay < 0 || g.LimitPostsWeek < 0 {
		return fmt.Errorf("post limits must be >= 0")
	}
	if g.ButtonsCount < ButtonsNone || g.ButtonsCount > ButtonsDouble {
		return fmt.Errorf("buttons_count must be 0, 1 or 2, got %d", g.ButtonsCount)
	}
	return nil
}

// ButtonText 返回轮换索引对应的按钮文案
func (g *NormalizerGroup) ButtonText(index int) string {
	cycle := g.ButtonRotationTexts
	if len(cycle) == 0 {
		cycle = defaultButtonCycle
	}
	if index < 0 {
		index = 0
	}
	return cycle[index%len(cycle)]
}

// InviteTemplate 返回邀请模板，未配置时使用默认模板
func (g *NormalizerGroup) InviteTemplate() string {
	if g.InviteText == "" {
		return DefaultInviteText
	}
	return g.InviteText
}
