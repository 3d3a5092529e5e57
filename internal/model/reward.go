package model

import "time"

// ActionKind 触发奖励的用户动作类型
type ActionKind string

const (
	ActionTask       ActionKind = "task"       // 完成任务
	ActionFocus      ActionKind = "focus"      // 完成一次专注
	ActionBreadcrumb ActionKind = "breadcrumb" // 解决一个 breadcrumb
)

// IsValid 是否为已知动作
func (a ActionKind) IsValid() bool {
	switch a {
	case ActionTask, ActionFocus, ActionBreadcrumb:
		return true
	default:
		return false
	}
}

// LevelDefinition 等级表中的一行
type LevelDefinition struct {
	Level       int    `json:"level" yaml:"level"`
	XPThreshold int    `json:"xp_threshold" yaml:"xp_threshold"`
	Title       string `json:"title" yaml:"title"`
}

// RequirementKind 成就条件类型
type RequirementKind string

const (
	RequirementTasks       RequirementKind = "tasks"
	RequirementSessions    RequirementKind = "sessions"
	RequirementStreak      RequirementKind = "streak"
	RequirementBreadcrumbs RequirementKind = "breadcrumbs"
	RequirementSpecial     RequirementKind = "special"
)

// Requirement 成就条件：计数型使用 Count，special 使用 Special 指向命名谓词
type Requirement struct {
	Kind    RequirementKind `json:"kind" yaml:"kind"`
	Count   int             `json:"count,omitempty" yaml:"count,omitempty"`
	Special string          `json:"special,omitempty" yaml:"special,omitempty"`
}

// AchievementDefinition 成就定义（静态目录）
type AchievementDefinition struct {
	ID          string      `json:"id" yaml:"id"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description" yaml:"description"`
	Icon        string      `json:"icon,omitempty" yaml:"icon,omitempty"`
	Requirement Requirement `json:"requirement" yaml:"requirement"`
	XPReward    int         `json:"xp_reward" yaml:"xp_reward"`
}

// ThemeDefinition 主题定义，达到 RequiredLevel 后解锁
type ThemeDefinition struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	RequiredLevel int    `json:"required_level" yaml:"required_level"`
}

// RewardType 待展示奖励的类型
type RewardType string

const (
	RewardXP          RewardType = "xp"
	RewardAchievement RewardType = "achievement"
)

// PendingReward 等待 UI 消费的奖励事件
type PendingReward struct {
	ID          string                 `json:"id"`
	Type        RewardType             `json:"type"`
	Amount      int                    `json:"amount,omitempty"`
	Achievement *AchievementDefinition `json:"achievement,omitempty"`
	Reason      string                 `json:"reason"`
	CreatedAt   time.Time              `json:"created_at"`
}

// LevelUpEvent 升级信号，携带本次到达的最高等级
type LevelUpEvent struct {
	PreviousLevel int             `json:"previous_level"`
	Level         LevelDefinition `json:"level"`
	TotalXP       int             `json:"total_xp"`
}
