package service

import (
	"time"

	"github.com/yuqie6/MirrorQuest/internal/schema"
)

// StreakState 连续打卡状态（评估器输入）
type StreakState struct {
	Current        int
	Longest        int
	LastActiveDate string // 空表示从未活跃
}

// StreakTracker 按本地日历日计算连续天数
type StreakTracker struct {
	policy ExpPolicy
	loc    *time.Location
}

// NewStreakTracker loc 为 nil 时使用 time.Local
func NewStreakTracker(policy ExpPolicy, loc *time.Location) *StreakTracker {
	if loc == nil {
		loc = time.Local
	}
	return &StreakTracker{policy: policy, loc: loc}
}

// Location 日期判定使用的时区
func (t *StreakTracker) Location() *time.Location {
	return t.loc
}

// DateString now 在配置时区下的日历日
func (t *StreakTracker) DateString(now time.Time) string {
	return now.In(t.loc).Format(schema.DateLayout)
}

// EvaluateOnActivation 同一天重复调用无变化；昨天活跃则 +1；否则（断档或首次）重置为 1。
// 返回是否修改了档案。
func (t *StreakTracker) EvaluateOnActivation(p *schema.RewardProfile, now time.Time) bool {
	local := now.In(t.loc)
	today := local.Format(schema.DateLayout)
	if p.LastActiveDate != nil && *p.LastActiveDate == today {
		return false
	}

	y, m, d := local.Date()
	yesterday := time.Date(y, m, d-1, 12, 0, 0, 0, t.loc).Format(schema.DateLayout)

	if p.LastActiveDate != nil && *p.LastActiveDate == yesterday {
		p.CurrentStreak++
	} else {
		p.CurrentStreak = 1
	}
	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}
	p.LastActiveDate = &today
	return true
}

// StreakBonus 委托给经验策略
func (t *StreakTracker) StreakBonus(currentStreak int) int {
	return t.policy.StreakBonus(currentStreak)
}

// State 当前连续状态视图
func (t *StreakTracker) State(p *schema.RewardProfile) StreakState {
	s := StreakState{Current: p.CurrentStreak, Longest: p.LongestStreak}
	if p.LastActiveDate != nil {
		s.LastActiveDate = *p.LastActiveDate
	}
	return s
}
