package schema

import (
	"strings"
	"time"
)

// DateLayout 持久化记录中 lastActiveDate 的日期格式（本地日历日）
const DateLayout = "2006-01-02"

// DefaultThemeID 新档案默认主题
const DefaultThemeID = "default"

// RewardStats 累计行为计数，只增不减
type RewardStats struct {
	TasksCompleted      int `json:"tasksCompleted"`
	SessionsCompleted   int `json:"sessionsCompleted"`
	BreadcrumbsResolved int `json:"breadcrumbsResolved"`
}

// RewardProfile 用户奖励档案（单用户单条记录，整体以 JSON 存储）
type RewardProfile struct {
	XP             int         `json:"xp"`      // 会话内展示计数
	TotalXP        int         `json:"totalXp"` // 累计经验，单调不减
	Level          int         `json:"level"`   // 由 TotalXP 推导
	Achievements   []string    `json:"achievements"`
	CurrentStreak  int         `json:"currentStreak"`
	LongestStreak  int         `json:"longestStreak"`
	LastActiveDate *string     `json:"lastActiveDate"`
	Stats          RewardStats `json:"stats"`
	SelectedTheme  string      `json:"selectedTheme"`
}

// NewRewardProfile 首次启动时的零值档案
func NewRewardProfile() *RewardProfile {
	return &RewardProfile{
		Level:         1,
		Achievements:  []string{},
		SelectedTheme: DefaultThemeID,
	}
}

// Clone 深拷贝，快照与持久化都不应共享切片/指针
func (p *RewardProfile) Clone() *RewardProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Achievements = append([]string(nil), p.Achievements...)
	if cp.Achievements == nil {
		cp.Achievements = []string{}
	}
	if p.LastActiveDate != nil {
		d := *p.LastActiveDate
		cp.LastActiveDate = &d
	}
	return &cp
}

// HasAchievement 是否已获得
func (p *RewardProfile) HasAchievement(id string) bool {
	for _, a := range p.Achievements {
		if a == id {
			return true
		}
	}
	return false
}

// AchievementSet 已获得成就的集合视图
func (p *RewardProfile) AchievementSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Achievements))
	for _, a := range p.Achievements {
		set[a] = struct{}{}
	}
	return set
}

// Normalize 修正从存储读出的异常值，返回是否有改动。
// 等级不在这里推导：需要等级表，由 service 层负责。
func (p *RewardProfile) Normalize(knownThemes map[string]struct{}) bool {
	changed := false
	clampInt := func(v *int) {
		if *v < 0 {
			*v = 0
			changed = true
		}
	}
	clampInt(&p.XP)
	clampInt(&p.TotalXP)
	clampInt(&p.CurrentStreak)
	clampInt(&p.LongestStreak)
	clampInt(&p.Stats.TasksCompleted)
	clampInt(&p.Stats.SessionsCompleted)
	clampInt(&p.Stats.BreadcrumbsResolved)

	if p.LongestStreak < p.CurrentStreak {
		p.LongestStreak = p.CurrentStreak
		changed = true
	}

	if p.LastActiveDate != nil {
		d := strings.TrimSpace(*p.LastActiveDate)
		if _, err := time.Parse(DateLayout, d); err != nil {
			p.LastActiveDate = nil
			changed = true
		} else if d != *p.LastActiveDate {
			p.LastActiveDate = &d
			changed = true
		}
	}

	// 成就集合去重、去空白，保持原有顺序
	seen := make(map[string]struct{}, len(p.Achievements))
	out := make([]string, 0, len(p.Achievements))
	for _, a := range p.Achievements {
		a = strings.TrimSpace(a)
		if a == "" {
			changed = true
			continue
		}
		if _, ok := seen[a]; ok {
			changed = true
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	if p.Achievements == nil {
		changed = true
	}
	p.Achievements = out

	if p.SelectedTheme == "" {
		p.SelectedTheme = DefaultThemeID
		changed = true
	} else if knownThemes != nil {
		if _, ok := knownThemes[p.SelectedTheme]; !ok {
			p.SelectedTheme = DefaultThemeID
			changed = true
		}
	}
	return changed
}
