package service

import (
	"github.com/yuqie6/MirrorQuest/internal/model"
	"github.com/yuqie6/MirrorQuest/internal/schema"
)

// ProfileSnapshot 展示用的只读档案视图
type ProfileSnapshot struct {
	Level          int
	Title          string
	XP             int
	TotalXP        int
	XPIntoLevel    int
	XPToNextLevel  int
	NextLevel      *model.LevelDefinition
	ProgressPct    float64
	IsMaxLevel     bool
	CurrentStreak  int
	LongestStreak  int
	LastActiveDate string
	Stats          schema.RewardStats
	Achievements   []string
	Unlocked       []model.AchievementDefinition
	SelectedTheme  string
	Themes         []ThemeStatus
}

// ThemeStatus 主题及其解锁状态
type ThemeStatus struct {
	model.ThemeDefinition
	Unlocked bool
	Selected bool
}

// AchievementStatus 成就及其解锁状态
type AchievementStatus struct {
	model.AchievementDefinition
	Unlocked bool
}

// RecordResult 一次记录动作的结果（仅供展示，记录本身不会失败）
type RecordResult struct {
	Action        model.ActionKind
	BaseXP        int
	StreakBonus   int
	XPAwarded     int // 含成就奖励
	Achievements  []model.AchievementDefinition
	LevelUp       *model.LevelUpEvent
	TotalXP       int
	Level         int
	CurrentStreak int
}

// PersistenceHealth 持久化健康状况
type PersistenceHealth struct {
	Failing     bool // 最近一次写入失败
	LastSavedAt int64
	SaveErrors  int64
	LastErrorAt int64
	LastError   string
}

// OK 最近一次写入是否成功
func (h PersistenceHealth) OK() bool {
	return !h.Failing
}

func buildSnapshot(p *schema.RewardProfile, rules RewardRules) ProfileSnapshot {
	prog := rules.Levels.Progress(p.TotalXP)
	snap := ProfileSnapshot{
		Level:         prog.Current.Level,
		Title:         prog.Current.Title,
		XP:            p.XP,
		TotalXP:       p.TotalXP,
		XPIntoLevel:   prog.XPIntoLevel,
		XPToNextLevel: prog.XPToNext,
		NextLevel:     prog.Next,
		ProgressPct:   prog.ProgressPct,
		IsMaxLevel:    prog.Next == nil,
		CurrentStreak: p.CurrentStreak,
		LongestStreak: p.LongestStreak,
		Stats:         p.Stats,
		Achievements:  append([]string{}, p.Achievements...),
		SelectedTheme: p.SelectedTheme,
	}
	if p.LastActiveDate != nil {
		snap.LastActiveDate = *p.LastActiveDate
	}
	// 存储中未知的成就 id 保留在集合里，但不出现在详情中
	for _, id := range p.Achievements {
		if def, ok := rules.Achievements.Get(id); ok {
			snap.Unlocked = append(snap.Unlocked, def)
		}
	}
	for _, t := range rules.Themes.All() {
		snap.Themes = append(snap.Themes, ThemeStatus{
			ThemeDefinition: t,
			Unlocked:        prog.Current.Level >= t.RequiredLevel,
			Selected:        t.ID == p.SelectedTheme,
		})
	}
	return snap
}
