package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/yuqie6/MirrorQuest/internal/model"
	"github.com/yuqie6/MirrorQuest/internal/schema"
	"go.yaml.in/yaml/v3"
)

const defaultThemeID = schema.DefaultThemeID

// RewardRules 奖励配置数据：数值、等级表、成就与主题目录。构建后不可变。
type RewardRules struct {
	Policy        DefaultExpPolicy
	EarlyBirdHour int
	NightOwlHour  int
	Levels        LevelTable
	Achievements  AchievementCatalog
	Themes        ThemeCatalog
}

// RulesFile 规则文件（YAML）。缺省字段沿用内置默认值。
type RulesFile struct {
	BaseXP        map[model.ActionKind]int      `yaml:"base_xp"`
	PerDayBonus   *int                          `yaml:"per_day_bonus"`
	BonusCap      *int                          `yaml:"bonus_cap"`
	EarlyBirdHour *int                          `yaml:"early_bird_hour"`
	NightOwlHour  *int                          `yaml:"night_owl_hour"`
	Levels        []model.LevelDefinition       `yaml:"levels"`
	Achievements  []model.AchievementDefinition `yaml:"achievements"`
	Themes        []model.ThemeDefinition       `yaml:"themes"`
}

// DefaultLevels 内置等级表
func DefaultLevels() []model.LevelDefinition {
	return []model.LevelDefinition{
		{Level: 1, XPThreshold: 0, Title: "Novice"},
		{Level: 2, XPThreshold: 100, Title: "Apprentice"},
		{Level: 3, XPThreshold: 250, Title: "Explorer"},
		{Level: 4, XPThreshold: 500, Title: "Achiever"},
		{Level: 5, XPThreshold: 1000, Title: "Expert"},
		{Level: 6, XPThreshold: 2000, Title: "Master"},
		{Level: 7, XPThreshold: 3500, Title: "Grandmaster"},
		{Level: 8, XPThreshold: 5500, Title: "Legend"},
		{Level: 9, XPThreshold: 8000, Title: "Mythic"},
		{Level: 10, XPThreshold: 12000, Title: "Transcendent"},
	}
}

// DefaultAchievements 内置成就目录（顺序即授予顺序）
func DefaultAchievements() []model.AchievementDefinition {
	count := func(kind model.RequirementKind, n int) model.Requirement {
		return model.Requirement{Kind: kind, Count: n}
	}
	special := func(name string) model.Requirement {
		return model.Requirement{Kind: model.RequirementSpecial, Special: name}
	}
	return []model.AchievementDefinition{
		{ID: "first_task", Title: "First Steps", Description: "Complete your first task", Icon: "✅", Requirement: count(model.RequirementTasks, 1), XPReward: 50},
		{ID: "tasks_10", Title: "Getting Things Done", Description: "Complete 10 tasks", Icon: "📋", Requirement: count(model.RequirementTasks, 10), XPReward: 100},
		{ID: "tasks_50", Title: "Task Master", Description: "Complete 50 tasks", Icon: "🏆", Requirement: count(model.RequirementTasks, 50), XPReward: 250},
		{ID: "first_focus", Title: "In the Zone", Description: "Finish your first focus session", Icon: "🎯", Requirement: count(model.RequirementSessions, 1), XPReward: 50},
		{ID: "focus_10", Title: "Deep Worker", Description: "Finish 10 focus sessions", Icon: "🧠", Requirement: count(model.RequirementSessions, 10), XPReward: 150},
		{ID: "first_breadcrumb", Title: "Back on Track", Description: "Resolve your first breadcrumb", Icon: "🍞", Requirement: count(model.RequirementBreadcrumbs, 1), XPReward: 30},
		{ID: "breadcrumbs_25", Title: "Loose Ends", Description: "Resolve 25 breadcrumbs", Icon: "🧵", Requirement: count(model.RequirementBreadcrumbs, 25), XPReward: 200},
		{ID: "streak_3", Title: "On a Roll", Description: "Stay active 3 days in a row", Icon: "🔥", Requirement: count(model.RequirementStreak, 3), XPReward: 75},
		{ID: "streak_7", Title: "Week Warrior", Description: "Stay active 7 days in a row", Icon: "📅", Requirement: count(model.RequirementStreak, 7), XPReward: 200},
		{ID: "streak_30", Title: "Unstoppable", Description: "Stay active 30 days in a row", Icon: "💎", Requirement: count(model.RequirementStreak, 30), XPReward: 1000},
		{ID: "early_bird", Title: "Early Bird", Description: "Complete a task before the morning cutoff", Icon: "🌅", Requirement: special(SpecialEarlyBird), XPReward: 100},
		{ID: "night_owl", Title: "Night Owl", Description: "Finish a focus session late at night", Icon: "🦉", Requirement: special(SpecialNightOwl), XPReward: 100},
	}
}

// DefaultThemes 内置主题
func DefaultThemes() []model.ThemeDefinition {
	return []model.ThemeDefinition{
		{ID: defaultThemeID, Name: "Default", RequiredLevel: 1},
		{ID: "ocean", Name: "Ocean", RequiredLevel: 3},
		{ID: "forest", Name: "Forest", RequiredLevel: 5},
		{ID: "sunset", Name: "Sunset", RequiredLevel: 7},
		{ID: "galaxy", Name: "Galaxy", RequiredLevel: 10},
	}
}

// DefaultRulesFile 内置规则的文件形式（可用于生成示例规则文件）
func DefaultRulesFile() RulesFile {
	perDay, bonusCap, early, night := 10, 50, 9, 22
	return RulesFile{
		BaseXP: map[model.ActionKind]int{
			model.ActionTask:       25,
			model.ActionFocus:      40,
			model.ActionBreadcrumb: 15,
		},
		PerDayBonus:   &perDay,
		BonusCap:      &bonusCap,
		EarlyBirdHour: &early,
		NightOwlHour:  &night,
		Levels:        DefaultLevels(),
		Achievements:  DefaultAchievements(),
		Themes:        DefaultThemes(),
	}
}

// DefaultRewardRules 内置规则
func DefaultRewardRules() RewardRules {
	r, err := DefaultRulesFile().Build()
	if err != nil {
		panic(err)
	}
	return r
}

// Build 在内置默认值之上叠加文件内容并校验
func (f RulesFile) Build() (RewardRules, error) {
	def := DefaultRulesFile()

	base := make(map[model.ActionKind]int, len(def.BaseXP))
	for k, v := range def.BaseXP {
		base[k] = v
	}
	for k, v := range f.BaseXP {
		if !k.IsValid() {
			return RewardRules{}, fmt.Errorf("%w: 未知动作 %q", ErrInvalidRules, k)
		}
		if v < 0 {
			return RewardRules{}, fmt.Errorf("%w: 动作 %s 的基础经验为负", ErrInvalidRules, k)
		}
		base[k] = v
	}

	pick := func(v, fallback *int) int {
		if v != nil {
			return *v
		}
		return *fallback
	}
	perDay := pick(f.PerDayBonus, def.PerDayBonus)
	bonusCap := pick(f.BonusCap, def.BonusCap)
	early := pick(f.EarlyBirdHour, def.EarlyBirdHour)
	night := pick(f.NightOwlHour, def.NightOwlHour)
	if perDay < 0 || bonusCap < 0 {
		return RewardRules{}, fmt.Errorf("%w: 连续奖励参数不能为负", ErrInvalidRules)
	}
	if early < 0 || early > 24 || night < 0 || night > 24 {
		return RewardRules{}, fmt.Errorf("%w: 小时需在 0..24 之间", ErrInvalidRules)
	}

	levelDefs := def.Levels
	if len(f.Levels) > 0 {
		levelDefs = f.Levels
	}
	achDefs := def.Achievements
	if f.Achievements != nil {
		achDefs = f.Achievements
	}
	themeDefs := def.Themes
	if len(f.Themes) > 0 {
		themeDefs = f.Themes
	}

	levels, err := NewLevelTable(levelDefs)
	if err != nil {
		return RewardRules{}, err
	}
	achievements, err := NewAchievementCatalog(achDefs)
	if err != nil {
		return RewardRules{}, err
	}
	themes, err := NewThemeCatalog(themeDefs)
	if err != nil {
		return RewardRules{}, err
	}

	return RewardRules{
		Policy:        DefaultExpPolicy{Base: base, PerDayBonus: perDay, BonusCap: bonusCap},
		EarlyBirdHour: early,
		NightOwlHour:  night,
		Levels:        levels,
		Achievements:  achievements,
		Themes:        themes,
	}, nil
}

// ParseRules 解析 YAML 规则；空内容等价于内置规则
func ParseRules(r io.Reader) (RewardRules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return RewardRules{}, fmt.Errorf("读取规则失败: %w", err)
	}
	var f RulesFile
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return RewardRules{}, fmt.Errorf("%w: 解析规则失败: %v", ErrInvalidRules, err)
		}
	}
	return f.Build()
}

// LoadRulesFile 从文件加载规则
func LoadRulesFile(path string) (RewardRules, error) {
	f, err := os.Open(path)
	if err != nil {
		return RewardRules{}, fmt.Errorf("打开规则文件失败: %w", err)
	}
	defer f.Close()
	return ParseRules(f)
}

// WriteRulesFile 把规则文件写到磁盘（用于生成可编辑的示例）
func WriteRulesFile(path string, f RulesFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("序列化规则失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入规则文件失败: %w", err)
	}
	return nil
}

// BaseXP 动作基础经验
func (r RewardRules) BaseXP(action model.ActionKind) int {
	return r.Policy.BaseXP(action)
}

// Specials 按规则中的小时阈值构造 special 谓词
func (r RewardRules) Specials() map[string]SpecialPredicate {
	return DefaultSpecialPredicates(r.EarlyBirdHour, r.NightOwlHour)
}
