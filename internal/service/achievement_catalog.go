package service

import (
	"fmt"
	"strings"

	"github.com/yuqie6/MirrorQuest/internal/model"
)

// AchievementCatalog 成就目录，保持声明顺序（决定同一次评估中多个成就的授予顺序）
type AchievementCatalog struct {
	defs  []model.AchievementDefinition
	index map[string]int
}

// NewAchievementCatalog 校验并拷贝成就定义
func NewAchievementCatalog(defs []model.AchievementDefinition) (AchievementCatalog, error) {
	c := AchievementCatalog{
		defs:  make([]model.AchievementDefinition, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return AchievementCatalog{}, fmt.Errorf("%w: 成就 id 为空", ErrInvalidRules)
		}
		if _, dup := c.index[d.ID]; dup {
			return AchievementCatalog{}, fmt.Errorf("%w: 成就 id 重复: %s", ErrInvalidRules, d.ID)
		}
		if d.XPReward < 0 {
			return AchievementCatalog{}, fmt.Errorf("%w: 成就 %s 的奖励为负", ErrInvalidRules, d.ID)
		}
		switch d.Requirement.Kind {
		case model.RequirementTasks, model.RequirementSessions, model.RequirementStreak, model.RequirementBreadcrumbs:
			if d.Requirement.Count < 0 {
				return AchievementCatalog{}, fmt.Errorf("%w: 成就 %s 的计数为负", ErrInvalidRules, d.ID)
			}
		case model.RequirementSpecial:
			if strings.TrimSpace(d.Requirement.Special) == "" {
				return AchievementCatalog{}, fmt.Errorf("%w: 成就 %s 缺少 special 谓词", ErrInvalidRules, d.ID)
			}
		default:
			return AchievementCatalog{}, fmt.Errorf("%w: 成就 %s 的条件类型未知: %q", ErrInvalidRules, d.ID, d.Requirement.Kind)
		}
		c.index[d.ID] = len(c.defs)
		c.defs = append(c.defs, d)
	}
	return c, nil
}

// MustAchievementCatalog 用于内置目录
func MustAchievementCatalog(defs []model.AchievementDefinition) AchievementCatalog {
	c, err := NewAchievementCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// All 按声明顺序返回副本
func (c AchievementCatalog) All() []model.AchievementDefinition {
	out := make([]model.AchievementDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get 按 id 查找
func (c AchievementCatalog) Get(id string) (model.AchievementDefinition, bool) {
	i, ok := c.index[id]
	if !ok {
		return model.AchievementDefinition{}, false
	}
	return c.defs[i], true
}

// Len 成就数量
func (c AchievementCatalog) Len() int {
	return len(c.defs)
}

// ThemeCatalog 主题目录
type ThemeCatalog struct {
	themes []model.ThemeDefinition
}

// NewThemeCatalog 校验主题：必须包含默认主题且默认主题 1 级可用
func NewThemeCatalog(defs []model.ThemeDefinition) (ThemeCatalog, error) {
	seen := make(map[string]struct{}, len(defs))
	themes := make([]model.ThemeDefinition, 0, len(defs))
	hasDefault := false
	for _, d := range defs {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return ThemeCatalog{}, fmt.Errorf("%w: 主题 id 为空", ErrInvalidRules)
		}
		if _, dup := seen[d.ID]; dup {
			return ThemeCatalog{}, fmt.Errorf("%w: 主题 id 重复: %s", ErrInvalidRules, d.ID)
		}
		if d.RequiredLevel < 1 {
			d.RequiredLevel = 1
		}
		if d.ID == defaultThemeID {
			if d.RequiredLevel != 1 {
				return ThemeCatalog{}, fmt.Errorf("%w: 默认主题必须 1 级可用", ErrInvalidRules)
			}
			hasDefault = true
		}
		seen[d.ID] = struct{}{}
		themes = append(themes, d)
	}
	if !hasDefault {
		return ThemeCatalog{}, fmt.Errorf("%w: 缺少默认主题 %q", ErrInvalidRules, defaultThemeID)
	}
	return ThemeCatalog{themes: themes}, nil
}

// MustThemeCatalog 用于内置目录
func MustThemeCatalog(defs []model.ThemeDefinition) ThemeCatalog {
	c, err := NewThemeCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// All 返回副本
func (c ThemeCatalog) All() []model.ThemeDefinition {
	out := make([]model.ThemeDefinition, len(c.themes))
	copy(out, c.themes)
	return out
}

// Get 按 id 查找
func (c ThemeCatalog) Get(id string) (model.ThemeDefinition, bool) {
	for _, t := range c.themes {
		if t.ID == id {
			return t, true
		}
	}
	return model.ThemeDefinition{}, false
}

// IDs 主题 id 集合
func (c ThemeCatalog) IDs() map[string]struct{} {
	out := make(map[string]struct{}, len(c.themes))
	for _, t := range c.themes {
		out[t.ID] = struct{}{}
	}
	return out
}
