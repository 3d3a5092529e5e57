package service

import "github.com/yuqie6/MirrorQuest/internal/model"

// ExpPolicy 经验计算策略（可替换）
type ExpPolicy interface {
	// BaseXP 动作的基础经验
	BaseXP(action model.ActionKind) int
	// StreakBonus 连续天数带来的额外经验
	StreakBonus(currentStreak int) int
}

// DefaultExpPolicy 默认经验策略：查表 + 按天线性增长的封顶奖励
type DefaultExpPolicy struct {
	Base        map[model.ActionKind]int
	PerDayBonus int
	BonusCap    int
}

// BaseXP 未配置的动作不给经验
func (p DefaultExpPolicy) BaseXP(action model.ActionKind) int {
	return p.Base[action]
}

// StreakBonus min(currentStreak*PerDayBonus, BonusCap)
func (p DefaultExpPolicy) StreakBonus(currentStreak int) int {
	if currentStreak <= 0 || p.PerDayBonus <= 0 {
		return 0
	}
	// 大 streak 下乘法可能溢出，先按上限截断天数
	if p.BonusCap >= 0 && currentStreak > p.BonusCap/p.PerDayBonus+1 {
		return p.BonusCap
	}
	return clamp(currentStreak*p.PerDayBonus, 0, p.BonusCap)
}

// clamp 将数值限制在指定范围内
func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
