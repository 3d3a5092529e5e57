package service

import (
	"fmt"
	"strings"

	"github.com/yuqie6/MirrorQuest/internal/model"
)

// LevelTable 静态等级表：按等级升序，阈值严格递增，1 级阈值为 0
type LevelTable struct {
	levels []model.LevelDefinition
}

// LevelProgress 当前等级内的进度
type LevelProgress struct {
	Current     model.LevelDefinition
	Next        *model.LevelDefinition // 已满级时为 nil
	XPIntoLevel int
	XPToNext    int
	ProgressPct float64
}

// NewLevelTable 校验并拷贝等级定义
func NewLevelTable(defs []model.LevelDefinition) (LevelTable, error) {
	if len(defs) == 0 {
		return LevelTable{}, fmt.Errorf("%w: 等级表为空", ErrInvalidRules)
	}
	levels := make([]model.LevelDefinition, len(defs))
	copy(levels, defs)

	if levels[0].Level != 1 || levels[0].XPThreshold != 0 {
		return LevelTable{}, fmt.Errorf("%w: 等级表必须以 1 级 / 0 经验开始", ErrInvalidRules)
	}
	for i := range levels {
		levels[i].Title = strings.TrimSpace(levels[i].Title)
		if i == 0 {
			continue
		}
		prev, cur := levels[i-1], levels[i]
		if cur.Level <= prev.Level {
			return LevelTable{}, fmt.Errorf("%w: 等级 %d 未严格递增", ErrInvalidRules, cur.Level)
		}
		if cur.XPThreshold <= prev.XPThreshold {
			return LevelTable{}, fmt.Errorf("%w: 等级 %d 的阈值 %d 未严格递增", ErrInvalidRules, cur.Level, cur.XPThreshold)
		}
	}
	return LevelTable{levels: levels}, nil
}

// MustLevelTable 用于内置表
func MustLevelTable(defs []model.LevelDefinition) LevelTable {
	t, err := NewLevelTable(defs)
	if err != nil {
		panic(err)
	}
	return t
}

// LevelFor 从最高阈值向下扫描，返回第一个 XPThreshold <= totalXP 的等级
func (t LevelTable) LevelFor(totalXP int) model.LevelDefinition {
	for i := len(t.levels) - 1; i >= 0; i-- {
		if t.levels[i].XPThreshold <= totalXP {
			return t.levels[i]
		}
	}
	// 负数经验不会进入 ledger，这里兜底到 1 级
	return t.levels[0]
}

// Next 返回下一等级
func (t LevelTable) Next(level int) (model.LevelDefinition, bool) {
	for _, l := range t.levels {
		if l.Level > level {
			return l, true
		}
	}
	return model.LevelDefinition{}, false
}

// Get 按等级号查找
func (t LevelTable) Get(level int) (model.LevelDefinition, bool) {
	for _, l := range t.levels {
		if l.Level == level {
			return l, true
		}
	}
	return model.LevelDefinition{}, false
}

// Max 最高等级
func (t LevelTable) Max() model.LevelDefinition {
	return t.levels[len(t.levels)-1]
}

// Levels 返回副本
func (t LevelTable) Levels() []model.LevelDefinition {
	out := make([]model.LevelDefinition, len(t.levels))
	copy(out, t.levels)
	return out
}

// Progress 计算 totalXP 在当前等级内的进度
func (t LevelTable) Progress(totalXP int) LevelProgress {
	cur := t.LevelFor(totalXP)
	p := LevelProgress{
		Current:     cur,
		XPIntoLevel: totalXP - cur.XPThreshold,
	}
	next, ok := t.Next(cur.Level)
	if !ok {
		p.ProgressPct = 100
		return p
	}
	p.Next = &next
	span := next.XPThreshold - cur.XPThreshold
	p.XPToNext = next.XPThreshold - totalXP
	p.ProgressPct = float64(p.XPIntoLevel) / float64(span) * 100
	return p
}
