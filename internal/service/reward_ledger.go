package service

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/MirrorQuest/internal/model"
	"github.com/yuqie6/MirrorQuest/internal/schema"
)

// RewardLedger 经验账本：只负责 {xp, totalXp, level} 的变更与等级推导
type RewardLedger struct {
	levels LevelTable
}

// NewRewardLedger 创建账本
func NewRewardLedger(levels LevelTable) *RewardLedger {
	return &RewardLedger{levels: levels}
}

// Levels 账本使用的等级表
func (l *RewardLedger) Levels() LevelTable {
	return l.levels
}

// AddXP 给档案加经验，返回需要入队的 xp 事件；等级提升时返回升级事件（多级跨越只返回最高等级）。
// 校验失败时档案不变。
func (l *RewardLedger) AddXP(p *schema.RewardProfile, amount int, reason string, at time.Time) (model.PendingReward, *model.LevelUpEvent, error) {
	if amount < 0 {
		return model.PendingReward{}, nil, fmt.Errorf("%w: 经验值不能为负: %d", ErrInvalidArgument, amount)
	}
	if p.TotalXP > math.MaxInt-amount || p.XP > math.MaxInt-amount {
		return model.PendingReward{}, nil, fmt.Errorf("%w: 经验值溢出", ErrInvalidArgument)
	}

	oldLevel := l.levels.LevelFor(p.TotalXP)
	newTotal := p.TotalXP + amount
	newLevel := l.levels.LevelFor(newTotal)

	p.XP += amount
	p.TotalXP = newTotal
	p.Level = newLevel.Level

	event := model.PendingReward{
		ID:        uuid.NewString(),
		Type:      model.RewardXP,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: at,
	}

	if newLevel.Level > oldLevel.Level {
		return event, &model.LevelUpEvent{
			PreviousLevel: oldLevel.Level,
			Level:         newLevel,
			TotalXP:       newTotal,
		}, nil
	}
	return event, nil, nil
}

// Rederive 按等级表重新推导等级（加载/换表后使用），返回是否有变化
func (l *RewardLedger) Rederive(p *schema.RewardProfile) bool {
	lv := l.levels.LevelFor(p.TotalXP).Level
	if p.Level == lv {
		return false
	}
	p.Level = lv
	return true
}

// achievementEvent 成就解锁事件
func achievementEvent(def model.AchievementDefinition, at time.Time) model.PendingReward {
	d := def
	return model.PendingReward{
		ID:          uuid.NewString(),
		Type:        model.RewardAchievement,
		Achievement: &d,
		Reason:      "Achievement unlocked: " + def.Title,
		CreatedAt:   at,
	}
}
