package schema

import "time"

// RewardLogEntry 奖励流水（审计/历史展示用）
// 数据量级：万级/年
type RewardLogEntry struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp     int64     `gorm:"index" json:"timestamp"`          // Unix 时间戳（毫秒）
	Type          string    `gorm:"size:20;index" json:"type"`       // xp / achievement
	Amount        int       `gorm:"default:0" json:"amount"`         // 经验值（achievement 为 0）
	AchievementID string    `gorm:"size:100" json:"achievement_id"`  // 仅 achievement
	Reason        string    `gorm:"size:255" json:"reason"`
	TotalXPAfter  int       `gorm:"default:0" json:"total_xp_after"` // 写入时的累计经验
	LevelAfter    int       `gorm:"default:1" json:"level_after"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (RewardLogEntry) TableName() string {
	return "reward_logs"
}
