package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/MirrorQuest/internal/schema"
	"gorm.io/gorm"
)

// RewardLogRepository 奖励流水仓储
type RewardLogRepository struct {
	db *gorm.DB
}

// NewRewardLogRepository 创建仓储
func NewRewardLogRepository(db *gorm.DB) *RewardLogRepository {
	return &RewardLogRepository{db: db}
}

// BatchInsert 批量写入流水
func (r *RewardLogRepository) BatchInsert(ctx context.Context, entries []schema.RewardLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(entries, 100).Error; err != nil {
		return fmt.Errorf("写入奖励流水失败: %w", err)
	}
	return nil
}

// GetRecent 获取最近的流水（按写入顺序倒序）
func (r *RewardLogRepository) GetRecent(ctx context.Context, limit int) ([]schema.RewardLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []schema.RewardLogEntry
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("查询奖励流水失败: %w", err)
	}
	return entries, nil
}

// GetByTimeRange 按时间范围查询流水（升序）
func (r *RewardLogRepository) GetByTimeRange(ctx context.Context, startTime, endTime int64) ([]schema.RewardLogEntry, error) {
	var entries []schema.RewardLogEntry
	err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", startTime, endTime).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("查询奖励流水失败: %w", err)
	}
	return entries, nil
}

// SumXPByTimeRange 统计时间范围内获得的经验
func (r *RewardLogRepository) SumXPByTimeRange(ctx context.Context, startTime, endTime int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&schema.RewardLogEntry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("type = ? AND timestamp >= ? AND timestamp <= ?", "xp", startTime, endTime).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("统计经验失败: %w", err)
	}
	return total, nil
}
