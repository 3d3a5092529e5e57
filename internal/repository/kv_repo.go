package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/MirrorQuest/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVRepository 键值仓储，承载奖励档案的 JSON 记录
type KVRepository struct {
	db *gorm.DB
}

// NewKVRepository 创建仓储
func NewKVRepository(db *gorm.DB) *KVRepository {
	return &KVRepository{db: db}
}

// Load 读取 key 对应的值，不存在时返回 nil, nil
func (r *KVRepository) Load(ctx context.Context, key string) ([]byte, error) {
	var entry schema.KVEntry
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取键值失败: %w", err)
	}
	return []byte(entry.Value), nil
}

// Save 写入或覆盖 key 对应的值
func (r *KVRepository) Save(ctx context.Context, key string, value []byte) error {
	if err := upsertKV(r.db.WithContext(ctx), key, value); err != nil {
		return fmt.Errorf("写入键值失败: %w", err)
	}
	return nil
}

// Update 在一个事务内读取并改写 key，CLI 与 Agent 并发修改同一记录时不会互相覆盖。
// fn 收到当前值（不存在为 nil），返回 nil 时不写入；fn 返回错误时回滚并原样返回。
func (r *KVRepository) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先取写锁再读：WAL 下已持有读快照的事务无法升级为写事务
		if err := tx.Exec("UPDATE kv_store SET value = value WHERE key = ?", key).Error; err != nil {
			return fmt.Errorf("锁定键值失败: %w", err)
		}

		var current []byte
		var entry schema.KVEntry
		err := tx.Where("key = ?", key).First(&entry).Error
		switch {
		case err == nil:
			current = []byte(entry.Value)
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("读取键值失败: %w", err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		if err := upsertKV(tx, key, next); err != nil {
			return fmt.Errorf("写入键值失败: %w", err)
		}
		return nil
	})
}

func upsertKV(db *gorm.DB, key string, value []byte) error {
	entry := schema.KVEntry{Key: key, Value: string(value)}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

// Delete 删除 key（不存在不报错）
func (r *KVRepository) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where("key = ?", key).Delete(&schema.KVEntry{}).Error; err != nil {
		return fmt.Errorf("删除键值失败: %w", err)
	}
	return nil
}
