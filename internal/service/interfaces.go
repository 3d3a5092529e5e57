package service

import (
	"context"
	"time"

	"github.com/yuqie6/MirrorQuest/internal/eventbus"
	"github.com/yuqie6/MirrorQuest/internal/schema"
)

// 外部依赖的最小接口集合（ISP）

// ProfileStore 档案持久化：Load 在无记录时返回 nil, nil
type ProfileStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

// ProfileUpdater 可选能力：在一个存储事务内完成 读-改-写。
// fn 收到当前值（无记录为 nil），返回 nil 表示不写入；fn 的错误原样返回且不写入。
type ProfileUpdater interface {
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

// RewardHistoryRepository 奖励流水（可选）
type RewardHistoryRepository interface {
	BatchInsert(ctx context.Context, entries []schema.RewardLogEntry) error
	GetRecent(ctx context.Context, limit int) ([]schema.RewardLogEntry, error)
}

// EventPublisher 事件广播（可选）
type EventPublisher interface {
	Publish(evt eventbus.Event)
}

// Clock 时间来源，测试时可替换
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时钟
type SystemClock struct{}

// Now 当前时间
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc 函数适配器
type ClockFunc func() time.Time

// Now 调用函数
func (f ClockFunc) Now() time.Time { return f() }
