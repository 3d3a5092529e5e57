package service

import (
	"sync"

	"github.com/yuqie6/MirrorQuest/internal/model"
)

// PendingRewardQueue 待展示奖励队列：FIFO，只在消费者 Drain 时清空
type PendingRewardQueue struct {
	mu     sync.Mutex
	events []model.PendingReward
}

// NewPendingRewardQueue 创建队列
func NewPendingRewardQueue() *PendingRewardQueue {
	return &PendingRewardQueue{}
}

// Push 追加事件
func (q *PendingRewardQueue) Push(events ...model.PendingReward) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	q.events = append(q.events, events...)
	q.mu.Unlock()
}

// Drain 取出全部事件并清空
func (q *PendingRewardQueue) Drain() []model.PendingReward {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	if out == nil {
		out = []model.PendingReward{}
	}
	return out
}

// Peek 非破坏性读取（副本）
func (q *PendingRewardQueue) Peek() []model.PendingReward {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.PendingReward, len(q.events))
	copy(out, q.events)
	return out
}

// Len 当前长度
func (q *PendingRewardQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
