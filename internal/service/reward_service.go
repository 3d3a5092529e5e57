package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yuqie6/MirrorQuest/internal/eventbus"
	"github.com/yuqie6/MirrorQuest/internal/model"
	"github.com/yuqie6/MirrorQuest/internal/schema"
)

// DefaultProfileKey 档案在 KV 存储中的键
const DefaultProfileKey = "reward_profile"

// RewardService 奖励引擎编排：所有变更在同一把锁内以存储中的最新档案为基础完成 读-改-持久化
type RewardService struct {
	store     ProfileStore
	history   RewardHistoryRepository
	publisher EventPublisher
	cfg       *RewardServiceConfig

	mu        sync.Mutex
	rules     RewardRules
	ledger    *RewardLedger
	streak    *StreakTracker
	evaluator *AchievementEvaluator
	queue     *PendingRewardQueue
	profile   *schema.RewardProfile
	levelUp   *model.LevelUpEvent
	loaded    bool

	saveFailing  atomic.Bool
	lastSavedAt  atomic.Int64
	saveErrors   atomic.Int64
	lastErrorAt  atomic.Int64
	lastErrorMsg atomic.Value // string
}

// RewardServiceConfig 奖励服务配置
type RewardServiceConfig struct {
	ProfileKey string
	Location   *time.Location // 日历日判定时区，默认 time.Local
	Clock      Clock
}

// NewRewardService 创建奖励服务；history / publisher 可为 nil
func NewRewardService(
	store ProfileStore,
	history RewardHistoryRepository,
	publisher EventPublisher,
	rules RewardRules,
	cfg *RewardServiceConfig,
) *RewardService {
	if cfg == nil {
		cfg = &RewardServiceConfig{}
	}
	if strings.TrimSpace(cfg.ProfileKey) == "" {
		cfg.ProfileKey = DefaultProfileKey
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	s := &RewardService{
		store:     store,
		history:   history,
		publisher: publisher,
		cfg:       cfg,
		queue:     NewPendingRewardQueue(),
	}
	s.installRules(rules)
	return s
}

func (s *RewardService) installRules(rules RewardRules) {
	s.rules = rules
	s.ledger = NewRewardLedger(rules.Levels)
	s.streak = NewStreakTracker(rules.Policy, s.cfg.Location)
	s.evaluator = NewAchievementEvaluator(rules.Achievements, rules.Specials())
}

// Load 读取档案；无记录/读取失败/格式错误均回退到默认档案，不返回错误
func (s *RewardService) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked(ctx)
}

// syncLocked 从存储刷新内存档案，其他进程（CLI/Agent）的写入由此可见。调用方持有锁。
func (s *RewardService) syncLocked(ctx context.Context) {
	if s.store == nil {
		if !s.loaded {
			s.loaded = true
			s.profile = schema.NewRewardProfile()
		}
		return
	}
	data, err := s.store.Load(ctx, s.cfg.ProfileKey)
	s.adoptLocked(data, err)
}

// adoptLocked 以存储中的记录替换内存档案。
// 本地存在未落盘的变更时保留内存状态；读取失败或格式错误时首次回退默认档案，之后保留内存状态。
func (s *RewardService) adoptLocked(data []byte, loadErr error) {
	first := !s.loaded
	s.loaded = true
	if first {
		s.profile = schema.NewRewardProfile()
	}
	if !first && s.saveFailing.Load() {
		return
	}

	if loadErr != nil {
		slog.Warn("读取奖励档案失败，使用内存档案", "key", s.cfg.ProfileKey, "error", loadErr)
		return
	}
	if len(data) == 0 {
		if first {
			slog.Info("未找到奖励档案，创建默认档案", "key", s.cfg.ProfileKey)
		}
		s.profile = schema.NewRewardProfile()
		return
	}

	var p schema.RewardProfile
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("奖励档案格式错误，使用内存档案", "key", s.cfg.ProfileKey, "error", err)
		return
	}
	changed := p.Normalize(s.rules.Themes.IDs())
	if s.ledger.Rederive(&p) {
		changed = true
	}
	if changed && first {
		slog.Warn("奖励档案存在异常值，已修正", "key", s.cfg.ProfileKey)
	}
	s.profile = &p
}

// rewardTx 一次操作内的工作副本与产出的事件；只有提交时才替换正式档案
type rewardTx struct {
	s        *RewardService
	p        *schema.RewardProfile
	at       time.Time
	events   []model.PendingReward
	logs     []schema.RewardLogEntry
	hub      []eventbus.Event
	levelUp  *model.LevelUpEvent
	xpGained int
	unlocked []model.AchievementDefinition
	dirty    bool
}

func (s *RewardService) begin() *rewardTx {
	return &rewardTx{s: s, p: s.profile.Clone(), at: s.cfg.Clock.Now()}
}

func (tx *rewardTx) addXP(amount int, reason string) error {
	ev, lu, err := tx.s.ledger.AddXP(tx.p, amount, reason, tx.at)
	if err != nil {
		return err
	}
	tx.dirty = true
	tx.xpGained += amount
	tx.events = append(tx.events, ev)
	tx.logs = append(tx.logs, schema.RewardLogEntry{
		Timestamp:    tx.at.UnixMilli(),
		Type:         string(model.RewardXP),
		Amount:       amount,
		Reason:       reason,
		TotalXPAfter: tx.p.TotalXP,
		LevelAfter:   tx.p.Level,
	})
	tx.hub = append(tx.hub, eventbus.Event{
		Type: eventbus.TypeXPGranted,
		Data: map[string]any{"amount": amount, "reason": reason, "total_xp": tx.p.TotalXP, "level": tx.p.Level},
	})
	if lu != nil {
		if tx.levelUp == nil {
			cp := *lu
			tx.levelUp = &cp
		} else {
			tx.levelUp.Level = lu.Level
			tx.levelUp.TotalXP = lu.TotalXP
		}
	}
	return nil
}

func (tx *rewardTx) awardAchievements(action model.ActionKind) {
	awarded := tx.p.AchievementSet()
	ec := EvalContext{Moment: tx.at.In(tx.s.streak.Location()), Action: action}
	for _, def := range tx.s.evaluator.CheckAll(tx.p.Stats, tx.s.streak.State(tx.p), awarded, ec) {
		tx.p.Achievements = append(tx.p.Achievements, def.ID)
		tx.dirty = true
		tx.unlocked = append(tx.unlocked, def)
		tx.events = append(tx.events, achievementEvent(def, tx.at))
		tx.logs = append(tx.logs, schema.RewardLogEntry{
			Timestamp:     tx.at.UnixMilli(),
			Type:          string(model.RewardAchievement),
			AchievementID: def.ID,
			Reason:        def.Title,
			TotalXPAfter:  tx.p.TotalXP,
			LevelAfter:    tx.p.Level,
		})
		tx.hub = append(tx.hub, eventbus.Event{
			Type: eventbus.TypeAchievementUnlocked,
			Data: map[string]any{"id": def.ID, "title": def.Title, "xp_reward": def.XPReward},
		})
		if err := tx.addXP(def.XPReward, "Achievement: "+def.Title); err != nil {
			slog.Warn("成就经验发放失败", "achievement", def.ID, "error", err)
		}
	}
}

// mutateLocked 以存储中的最新档案为基础执行 apply 并持久化（读-改-写）。调用方持有锁。
// 存储实现 ProfileUpdater 时整个过程在一个存储事务内完成，跨进程不会丢失更新。
// apply 返回错误时状态不变；持久化失败只记录，内存状态保留。
func (s *RewardService) mutateLocked(ctx context.Context, apply func(tx *rewardTx) error) (*rewardTx, error) {
	u, ok := s.store.(ProfileUpdater)
	if !ok {
		s.syncLocked(ctx)
		tx := s.begin()
		if err := apply(tx); err != nil {
			return nil, err
		}
		if tx.dirty {
			s.saveLocked(ctx, tx.p)
		}
		s.applyLocked(ctx, tx)
		return tx, nil
	}

	var (
		tx       *rewardTx
		applyErr error
	)
	err := u.Update(ctx, s.cfg.ProfileKey, func(current []byte) ([]byte, error) {
		s.adoptLocked(current, nil)
		tx = s.begin()
		if applyErr = apply(tx); applyErr != nil {
			return nil, applyErr
		}
		if !tx.dirty {
			return nil, nil
		}
		data, err := json.Marshal(tx.p)
		if err != nil {
			return nil, fmt.Errorf("序列化奖励档案失败: %w", err)
		}
		return data, nil
	})
	if applyErr != nil {
		return nil, applyErr
	}
	if tx == nil {
		// 事务未能读取记录：基于内存档案继续，变更记为未落盘
		s.adoptLocked(nil, err)
		tx = s.begin()
		if err := apply(tx); err != nil {
			return nil, err
		}
	}
	if tx.dirty {
		if err != nil {
			s.noteSaveError(err)
		} else {
			s.noteSaved()
		}
	}
	s.applyLocked(ctx, tx)
	return tx, nil
}

// applyLocked 替换正式档案、入队、锁存升级信号并写流水。调用方持有锁。
func (s *RewardService) applyLocked(ctx context.Context, tx *rewardTx) {
	if !tx.dirty {
		return
	}
	s.profile = tx.p
	s.queue.Push(tx.events...)
	if tx.levelUp != nil {
		s.latchLevelUp(*tx.levelUp)
		tx.hub = append(tx.hub, eventbus.Event{
			Type: eventbus.TypeLevelUp,
			Data: map[string]any{
				"previous_level": tx.levelUp.PreviousLevel,
				"level":          tx.levelUp.Level.Level,
				"title":          tx.levelUp.Level.Title,
				"total_xp":       tx.levelUp.TotalXP,
			},
		})
	}
	s.appendHistory(ctx, tx.logs)
}

// latchLevelUp 未确认期间只保留一个信号，等级取最高
func (s *RewardService) latchLevelUp(lu model.LevelUpEvent) {
	if s.levelUp == nil {
		s.levelUp = &lu
		return
	}
	if lu.Level.Level > s.levelUp.Level.Level {
		s.levelUp.Level = lu.Level
		s.levelUp.TotalXP = lu.TotalXP
	}
}

func (s *RewardService) saveLocked(ctx context.Context, p *schema.RewardProfile) {
	if s.store == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		s.noteSaveError(fmt.Errorf("序列化奖励档案失败: %w", err))
		return
	}
	if err := s.store.Save(ctx, s.cfg.ProfileKey, data); err != nil {
		// 内存状态保留，下次变更时会再次写入完整档案
		s.noteSaveError(err)
		return
	}
	s.noteSaved()
}

func (s *RewardService) noteSaved() {
	s.saveFailing.Store(false)
	s.lastSavedAt.Store(s.cfg.Clock.Now().UnixMilli())
}

func (s *RewardService) appendHistory(ctx context.Context, logs []schema.RewardLogEntry) {
	if s.history == nil || len(logs) == 0 {
		return
	}
	if err := s.history.BatchInsert(ctx, logs); err != nil {
		slog.Warn("写入奖励流水失败", "count", len(logs), "error", err)
	}
}

func (s *RewardService) noteSaveError(err error) {
	slog.Error("保存奖励档案失败", "key", s.cfg.ProfileKey, "error", err)
	s.saveFailing.Store(true)
	s.saveErrors.Add(1)
	s.lastErrorAt.Store(s.cfg.Clock.Now().UnixMilli())
	s.lastErrorMsg.Store(err.Error())
}

func (s *RewardService) publish(events []eventbus.Event) {
	if s.publisher == nil {
		return
	}
	for _, evt := range events {
		s.publisher.Publish(evt)
	}
}

func streakEvent(p *schema.RewardProfile) eventbus.Event {
	date := ""
	if p.LastActiveDate != nil {
		date = *p.LastActiveDate
	}
	return eventbus.Event{
		Type: eventbus.TypeStreakUpdated,
		Data: map[string]any{"current": p.CurrentStreak, "longest": p.LongestStreak, "last_active_date": date},
	}
}

// RecordTaskComplete 记录完成任务
func (s *RewardService) RecordTaskComplete(ctx context.Context) RecordResult {
	return s.record(ctx, model.ActionTask)
}

// RecordFocusSession 记录完成一次专注
func (s *RewardService) RecordFocusSession(ctx context.Context) RecordResult {
	return s.record(ctx, model.ActionFocus)
}

// RecordBreadcrumbResolved 记录解决一个 breadcrumb
func (s *RewardService) RecordBreadcrumbResolved(ctx context.Context) RecordResult {
	return s.record(ctx, model.ActionBreadcrumb)
}

// Record 按动作类型记录；未知动作返回 ErrInvalidArgument
func (s *RewardService) Record(ctx context.Context, action model.ActionKind) (RecordResult, error) {
	if !action.IsValid() {
		return RecordResult{}, fmt.Errorf("%w: 未知动作 %q", ErrInvalidArgument, action)
	}
	return s.record(ctx, action), nil
}

func (s *RewardService) record(ctx context.Context, action model.ActionKind) RecordResult {
	var base, bonus int
	s.mu.Lock()
	tx, _ := s.mutateLocked(ctx, func(tx *rewardTx) error {
		if s.streak.EvaluateOnActivation(tx.p, tx.at) {
			tx.hub = append(tx.hub, streakEvent(tx.p))
		}

		switch action {
		case model.ActionTask:
			tx.p.Stats.TasksCompleted++
		case model.ActionFocus:
			tx.p.Stats.SessionsCompleted++
		case model.ActionBreadcrumb:
			tx.p.Stats.BreadcrumbsResolved++
		}
		tx.dirty = true

		base = s.rules.BaseXP(action)
		bonus = s.streak.StreakBonus(tx.p.CurrentStreak)
		reason := actionReason(action)
		if bonus > 0 {
			reason = fmt.Sprintf("%s (+%d streak bonus)", reason, bonus)
		}
		if err := tx.addXP(base+bonus, reason); err != nil {
			slog.Warn("动作经验发放失败", "action", action, "error", err)
		}
		tx.awardAchievements(action)
		return nil
	})
	res := RecordResult{
		Action:        action,
		BaseXP:        base,
		StreakBonus:   bonus,
		XPAwarded:     tx.xpGained,
		Achievements:  tx.unlocked,
		LevelUp:       tx.levelUp,
		TotalXP:       s.profile.TotalXP,
		Level:         s.profile.Level,
		CurrentStreak: s.profile.CurrentStreak,
	}
	s.mu.Unlock()

	s.publish(tx.hub)
	return res
}

func actionReason(action model.ActionKind) string {
	switch action {
	case model.ActionTask:
		return "Task completed"
	case model.ActionFocus:
		return "Focus session completed"
	case model.ActionBreadcrumb:
		return "Breadcrumb resolved"
	default:
		return string(action)
	}
}

// AddXP 直接发放经验；负数或溢出返回 ErrInvalidArgument 且状态不变
func (s *RewardService) AddXP(ctx context.Context, amount int, reason string) (*model.LevelUpEvent, error) {
	s.mu.Lock()
	tx, err := s.mutateLocked(ctx, func(tx *rewardTx) error {
		return tx.addXP(amount, reason)
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.publish(tx.hub)
	return tx.levelUp, nil
}

// Activate 以当前日期评估连续天数（每次会话启动调用一次；同日重复调用无变化）
func (s *RewardService) Activate(ctx context.Context) (StreakState, bool) {
	s.mu.Lock()
	tx, _ := s.mutateLocked(ctx, func(tx *rewardTx) error {
		if s.streak.EvaluateOnActivation(tx.p, tx.at) {
			tx.dirty = true
			tx.hub = append(tx.hub, streakEvent(tx.p))
		}
		return nil
	})
	state := s.streak.State(s.profile)
	s.mu.Unlock()

	s.publish(tx.hub)
	return state, tx.dirty
}

// PendingRewards 非破坏性读取待展示奖励
func (s *RewardService) PendingRewards() []model.PendingReward {
	return s.queue.Peek()
}

// ClearPendingRewards 取出并清空待展示奖励
func (s *RewardService) ClearPendingRewards() []model.PendingReward {
	return s.queue.Drain()
}

// LevelUpEvent 当前未确认的升级信号
func (s *RewardService) LevelUpEvent() *model.LevelUpEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.levelUp == nil {
		return nil
	}
	cp := *s.levelUp
	return &cp
}

// DismissLevelUp 确认升级信号，返回是否存在过信号
func (s *RewardService) DismissLevelUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.levelUp != nil
	s.levelUp = nil
	return had
}

// ProfileSnapshot 当前档案视图
func (s *RewardService) ProfileSnapshot(ctx context.Context) ProfileSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked(ctx)
	return buildSnapshot(s.profile, s.rules)
}

// Profile 档案副本
func (s *RewardService) Profile(ctx context.Context) *schema.RewardProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked(ctx)
	return s.profile.Clone()
}

// SelectTheme 选择主题；当前等级未解锁返回 ErrThemeLocked
func (s *RewardService) SelectTheme(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	theme, ok := s.rules.Themes.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTheme, id)
	}
	_, err := s.mutateLocked(ctx, func(tx *rewardTx) error {
		if tx.p.Level < theme.RequiredLevel {
			return fmt.Errorf("%w: %s 需要 %d 级", ErrThemeLocked, id, theme.RequiredLevel)
		}
		if tx.p.SelectedTheme != id {
			tx.p.SelectedTheme = id
			tx.dirty = true
		}
		return nil
	})
	return err
}

// ApplyRules 热替换规则：等级按新表静默重新推导（不产生升级信号），不在新目录中的主题回退默认
func (s *RewardService) ApplyRules(ctx context.Context, rules RewardRules) {
	s.mu.Lock()
	s.installRules(rules)
	_, _ = s.mutateLocked(ctx, func(tx *rewardTx) error {
		// 读取时已按新规则修正，这里无论是否变化都落盘一次
		tx.p.Normalize(rules.Themes.IDs())
		s.ledger.Rederive(tx.p)
		tx.dirty = true
		return nil
	})
	s.mu.Unlock()

	slog.Info("奖励规则已更新", "levels", len(rules.Levels.Levels()), "achievements", rules.Achievements.Len())
	s.publish([]eventbus.Event{{
		Type: eventbus.TypeRulesReloaded,
		Data: map[string]any{"levels": len(rules.Levels.Levels()), "achievements": rules.Achievements.Len()},
	}})
}

// Rules 当前规则
func (s *RewardService) Rules() RewardRules {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules
}

// Achievements 成就目录及解锁状态（目录顺序）
func (s *RewardService) Achievements(ctx context.Context) []AchievementStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncLocked(ctx)
	set := s.profile.AchievementSet()
	defs := s.rules.Achievements.All()
	out := make([]AchievementStatus, 0, len(defs))
	for _, d := range defs {
		_, ok := set[d.ID]
		out = append(out, AchievementStatus{AchievementDefinition: d, Unlocked: ok})
	}
	return out
}

// Levels 等级表
func (s *RewardService) Levels() []model.LevelDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules.Levels.Levels()
}

// History 最近的奖励流水；未配置流水仓储时返回空
func (s *RewardService) History(ctx context.Context, limit int) ([]schema.RewardLogEntry, error) {
	if s.history == nil {
		return []schema.RewardLogEntry{}, nil
	}
	entries, err := s.history.GetRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("查询奖励流水失败: %w", err)
	}
	return entries, nil
}

// PersistenceHealth 持久化健康状况
func (s *RewardService) PersistenceHealth() PersistenceHealth {
	if s == nil {
		return PersistenceHealth{}
	}
	raw := s.lastErrorMsg.Load()
	msg, _ := raw.(string)
	return PersistenceHealth{
		Failing:     s.saveFailing.Load(),
		LastSavedAt: s.lastSavedAt.Load(),
		SaveErrors:  s.saveErrors.Load(),
		LastErrorAt: s.lastErrorAt.Load(),
		LastError:   msg,
	}
}
