package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/yuqie6/MirrorQuest/internal/service"
)

// RulesApplier 接收新规则的一方
type RulesApplier interface {
	ApplyRules(ctx context.Context, rules service.RewardRules)
}

// RulesWatcher 监控规则文件，变更后防抖重载；非法规则被忽略，保留旧规则
type RulesWatcher struct {
	path     string
	applier  RulesApplier
	debounce time.Duration

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	done     chan struct{}
	running  bool
	mu       sync.Mutex
	stopOnce sync.Once

	reloads      atomic.Int64
	failures     atomic.Int64
	lastErrorMsg atomic.Value // string
}

// RulesWatcherConfig 配置
type RulesWatcherConfig struct {
	Path     string
	Debounce time.Duration // 编辑器保存常伴随多次写入，默认 300ms
}

// RulesWatcherStats 运行统计
type RulesWatcherStats struct {
	Reloads   int64
	Failures  int64
	LastError string
}

// NewRulesWatcher 创建规则监控器
func NewRulesWatcher(cfg RulesWatcherConfig, applier RulesApplier) (*RulesWatcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("规则文件路径不能为空")
	}
	if applier == nil {
		return nil, fmt.Errorf("applier 不能为空")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 300 * time.Millisecond
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("获取绝对路径失败: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}
	// 监控目录而不是文件：很多编辑器以 rename 方式保存
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("添加监控目录失败: %w", err)
	}

	return &RulesWatcher{
		path:     abs,
		applier:  applier,
		debounce: cfg.Debounce,
		watcher:  w,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start 启动监控
func (r *RulesWatcher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()
	slog.Info("规则文件监控启动", "path", r.path)

	go r.watchLoop(ctx)
	return nil
}

// Stop 停止监控并等待循环退出
func (r *RulesWatcher) Stop() error {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		_ = r.watcher.Close()

		r.mu.Lock()
		running := r.running
		r.mu.Unlock()
		if running {
			<-r.done
		}
		slog.Info("规则文件监控已停止")
	})
	return nil
}

// ReloadNow 立即加载一次规则
func (r *RulesWatcher) ReloadNow(ctx context.Context) error {
	rules, err := service.LoadRulesFile(r.path)
	if err != nil {
		r.failures.Add(1)
		r.lastErrorMsg.Store(err.Error())
		return err
	}
	r.reloads.Add(1)
	r.applier.ApplyRules(ctx, rules)
	return nil
}

// Stats 运行统计
func (r *RulesWatcher) Stats() RulesWatcherStats {
	raw := r.lastErrorMsg.Load()
	msg, _ := raw.(string)
	return RulesWatcherStats{
		Reloads:   r.reloads.Load(),
		Failures:  r.failures.Load(),
		LastError: msg,
	}
}

func (r *RulesWatcher) watchLoop(ctx context.Context) {
	defer close(r.done)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !r.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				timer.Reset(r.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := r.ReloadNow(ctx); err != nil {
				slog.Warn("规则文件无效，继续使用旧规则", "path", r.path, "error", err)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("文件监控错误", "error", err)
		}
	}
}

// relevant 只关心目标文件的写入/创建/重命名
func (r *RulesWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != r.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
