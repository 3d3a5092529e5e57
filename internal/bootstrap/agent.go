package bootstrap

import (
	"context"
	"log/slog"

	"github.com/yuqie6/MirrorQuest/internal/pkg/config"
	"github.com/yuqie6/MirrorQuest/internal/watcher"
)

// AgentRuntime 包含 Agent 二进制需要启动的后台组件
type AgentRuntime struct {
	*Core

	Watchers struct {
		Rules *watcher.RulesWatcher
	}
}

// NewAgentRuntime 构建 Agent 运行时：激活连续天数并按需监控规则文件
func NewAgentRuntime(ctx context.Context, cfgPath string) (*AgentRuntime, error) {
	core, err := NewCore(cfgPath)
	if err != nil {
		return nil, err
	}
	rt, err := newAgentRuntime(ctx, core)
	if err != nil {
		core.Close()
		return nil, err
	}
	return rt, nil
}

// NewAgentRuntimeFromConfig 基于已加载的配置构建运行时
func NewAgentRuntimeFromConfig(ctx context.Context, cfg *config.Config) (*AgentRuntime, error) {
	core, err := NewCoreFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	rt, err := newAgentRuntime(ctx, core)
	if err != nil {
		core.Close()
		return nil, err
	}
	return rt, nil
}

func newAgentRuntime(ctx context.Context, core *Core) (*AgentRuntime, error) {
	rt := &AgentRuntime{Core: core}

	if core.DB != nil && core.DB.SafeMode {
		// 安全模式：API 仍可启动用于诊断，但不做任何写库动作。
		// 具体原因由 /health 展示，避免“沉默失败”。
		return rt, nil
	}

	streak, changed := core.Services.Rewards.Activate(ctx)
	slog.Info("奖励引擎已激活", "current_streak", streak.Current, "longest_streak", streak.Longest, "changed", changed)

	if core.Cfg.Rewards.WatchRules && core.Cfg.Rewards.RulesPath != "" {
		w, err := watcher.NewRulesWatcher(watcher.RulesWatcherConfig{Path: core.Cfg.Rewards.RulesPath}, core.Services.Rewards)
		if err != nil {
			// 规则目录不存在等情况只影响热加载
			slog.Warn("规则文件监控未启动", "path", core.Cfg.Rewards.RulesPath, "error", err)
			return rt, nil
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Stop()
			return nil, err
		}
		rt.Watchers.Rules = w
	}

	return rt, nil
}

// Close 关闭 Agent 运行时资源
func (rt *AgentRuntime) Close() error {
	if rt == nil {
		return nil
	}
	if rt.Watchers.Rules != nil {
		_ = rt.Watchers.Rules.Stop()
	}
	return rt.Core.Close()
}
