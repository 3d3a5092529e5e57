package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuqie6/MirrorQuest/internal/bootstrap"
	"github.com/yuqie6/MirrorQuest/internal/model"
	"github.com/yuqie6/MirrorQuest/internal/pkg/buildinfo"
	"github.com/yuqie6/MirrorQuest/internal/pkg/config"
	"github.com/yuqie6/MirrorQuest/internal/repository"
	"github.com/yuqie6/MirrorQuest/internal/schema"
	"github.com/yuqie6/MirrorQuest/internal/service"
)

var (
	cfgFile string
	core    *bootstrap.Core
)

// 不需要打开数据库的命令
const skipCoreAnnotation = "skip-core"

func main() {
	rootCmd := &cobra.Command{
		Use:     "quest",
		Short:   "Quest - 本地奖励与成长引擎",
		Long:    `Quest 为任务、专注与 breadcrumb 记录经验值、等级、连续天数与成就。`,
		Version: buildinfo.String(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cmd.Annotations[skipCoreAnnotation] == "true" {
				return
			}
			var err error
			core, err = bootstrap.NewCore(cfgFile)
			if err != nil {
				slog.Error("初始化失败", "error", err)
				os.Exit(1)
			}
			if core.DB.SafeMode {
				fmt.Printf("⚠️  数据库处于安全模式: %s\n", core.DB.MigrationError)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				core.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(actionCmd("task", "记录完成一个任务", model.ActionTask))
	rootCmd.AddCommand(actionCmd("focus", "记录完成一次专注", model.ActionFocus))
	rootCmd.AddCommand(actionCmd("breadcrumb", "记录解决一个 breadcrumb", model.ActionBreadcrumb))
	rootCmd.AddCommand(xpCmd())
	rootCmd.AddCommand(activateCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(achievementsCmd())
	rootCmd.AddCommand(levelsCmd())
	rootCmd.AddCommand(themeCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(initCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func rewards() *service.RewardService {
	return core.Services.Rewards
}

func mustWritable() {
	if core.DB.SafeMode {
		fmt.Println("❌ 安全模式下不允许写入")
		os.Exit(1)
	}
}

// actionCmd 记录动作命令
func actionCmd(use, short string, action model.ActionKind) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			mustWritable()
			res, err := rewards().Record(context.Background(), action)
			if err != nil {
				fmt.Printf("❌ 记录失败: %v\n", err)
				os.Exit(1)
			}
			printRecordResult(res)
		},
	}
}

func printRecordResult(res service.RecordResult) {
	fmt.Printf("✨ +%d XP", res.BaseXP)
	if res.StreakBonus > 0 {
		fmt.Printf(" (+%d 连续奖励)", res.StreakBonus)
	}
	fmt.Println()
	for _, a := range res.Achievements {
		fmt.Printf("🏆 解锁成就: %s %s (+%d XP)\n", a.Icon, a.Title, a.XPReward)
	}
	if res.LevelUp != nil {
		fmt.Printf("🎉 升级! Lv.%d → Lv.%d %s\n", res.LevelUp.PreviousLevel, res.LevelUp.Level.Level, res.LevelUp.Level.Title)
	}
	fmt.Printf("📊 总经验 %d · Lv.%d · 连续 %d 天\n", res.TotalXP, res.Level, res.CurrentStreak)
}

// xpCmd 直接发放经验
func xpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "xp <amount> [reason]",
		Short: "直接发放经验值",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			mustWritable()
			amount, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Printf("❌ 无效的经验值: %s\n", args[0])
				os.Exit(1)
			}
			reason := "Manual grant"
			if len(args) > 1 {
				reason = strings.Join(args[1:], " ")
			}
			ctx := context.Background()
			lu, err := rewards().AddXP(ctx, amount, reason)
			if err != nil {
				fmt.Printf("❌ 发放失败: %v\n", err)
				os.Exit(1)
			}
			snap := rewards().ProfileSnapshot(ctx)
			fmt.Printf("✨ +%d XP (%s)\n", amount, reason)
			if lu != nil {
				fmt.Printf("🎉 升级! Lv.%d → Lv.%d %s\n", lu.PreviousLevel, lu.Level.Level, lu.Level.Title)
			}
			fmt.Printf("📊 总经验 %d · Lv.%d\n", snap.TotalXP, snap.Level)
		},
	}
}

// activateCmd 会话激活
func activateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "按今天的日期评估连续天数",
		Run: func(cmd *cobra.Command, args []string) {
			mustWritable()
			st, changed := rewards().Activate(context.Background())
			if changed {
				fmt.Printf("🔥 连续 %d 天 (最长 %d 天)\n", st.Current, st.Longest)
			} else {
				fmt.Printf("🔥 今天已激活，连续 %d 天\n", st.Current)
			}
		},
	}
}

// profileCmd 档案总览
func profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "查看奖励档案",
		Run: func(cmd *cobra.Command, args []string) {
			s := rewards().ProfileSnapshot(context.Background())

			fmt.Printf("🧭 Lv.%d %s\n", s.Level, s.Title)
			fmt.Println("═══════════════════════════════════════")
			if s.IsMaxLevel || s.NextLevel == nil {
				fmt.Printf("  %s 已满级 · 总经验 %d\n", progressBar(100), s.TotalXP)
			} else {
				fmt.Printf("  %s %.0f%%  %d/%d → Lv.%d\n",
					progressBar(s.ProgressPct), s.ProgressPct, s.XPIntoLevel, s.XPIntoLevel+s.XPToNextLevel, s.NextLevel.Level)
				fmt.Printf("  总经验 %d\n", s.TotalXP)
			}

			fmt.Printf("\n🔥 连续天数\n")
			fmt.Printf("  • 当前: %d 天\n", s.CurrentStreak)
			fmt.Printf("  • 最长: %d 天\n", s.LongestStreak)
			if s.LastActiveDate != "" {
				fmt.Printf("  • 最近活跃: %s\n", s.LastActiveDate)
			}

			fmt.Printf("\n📈 统计\n")
			fmt.Printf("  • 任务: %d\n", s.Stats.TasksCompleted)
			fmt.Printf("  • 专注: %d\n", s.Stats.SessionsCompleted)
			fmt.Printf("  • Breadcrumb: %d\n", s.Stats.BreadcrumbsResolved)

			fmt.Printf("\n🏆 成就 (%d)\n", len(s.Unlocked))
			for _, a := range s.Unlocked {
				fmt.Printf("  • %s %s\n", a.Icon, a.Title)
			}

			fmt.Printf("\n🎨 主题: %s\n", s.SelectedTheme)
			fmt.Println("\n═══════════════════════════════════════")
		},
	}
}

func progressBar(pct float64) string {
	barWidth := 20
	filled := int(pct / 100 * float64(barWidth))
	var b strings.Builder
	for i := 0; i < barWidth; i++ {
		if i < filled {
			b.WriteString("█")
		} else {
			b.WriteString("░")
		}
	}
	return "[" + b.String() + "]"
}

// achievementsCmd 成就目录
func achievementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "查看成就目录与解锁状态",
		Run: func(cmd *cobra.Command, args []string) {
			list := rewards().Achievements(context.Background())
			unlocked := 0
			for _, a := range list {
				if a.Unlocked {
					unlocked++
				}
			}
			fmt.Printf("🏆 成就 (%d/%d)\n", unlocked, len(list))
			fmt.Println("═══════════════════════════════════════")
			for _, a := range list {
				mark := "🔒"
				if a.Unlocked {
					mark = "✅"
				}
				fmt.Printf("  %s %s %s · %s (+%d XP)\n", mark, a.Icon, a.Title, a.Description, a.XPReward)
			}
		},
	}
}

// levelsCmd 等级表
func levelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "查看等级表",
		Run: func(cmd *cobra.Command, args []string) {
			current := rewards().ProfileSnapshot(context.Background()).Level
			for _, l := range rewards().Levels() {
				marker := "  "
				if l.Level == current {
					marker = "👉"
				}
				fmt.Printf("%s Lv.%-2d %-14s %6d XP\n", marker, l.Level, l.Title, l.XPThreshold)
			}
		},
	}
}

// themeCmd 选择主题
func themeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "theme [id]",
		Short: "查看或选择主题",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			if len(args) == 1 {
				mustWritable()
				err := rewards().SelectTheme(ctx, args[0])
				switch {
				case err == nil:
					fmt.Printf("🎨 已切换主题: %s\n", args[0])
				case errors.Is(err, service.ErrUnknownTheme):
					fmt.Printf("❌ 未知主题: %s\n", args[0])
					os.Exit(1)
				case errors.Is(err, service.ErrThemeLocked):
					fmt.Printf("🔒 %v\n", err)
					os.Exit(1)
				default:
					fmt.Printf("❌ 切换主题失败: %v\n", err)
					os.Exit(1)
				}
				return
			}
			for _, t := range rewards().ProfileSnapshot(ctx).Themes {
				mark := "🔒"
				switch {
				case t.Selected:
					mark = "👉"
				case t.Unlocked:
					mark = "✅"
				}
				fmt.Printf("  %s %-10s %s (Lv.%d)\n", mark, t.ID, t.Name, t.RequiredLevel)
			}
		},
	}
}

// historyCmd 奖励流水
func historyCmd() *cobra.Command {
	var limit int
	var date string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "查看奖励流水",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			var (
				entries []schema.RewardLogEntry
				err     error
			)
			if date != "" {
				loc, lerr := core.Cfg.Location()
				if lerr != nil {
					fmt.Printf("❌ %v\n", lerr)
					os.Exit(1)
				}
				start, end, rerr := repository.DayRange(date, loc)
				if rerr != nil {
					fmt.Printf("❌ %v\n", rerr)
					os.Exit(1)
				}
				entries, err = core.Repos.RewardLog.GetByTimeRange(ctx, start, end)
				if err == nil {
					total, serr := core.Repos.RewardLog.SumXPByTimeRange(ctx, start, end)
					if serr == nil {
						fmt.Printf("📅 %s 共获得 %d XP\n", date, total)
					}
				}
			} else {
				entries, err = rewards().History(ctx, limit)
			}
			if err != nil {
				fmt.Printf("❌ 读取流水失败: %v\n", err)
				os.Exit(1)
			}
			if len(entries) == 0 {
				fmt.Println("📭 没有流水记录")
				return
			}
			for _, e := range entries {
				ts := time.UnixMilli(e.Timestamp).Format("2006-01-02 15:04")
				if e.Type == string(model.RewardAchievement) {
					fmt.Printf("  %s 🏆 %s\n", ts, e.Reason)
					continue
				}
				fmt.Printf("  %s ✨ +%-4d %s (Lv.%d · %d)\n", ts, e.Amount, e.Reason, e.LevelAfter, e.TotalXPAfter)
			}
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "显示条数")
	cmd.Flags().StringVar(&date, "date", "", "指定日期 (YYYY-MM-DD)")
	return cmd
}

// initCmd 生成默认配置与规则文件
func initCmd() *cobra.Command {
	var rulesPath string
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "生成默认配置文件与规则文件",
		Annotations: map[string]string{skipCoreAnnotation: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			cfgPath := cfgFile
			if cfgPath == "" {
				p, err := config.DefaultConfigPath()
				if err != nil {
					fmt.Printf("❌ %v\n", err)
					os.Exit(1)
				}
				cfgPath = p
			}
			if _, err := os.Stat(cfgPath); err == nil && !force {
				fmt.Printf("⚠️  配置文件已存在: %s (使用 --force 覆盖)\n", cfgPath)
				os.Exit(1)
			}

			cfg := config.Default()
			cfg.Rewards.RulesPath = rulesPath
			if err := config.WriteFile(cfgPath, cfg); err != nil {
				fmt.Printf("❌ 写入配置失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("✅ 已生成配置: %s\n", cfgPath)

			if rulesPath != "" {
				if err := service.WriteRulesFile(rulesPath, service.DefaultRulesFile()); err != nil {
					fmt.Printf("❌ 写入规则失败: %v\n", err)
					os.Exit(1)
				}
				fmt.Printf("✅ 已生成规则: %s\n", rulesPath)
			}
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "同时生成规则文件到该路径")
	cmd.Flags().BoolVar(&force, "force", false, "覆盖已有配置")
	return cmd
}
