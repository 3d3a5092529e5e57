package service

import (
	"time"

	"github.com/yuqie6/MirrorQuest/internal/model"
	"github.com/yuqie6/MirrorQuest/internal/schema"
)

// 内置 special 谓词名
const (
	SpecialEarlyBird = "early_bird"
	SpecialNightOwl  = "night_owl"
)

// EvalContext special 谓词的输入：触发动作与当前时刻
type EvalContext struct {
	Moment time.Time
	Action model.ActionKind
}

// SpecialPredicate 只依赖当前时刻/动作的纯函数，不看历史
type SpecialPredicate func(ec EvalContext) bool

// AchievementEvaluator 成就评估器
type AchievementEvaluator struct {
	catalog  AchievementCatalog
	specials map[string]SpecialPredicate
}

// NewAchievementEvaluator 创建评估器，specials 为 nil 时没有 special 成就可被授予
func NewAchievementEvaluator(catalog AchievementCatalog, specials map[string]SpecialPredicate) *AchievementEvaluator {
	cp := make(map[string]SpecialPredicate, len(specials))
	for k, v := range specials {
		cp[k] = v
	}
	return &AchievementEvaluator{catalog: catalog, specials: cp}
}

// DefaultSpecialPredicates 早鸟：截止小时前完成任务；夜猫子：指定小时后完成专注
func DefaultSpecialPredicates(earlyBirdHour, nightOwlHour int) map[string]SpecialPredicate {
	return map[string]SpecialPredicate{
		SpecialEarlyBird: func(ec EvalContext) bool {
			return ec.Action == model.ActionTask && ec.Moment.Hour() < earlyBirdHour
		},
		SpecialNightOwl: func(ec EvalContext) bool {
			return ec.Action == model.ActionFocus && ec.Moment.Hour() >= nightOwlHour
		},
	}
}

// CheckAll 按目录声明顺序返回本次新满足且尚未授予的成就，并把它们写入 awarded。
// awarded 为 nil 时只做判断不记录。发放经验由调用方负责。
func (e *AchievementEvaluator) CheckAll(stats schema.RewardStats, streak StreakState, awarded map[string]struct{}, ec EvalContext) []model.AchievementDefinition {
	var out []model.AchievementDefinition
	for _, a := range e.catalog.defs {
		if _, ok := awarded[a.ID]; ok {
			continue
		}
		if !e.met(a.Requirement, stats, streak, ec) {
			continue
		}
		if awarded != nil {
			awarded[a.ID] = struct{}{}
		}
		out = append(out, a)
	}
	return out
}

// Catalog 评估器使用的目录
func (e *AchievementEvaluator) Catalog() AchievementCatalog {
	return e.catalog
}

func (e *AchievementEvaluator) met(req model.Requirement, stats schema.RewardStats, streak StreakState, ec EvalContext) bool {
	switch req.Kind {
	case model.RequirementTasks:
		return stats.TasksCompleted >= req.Count
	case model.RequirementSessions:
		return stats.SessionsCompleted >= req.Count
	case model.RequirementStreak:
		return streak.Current >= req.Count
	case model.RequirementBreadcrumbs:
		return stats.BreadcrumbsResolved >= req.Count
	case model.RequirementSpecial:
		pred, ok := e.specials[req.Special]
		if !ok || pred == nil {
			return false
		}
		return pred(ec)
	default:
		return false
	}
}
