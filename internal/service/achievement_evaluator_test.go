package service

import (
	"errors"
	"testing"
	"time"

	"github.com/yuqie6/MirrorQuest/internal/model"
	"github.com/yuqie6/MirrorQuest/internal/schema"
)

func testCatalog(t *testing.T) AchievementCatalog {
	t.Helper()
	c, err := NewAchievementCatalog([]model.AchievementDefinition{
		{ID: "first_task", Requirement: model.Requirement{Kind: model.RequirementTasks, Count: 1}, XPReward: 50},
		{ID: "streak_3", Requirement: model.Requirement{Kind: model.RequirementStreak, Count: 3}, XPReward: 75},
		{ID: "first_focus", Requirement: model.Requirement{Kind: model.RequirementSessions, Count: 1}, XPReward: 50},
		{ID: "crumbs_2", Requirement: model.Requirement{Kind: model.RequirementBreadcrumbs, Count: 2}, XPReward: 30},
		{ID: "early_bird", Requirement: model.Requirement{Kind: model.RequirementSpecial, Special: SpecialEarlyBird}, XPReward: 100},
		{ID: "mystery", Requirement: model.Requirement{Kind: model.RequirementSpecial, Special: "not_registered"}, XPReward: 1},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func ids(defs []model.AchievementDefinition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.ID)
	}
	return out
}

func TestAchievementEvaluator_DeclarationOrder(t *testing.T) {
	e := NewAchievementEvaluator(testCatalog(t), DefaultSpecialPredicates(9, 22))
	stats := schema.RewardStats{TasksCompleted: 1, SessionsCompleted: 1, BreadcrumbsResolved: 2}
	awarded := map[string]struct{}{}
	ec := EvalContext{Moment: time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC), Action: model.ActionTask}

	got := ids(e.CheckAll(stats, StreakState{Current: 3}, awarded, ec))
	want := []string{"first_task", "streak_3", "first_focus", "crumbs_2"}
	if len(got) != len(want) {
		t.Fatalf("got=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got=%v, want %v", got, want)
		}
	}
	if len(awarded) != len(want) {
		t.Fatalf("awarded=%v, want %d ids", awarded, len(want))
	}
}

func TestAchievementEvaluator_ExactlyOnce(t *testing.T) {
	e := NewAchievementEvaluator(testCatalog(t), nil)
	stats := schema.RewardStats{TasksCompleted: 1}
	awarded := map[string]struct{}{}
	ec := EvalContext{Moment: time.Now(), Action: model.ActionTask}

	if got := e.CheckAll(stats, StreakState{}, awarded, ec); len(got) != 1 {
		t.Fatalf("first check=%v, want 1 award", ids(got))
	}
	stats.TasksCompleted = 5
	if got := e.CheckAll(stats, StreakState{}, awarded, ec); len(got) != 0 {
		t.Fatalf("second check=%v, want none", ids(got))
	}
}

func TestAchievementEvaluator_SpecialPredicates(t *testing.T) {
	e := NewAchievementEvaluator(testCatalog(t), DefaultSpecialPredicates(9, 22))
	morning := time.Date(2024, 1, 1, 8, 59, 0, 0, time.UTC)
	nine := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		ec   EvalContext
		want bool
	}{
		{"task before cutoff", EvalContext{Moment: morning, Action: model.ActionTask}, true},
		{"task at cutoff", EvalContext{Moment: nine, Action: model.ActionTask}, false},
		{"focus before cutoff", EvalContext{Moment: morning, Action: model.ActionFocus}, false},
	}
	for _, tc := range cases {
		got := e.CheckAll(schema.RewardStats{}, StreakState{}, map[string]struct{}{}, tc.ec)
		has := false
		for _, d := range got {
			if d.ID == "early_bird" {
				has = true
			}
			if d.ID == "mystery" {
				t.Fatalf("%s: unknown special predicate must never award", tc.name)
			}
		}
		if has != tc.want {
			t.Fatalf("%s: early_bird=%v, want %v", tc.name, has, tc.want)
		}
	}
}

func TestNightOwlPredicate(t *testing.T) {
	preds := DefaultSpecialPredicates(9, 22)
	owl := preds[SpecialNightOwl]
	late := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	if !owl(EvalContext{Moment: late, Action: model.ActionFocus}) {
		t.Fatalf("focus at 22:00 should qualify")
	}
	if owl(EvalContext{Moment: late.Add(-time.Minute), Action: model.ActionFocus}) {
		t.Fatalf("focus at 21:59 should not qualify")
	}
	if owl(EvalContext{Moment: late, Action: model.ActionTask}) {
		t.Fatalf("task should not qualify")
	}
}

func TestNewAchievementCatalog_Validation(t *testing.T) {
	cases := []struct {
		name string
		defs []model.AchievementDefinition
	}{
		{"blank id", []model.AchievementDefinition{{ID: " ", Requirement: model.Requirement{Kind: model.RequirementTasks}}}},
		{"duplicate", []model.AchievementDefinition{
			{ID: "a", Requirement: model.Requirement{Kind: model.RequirementTasks, Count: 1}},
			{ID: "a", Requirement: model.Requirement{Kind: model.RequirementTasks, Count: 2}},
		}},
		{"negative reward", []model.AchievementDefinition{{ID: "a", Requirement: model.Requirement{Kind: model.RequirementTasks}, XPReward: -1}}},
		{"unknown kind", []model.AchievementDefinition{{ID: "a", Requirement: model.Requirement{Kind: "karma"}}}},
		{"special without name", []model.AchievementDefinition{{ID: "a", Requirement: model.Requirement{Kind: model.RequirementSpecial}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewAchievementCatalog(tc.defs); !errors.Is(err, ErrInvalidRules) {
				t.Fatalf("err=%v, want ErrInvalidRules", err)
			}
		})
	}
}

func TestNewThemeCatalog_RequiresDefault(t *testing.T) {
	if _, err := NewThemeCatalog([]model.ThemeDefinition{{ID: "ocean", RequiredLevel: 3}}); !errors.Is(err, ErrInvalidRules) {
		t.Fatalf("err=%v, want ErrInvalidRules", err)
	}
	if _, err := NewThemeCatalog([]model.ThemeDefinition{{ID: defaultThemeID, RequiredLevel: 2}}); !errors.Is(err, ErrInvalidRules) {
		t.Fatalf("err=%v, want ErrInvalidRules", err)
	}
	c, err := NewThemeCatalog(DefaultThemes())
	if err != nil {
		t.Fatalf("default themes: %v", err)
	}
	if _, ok := c.Get("galaxy"); !ok {
		t.Fatalf("galaxy theme missing")
	}
}
