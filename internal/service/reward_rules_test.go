package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yuqie6/MirrorQuest/internal/model"
)

func TestDefaultRewardRules(t *testing.T) {
	r := DefaultRewardRules()
	if r.BaseXP(model.ActionTask) != 25 || r.BaseXP(model.ActionFocus) != 40 || r.BaseXP(model.ActionBreadcrumb) != 15 {
		t.Fatalf("base xp=%v", r.Policy.Base)
	}
	if r.Policy.PerDayBonus != 10 || r.Policy.BonusCap != 50 {
		t.Fatalf("policy=%+v", r.Policy)
	}
	if r.Levels.Max().Level != 10 {
		t.Fatalf("max level=%d, want 10", r.Levels.Max().Level)
	}
	if r.Achievements.Len() != 12 {
		t.Fatalf("achievements=%d, want 12", r.Achievements.Len())
	}
}

func TestParseRules_OverlaysDefaults(t *testing.T) {
	src := `
base_xp:
  task: 30
bonus_cap: 20
levels:
  - {level: 1, xp_threshold: 0, title: A}
  - {level: 2, xp_threshold: 100, title: B}
  - {level: 3, xp_threshold: 250, title: C}
`
	r, err := ParseRules(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if r.BaseXP(model.ActionTask) != 30 {
		t.Fatalf("task xp=%d, want 30", r.BaseXP(model.ActionTask))
	}
	if r.BaseXP(model.ActionFocus) != 40 {
		t.Fatalf("focus xp=%d, want default 40", r.BaseXP(model.ActionFocus))
	}
	if r.Policy.BonusCap != 20 || r.Policy.PerDayBonus != 10 {
		t.Fatalf("policy=%+v", r.Policy)
	}
	if r.Levels.Max().Level != 3 {
		t.Fatalf("max level=%d, want 3", r.Levels.Max().Level)
	}
	if r.Achievements.Len() != len(DefaultAchievements()) {
		t.Fatalf("achievements=%d, want defaults", r.Achievements.Len())
	}
}

func TestParseRules_EmptyIsDefault(t *testing.T) {
	r, err := ParseRules(strings.NewReader("  \n"))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if r.Levels.Max().Level != 10 {
		t.Fatalf("max level=%d", r.Levels.Max().Level)
	}
}

func TestParseRules_Invalid(t *testing.T) {
	cases := map[string]string{
		"non increasing thresholds": "levels:\n  - {level: 1, xp_threshold: 0}\n  - {level: 2, xp_threshold: 0}\n",
		"unknown field":             "bogus: 1\n",
		"unknown action":            "base_xp:\n  nap: 5\n",
		"negative base":             "base_xp:\n  task: -1\n",
		"duplicate achievement":     "achievements:\n  - {id: a, requirement: {kind: tasks, count: 1}}\n  - {id: a, requirement: {kind: tasks, count: 2}}\n",
		"bad hour":                  "early_bird_hour: 30\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseRules(strings.NewReader(src)); !errors.Is(err, ErrInvalidRules) {
				t.Fatalf("err=%v, want ErrInvalidRules", err)
			}
		})
	}
}

func TestWriteAndLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	f := DefaultRulesFile()
	f.BaseXP[model.ActionBreadcrumb] = 99
	if err := WriteRulesFile(path, f); err != nil {
		t.Fatalf("WriteRulesFile: %v", err)
	}
	r, err := LoadRulesFile(path)
	if err != nil {
		t.Fatalf("LoadRulesFile: %v", err)
	}
	if r.BaseXP(model.ActionBreadcrumb) != 99 {
		t.Fatalf("breadcrumb xp=%d, want 99", r.BaseXP(model.ActionBreadcrumb))
	}

	if _, err := LoadRulesFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v, want not exist", err)
	}
}
