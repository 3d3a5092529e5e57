package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yuqie6/MirrorQuest/internal/bootstrap"
	"github.com/yuqie6/MirrorQuest/internal/dto"
	"github.com/yuqie6/MirrorQuest/internal/pkg/config"
)

// 固定数值、无成就，避免依赖墙钟（early_bird/night_owl）
const testRules = `
base_xp:
  task: 10
  focus: 20
  breadcrumb: 5
per_day_bonus: 0
achievements: []
`

func newTestServer(t *testing.T) (*httptest.Server, *bootstrap.AgentRuntime) {
	t.Helper()
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(rulesPath, []byte(testRules), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	cfg := config.Default()
	cfg.Storage.DBPath = filepath.Join(dir, "quest.db")
	cfg.Rewards.RulesPath = rulesPath
	cfg.Rewards.WatchRules = false
	cfg.Rewards.Timezone = "UTC"

	rt, err := bootstrap.NewAgentRuntimeFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewAgentRuntimeFromConfig: %v", err)
	}
	ts := httptest.NewServer(NewHandler(rt))
	t.Cleanup(func() {
		ts.Close()
		_ = rt.Close()
	})
	return ts, rt
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestAPI_Health(t *testing.T) {
	ts, _ := newTestServer(t)

	var h dto.HealthDTO
	if code := doJSON(t, http.MethodGet, ts.URL+"/health", nil, &h); code != http.StatusOK {
		t.Fatalf("status=%d, want 200", code)
	}
	if !h.OK || !h.Persistence.OK || h.Storage.SafeMode {
		t.Fatalf("health=%+v", h)
	}
	if h.Storage.SchemaVersion == 0 {
		t.Fatalf("schema_version not reported")
	}
	if h.Rules != nil {
		t.Fatalf("rules watcher should be disabled")
	}
}

func TestAPI_RecordActionsAndProfile(t *testing.T) {
	ts, _ := newTestServer(t)

	var res dto.RecordResultDTO
	if code := doJSON(t, http.MethodPost, ts.URL+"/api/actions/task", nil, &res); code != http.StatusOK {
		t.Fatalf("task status=%d", code)
	}
	if res.Action != "task" || res.XPAwarded != 10 || res.TotalXP != 10 {
		t.Fatalf("task result=%+v", res)
	}
	if res.CurrentStreak != 1 {
		t.Fatalf("current_streak=%d, want 1", res.CurrentStreak)
	}

	if code := doJSON(t, http.MethodPost, ts.URL+"/api/actions/focus", nil, &res); code != http.StatusOK {
		t.Fatalf("focus status=%d", code)
	}
	if code := doJSON(t, http.MethodPost, ts.URL+"/api/actions/breadcrumb", nil, &res); code != http.StatusOK {
		t.Fatalf("breadcrumb status=%d", code)
	}
	if res.TotalXP != 35 {
		t.Fatalf("total_xp=%d, want 35", res.TotalXP)
	}

	var p dto.ProfileDTO
	if code := doJSON(t, http.MethodGet, ts.URL+"/api/profile", nil, &p); code != http.StatusOK {
		t.Fatalf("profile status=%d", code)
	}
	if p.TotalXP != 35 || p.Level != 1 {
		t.Fatalf("profile total=%d level=%d", p.TotalXP, p.Level)
	}
	want := dto.StatsDTO{TasksCompleted: 1, SessionsCompleted: 1, BreadcrumbsResolved: 1}
	if p.Stats != want {
		t.Fatalf("stats=%+v, want %+v", p.Stats, want)
	}
	if p.SelectedTheme != "default" {
		t.Fatalf("selected_theme=%q", p.SelectedTheme)
	}

	var pending []dto.PendingRewardDTO
	doJSON(t, http.MethodGet, ts.URL+"/api/rewards/pending", nil, &pending)
	if len(pending) != 3 {
		t.Fatalf("pending=%d, want 3", len(pending))
	}
	var cleared []dto.PendingRewardDTO
	doJSON(t, http.MethodPost, ts.URL+"/api/rewards/clear", nil, &cleared)
	if len(cleared) != 3 {
		t.Fatalf("cleared=%d, want 3", len(cleared))
	}
	doJSON(t, http.MethodGet, ts.URL+"/api/rewards/pending", nil, &pending)
	if len(pending) != 0 {
		t.Fatalf("pending after clear=%d, want 0", len(pending))
	}

	var hist []dto.HistoryEntryDTO
	if code := doJSON(t, http.MethodGet, ts.URL+"/api/history?limit=2", nil, &hist); code != http.StatusOK {
		t.Fatalf("history status=%d", code)
	}
	if len(hist) != 2 {
		t.Fatalf("history=%d, want 2", len(hist))
	}
}

func TestAPI_AddXPValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	cases := []string{
		`{"amount": -1}`,
		`{"amount": 1.5}`,
		`{"amount": 1e300}`,
		`{"amount": 5, "extra": true}`,
		`not json`,
	}
	for _, body := range cases {
		resp, err := http.Post(ts.URL+"/api/xp", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: status=%d, want 400", body, resp.StatusCode)
		}
	}

	var out struct {
		LevelUp *dto.LevelUpDTO `json:"level_up"`
		TotalXP int             `json:"total_xp"`
		Level   int             `json:"level"`
	}
	if code := doJSON(t, http.MethodPost, ts.URL+"/api/xp", dto.AddXPRequest{Amount: 260, Reason: "bonus"}, &out); code != http.StatusOK {
		t.Fatalf("add xp status=%d", code)
	}
	if out.TotalXP != 260 || out.Level != 3 {
		t.Fatalf("out=%+v", out)
	}
	if out.LevelUp == nil || out.LevelUp.PreviousLevel != 1 || out.LevelUp.Level.Level != 3 {
		t.Fatalf("level_up=%+v", out.LevelUp)
	}
}

func TestAPI_LevelUpLatchAndTheme(t *testing.T) {
	ts, _ := newTestServer(t)

	var lu struct {
		LevelUp *dto.LevelUpDTO `json:"level_up"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/api/levelup", nil, &lu)
	if lu.LevelUp != nil {
		t.Fatalf("unexpected level up: %+v", lu.LevelUp)
	}

	// 未解锁的主题
	if code := doJSON(t, http.MethodPost, ts.URL+"/api/theme", dto.SelectThemeRequest{Theme: "ocean"}, nil); code != http.StatusForbidden {
		t.Fatalf("locked theme status=%d, want 403", code)
	}
	if code := doJSON(t, http.MethodPost, ts.URL+"/api/theme", dto.SelectThemeRequest{Theme: "nope"}, nil); code != http.StatusNotFound {
		t.Fatalf("unknown theme status=%d, want 404", code)
	}

	doJSON(t, http.MethodPost, ts.URL+"/api/xp", dto.AddXPRequest{Amount: 300}, nil)

	doJSON(t, http.MethodGet, ts.URL+"/api/levelup", nil, &lu)
	if lu.LevelUp == nil || lu.LevelUp.Level.Level != 3 {
		t.Fatalf("level_up=%+v", lu.LevelUp)
	}

	var p dto.ProfileDTO
	if code := doJSON(t, http.MethodPost, ts.URL+"/api/theme", dto.SelectThemeRequest{Theme: "ocean"}, &p); code != http.StatusOK {
		t.Fatalf("select theme status=%d", code)
	}
	if p.SelectedTheme != "ocean" {
		t.Fatalf("selected_theme=%q, want ocean", p.SelectedTheme)
	}

	var dismissed struct {
		Dismissed bool `json:"dismissed"`
	}
	doJSON(t, http.MethodPost, ts.URL+"/api/levelup/dismiss", nil, &dismissed)
	if !dismissed.Dismissed {
		t.Fatalf("expected dismissed=true")
	}
	doJSON(t, http.MethodPost, ts.URL+"/api/levelup/dismiss", nil, &dismissed)
	if dismissed.Dismissed {
		t.Fatalf("second dismiss should report false")
	}
}

func TestAPI_CatalogsAndMethods(t *testing.T) {
	ts, _ := newTestServer(t)

	var levels []dto.LevelDTO
	doJSON(t, http.MethodGet, ts.URL+"/api/levels", nil, &levels)
	if len(levels) != 10 || levels[0].Level != 1 || levels[0].XPThreshold != 0 {
		t.Fatalf("levels=%+v", levels)
	}

	var achievements []dto.AchievementDTO
	doJSON(t, http.MethodGet, ts.URL+"/api/achievements", nil, &achievements)
	if len(achievements) != 0 {
		t.Fatalf("achievements=%d, want 0", len(achievements))
	}

	if code := doJSON(t, http.MethodGet, ts.URL+"/api/actions/task", nil, nil); code != http.StatusMethodNotAllowed {
		t.Fatalf("GET action status=%d, want 405", code)
	}
	if code := doJSON(t, http.MethodPost, ts.URL+"/api/profile", nil, nil); code != http.StatusMethodNotAllowed {
		t.Fatalf("POST profile status=%d, want 405", code)
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/api/history?limit=abc", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad limit status=%d, want 400", code)
	}

	var st dto.StreakDTO
	doJSON(t, http.MethodPost, ts.URL+"/api/activate", nil, &st)
	if st.Changed || st.CurrentStreak != 1 {
		t.Fatalf("activate again=%+v, want unchanged streak 1", st)
	}
}
