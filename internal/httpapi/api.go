package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/yuqie6/MirrorQuest/internal/bootstrap"
	"github.com/yuqie6/MirrorQuest/internal/dto"
	"github.com/yuqie6/MirrorQuest/internal/eventbus"
	"github.com/yuqie6/MirrorQuest/internal/model"
	"github.com/yuqie6/MirrorQuest/internal/pkg/buildinfo"
	"github.com/yuqie6/MirrorQuest/internal/service"
)

type apiServer struct {
	rt        *bootstrap.AgentRuntime
	hub       *eventbus.Hub
	startTime time.Time
}

func newAPI(rt *bootstrap.AgentRuntime, hub *eventbus.Hub) *apiServer {
	return &apiServer{
		rt:        rt,
		hub:       hub,
		startTime: time.Now(),
	}
}

func (a *apiServer) rewards() *service.RewardService {
	return a.rt.Services.Rewards
}

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := a.rewards().PersistenceHealth()
	out := dto.HealthDTO{
		OK:        true,
		Name:      a.rt.Cfg.App.Name,
		Version:   a.rt.Cfg.App.Version,
		Build:     buildinfo.String(),
		StartedAt: a.startTime.Format(time.RFC3339),
		UptimeSec: int64(time.Since(a.startTime).Seconds()),
		Persistence: dto.PersistenceDTO{
			OK:          health.OK(),
			LastSavedAt: health.LastSavedAt,
			SaveErrors:  health.SaveErrors,
			LastErrorAt: health.LastErrorAt,
			LastError:   health.LastError,
		},
		Subscribers: a.hub.Subscribers(),
	}
	if db := a.rt.DB; db != nil {
		out.Storage = dto.StorageStatusDTO{
			DBPath:         a.rt.Cfg.Storage.DBPath,
			SchemaVersion:  db.SchemaVersion,
			SafeMode:       db.SafeMode,
			SafeModeReason: db.MigrationError,
		}
		if db.SafeMode {
			out.OK = false
		}
	}
	if rw := a.rt.Watchers.Rules; rw != nil {
		st := rw.Stats()
		out.Rules = &dto.RulesWatchDTO{
			Path:      a.rt.Cfg.Rewards.RulesPath,
			Reloads:   st.Reloads,
			Failures:  st.Failures,
			LastError: st.LastError,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) registerJSONRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/profile", a.wrapGET(a.getProfile))
	mux.HandleFunc("/api/levels", a.wrapGET(a.getLevels))
	mux.HandleFunc("/api/achievements", a.wrapGET(a.getAchievements))
	mux.HandleFunc("/api/history", a.wrapGET(a.getHistory))

	mux.HandleFunc("/api/activate", a.wrapPOST(a.activate))
	mux.HandleFunc("/api/actions/task", a.wrapPOST(a.recordAction(model.ActionTask)))
	mux.HandleFunc("/api/actions/focus", a.wrapPOST(a.recordAction(model.ActionFocus)))
	mux.HandleFunc("/api/actions/breadcrumb", a.wrapPOST(a.recordAction(model.ActionBreadcrumb)))
	mux.HandleFunc("/api/xp", a.wrapPOST(a.addXP))

	mux.HandleFunc("/api/rewards/pending", a.wrapGET(a.getPendingRewards))
	mux.HandleFunc("/api/rewards/clear", a.wrapPOST(a.clearPendingRewards))

	mux.HandleFunc("/api/levelup", a.wrapGET(a.getLevelUp))
	mux.HandleFunc("/api/levelup/dismiss", a.wrapPOST(a.dismissLevelUp))

	mux.HandleFunc("/api/theme", a.wrapPOST(a.selectTheme))
}

func (a *apiServer) wrapGET(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

func (a *apiServer) wrapPOST(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if a.rt.DB != nil && a.rt.DB.SafeMode {
			writeError(w, http.StatusServiceUnavailable, "safe mode: "+a.rt.DB.MigrationError)
			return
		}
		fn(w, r)
	}
}

func (a *apiServer) getProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toProfileDTO(a.rewards().ProfileSnapshot(r.Context())))
}

func (a *apiServer) getLevels(w http.ResponseWriter, r *http.Request) {
	levels := a.rewards().Levels()
	out := make([]dto.LevelDTO, 0, len(levels))
	for _, l := range levels {
		out = append(out, toLevelDTO(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) getAchievements(w http.ResponseWriter, r *http.Request) {
	list := a.rewards().Achievements(r.Context())
	out := make([]dto.AchievementDTO, 0, len(list))
	for _, s := range list {
		out = append(out, toAchievementDTO(s.AchievementDefinition, s.Unlocked))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) getHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r.URL.Query().Get("limit"), 50)
	if err != nil || limit <= 0 || limit > 1000 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	entries, err := a.rewards().History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]dto.HistoryEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toHistoryDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) activate(w http.ResponseWriter, r *http.Request) {
	st, changed := a.rewards().Activate(r.Context())
	writeJSON(w, http.StatusOK, dto.StreakDTO{
		CurrentStreak:  st.Current,
		LongestStreak:  st.Longest,
		LastActiveDate: st.LastActiveDate,
		Changed:        changed,
	})
}

func (a *apiServer) recordAction(action model.ActionKind) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := a.rewards().Record(r.Context(), action)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toRecordResultDTO(res))
	}
}

func (a *apiServer) addXP(w http.ResponseWriter, r *http.Request) {
	var req dto.AddXPRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	amount := req.Amount
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount != math.Trunc(amount) || amount < 0 || amount > math.MaxInt32 {
		writeError(w, http.StatusBadRequest, "amount must be a non-negative integer")
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Manual grant"
	}

	lu, err := a.rewards().AddXP(r.Context(), int(amount), reason)
	if err != nil {
		if errors.Is(err, service.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	snap := a.rewards().ProfileSnapshot(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"level_up": toLevelUpDTO(lu),
		"total_xp": snap.TotalXP,
		"level":    snap.Level,
	})
}

func (a *apiServer) getPendingRewards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toPendingDTOs(a.rewards().PendingRewards()))
}

func (a *apiServer) clearPendingRewards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toPendingDTOs(a.rewards().ClearPendingRewards()))
}

func (a *apiServer) getLevelUp(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"level_up": toLevelUpDTO(a.rewards().LevelUpEvent())})
}

func (a *apiServer) dismissLevelUp(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"dismissed": a.rewards().DismissLevelUp()})
}

func (a *apiServer) selectTheme(w http.ResponseWriter, r *http.Request) {
	var req dto.SelectThemeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	err := a.rewards().SelectTheme(r.Context(), req.Theme)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnknownTheme):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, service.ErrThemeLocked):
		writeError(w, http.StatusForbidden, err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(a.rewards().ProfileSnapshot(r.Context())))
}
