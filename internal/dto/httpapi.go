package dto

// 注意：本包用于承载“对外契约”的 DTO（与前端/HTTP API 保持稳定）。
// 不要在这里放 GORM/持久化细节；内部持久化 schema 请见 internal/schema；业务逻辑收敛在 internal/service。

type LevelDTO struct {
	Level       int    `json:"level"`
	XPThreshold int    `json:"xp_threshold"`
	Title       string `json:"title"`
}

type StatsDTO struct {
	TasksCompleted      int `json:"tasks_completed"`
	SessionsCompleted   int `json:"sessions_completed"`
	BreadcrumbsResolved int `json:"breadcrumbs_resolved"`
}

type ThemeDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	RequiredLevel int    `json:"required_level"`
	Unlocked      bool   `json:"unlocked"`
	Selected      bool   `json:"selected"`
}

type AchievementDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
	Requirement string `json:"requirement"` // e.g. "tasks>=10" | "special:early_bird"
	XPReward    int    `json:"xp_reward"`
	Unlocked    bool   `json:"unlocked"`
}

type ProfileDTO struct {
	Level          int              `json:"level"`
	Title          string           `json:"title"`
	XP             int              `json:"xp"`
	TotalXP        int              `json:"total_xp"`
	XPIntoLevel    int              `json:"xp_into_level"`
	XPToNextLevel  int              `json:"xp_to_next_level"`
	NextLevel      *LevelDTO        `json:"next_level,omitempty"`
	ProgressPct    float64          `json:"progress_pct"`
	IsMaxLevel     bool             `json:"is_max_level"`
	CurrentStreak  int              `json:"current_streak"`
	LongestStreak  int              `json:"longest_streak"`
	LastActiveDate string           `json:"last_active_date,omitempty"`
	Stats          StatsDTO         `json:"stats"`
	Achievements   []string         `json:"achievements"`
	Unlocked       []AchievementDTO `json:"unlocked"`
	SelectedTheme  string           `json:"selected_theme"`
	Themes         []ThemeDTO       `json:"themes"`
}

type PendingRewardDTO struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"` // xp | achievement
	Amount      int             `json:"amount,omitempty"`
	Achievement *AchievementDTO `json:"achievement,omitempty"`
	Reason      string          `json:"reason"`
	CreatedAt   int64           `json:"created_at"`
}

type LevelUpDTO struct {
	PreviousLevel int      `json:"previous_level"`
	Level         LevelDTO `json:"level"`
	TotalXP       int      `json:"total_xp"`
}

type RecordResultDTO struct {
	Action        string           `json:"action"`
	BaseXP        int              `json:"base_xp"`
	StreakBonus   int              `json:"streak_bonus"`
	XPAwarded     int              `json:"xp_awarded"`
	Achievements  []AchievementDTO `json:"achievements"`
	LevelUp       *LevelUpDTO      `json:"level_up,omitempty"`
	TotalXP       int              `json:"total_xp"`
	Level         int              `json:"level"`
	CurrentStreak int              `json:"current_streak"`
}

type StreakDTO struct {
	CurrentStreak  int    `json:"current_streak"`
	LongestStreak  int    `json:"longest_streak"`
	LastActiveDate string `json:"last_active_date,omitempty"`
	Changed        bool   `json:"changed"`
}

type HistoryEntryDTO struct {
	ID            int64  `json:"id"`
	Timestamp     int64  `json:"timestamp"`
	Type          string `json:"type"`
	Amount        int    `json:"amount"`
	AchievementID string `json:"achievement_id,omitempty"`
	Reason        string `json:"reason"`
	TotalXPAfter  int    `json:"total_xp_after"`
	LevelAfter    int    `json:"level_after"`
}

type AddXPRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

type SelectThemeRequest struct {
	Theme string `json:"theme"`
}
