package dto

type HealthDTO struct {
	OK          bool             `json:"ok"`
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	Build       string           `json:"build"`
	StartedAt   string           `json:"started_at"`
	UptimeSec   int64            `json:"uptime_sec"`
	Storage     StorageStatusDTO `json:"storage"`
	Persistence PersistenceDTO   `json:"persistence"`
	Rules       *RulesWatchDTO   `json:"rules,omitempty"`
	Subscribers int              `json:"subscribers"`
}

type StorageStatusDTO struct {
	DBPath         string `json:"db_path"`
	SchemaVersion  int    `json:"schema_version"`
	SafeMode       bool   `json:"safe_mode"`
	SafeModeReason string `json:"safe_mode_reason,omitempty"`
}

type PersistenceDTO struct {
	OK          bool   `json:"ok"`
	LastSavedAt int64  `json:"last_saved_at"`
	SaveErrors  int64  `json:"save_errors"`
	LastErrorAt int64  `json:"last_error_at,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

type RulesWatchDTO struct {
	Path      string `json:"path"`
	Reloads   int64  `json:"reloads"`
	Failures  int64  `json:"failures"`
	LastError string `json:"last_error,omitempty"`
}
