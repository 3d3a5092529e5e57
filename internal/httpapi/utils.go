package httpapi

import (
	"fmt"

	"github.com/yuqie6/MirrorQuest/internal/dto"
	"github.com/yuqie6/MirrorQuest/internal/model"
	"github.com/yuqie6/MirrorQuest/internal/schema"
	"github.com/yuqie6/MirrorQuest/internal/service"
)

func toLevelDTO(l model.LevelDefinition) dto.LevelDTO {
	return dto.LevelDTO{Level: l.Level, XPThreshold: l.XPThreshold, Title: l.Title}
}

func requirementString(req model.Requirement) string {
	if req.Kind == model.RequirementSpecial {
		return "special:" + req.Special
	}
	return fmt.Sprintf("%s>=%d", req.Kind, req.Count)
}

func toAchievementDTO(def model.AchievementDefinition, unlocked bool) dto.AchievementDTO {
	return dto.AchievementDTO{
		ID:          def.ID,
		Title:       def.Title,
		Description: def.Description,
		Icon:        def.Icon,
		Requirement: requirementString(def.Requirement),
		XPReward:    def.XPReward,
		Unlocked:    unlocked,
	}
}

func toProfileDTO(s service.ProfileSnapshot) dto.ProfileDTO {
	out := dto.ProfileDTO{
		Level:          s.Level,
		Title:          s.Title,
		XP:             s.XP,
		TotalXP:        s.TotalXP,
		XPIntoLevel:    s.XPIntoLevel,
		XPToNextLevel:  s.XPToNextLevel,
		ProgressPct:    s.ProgressPct,
		IsMaxLevel:     s.IsMaxLevel,
		CurrentStreak:  s.CurrentStreak,
		LongestStreak:  s.LongestStreak,
		LastActiveDate: s.LastActiveDate,
		Stats: dto.StatsDTO{
			TasksCompleted:      s.Stats.TasksCompleted,
			SessionsCompleted:   s.Stats.SessionsCompleted,
			BreadcrumbsResolved: s.Stats.BreadcrumbsResolved,
		},
		Achievements:  s.Achievements,
		Unlocked:      make([]dto.AchievementDTO, 0, len(s.Unlocked)),
		SelectedTheme: s.SelectedTheme,
		Themes:        make([]dto.ThemeDTO, 0, len(s.Themes)),
	}
	if s.NextLevel != nil {
		next := toLevelDTO(*s.NextLevel)
		out.NextLevel = &next
	}
	for _, a := range s.Unlocked {
		out.Unlocked = append(out.Unlocked, toAchievementDTO(a, true))
	}
	for _, t := range s.Themes {
		out.Themes = append(out.Themes, dto.ThemeDTO{
			ID:            t.ID,
			Name:          t.Name,
			RequiredLevel: t.RequiredLevel,
			Unlocked:      t.Unlocked,
			Selected:      t.Selected,
		})
	}
	return out
}

func toLevelUpDTO(lu *model.LevelUpEvent) *dto.LevelUpDTO {
	if lu == nil {
		return nil
	}
	return &dto.LevelUpDTO{
		PreviousLevel: lu.PreviousLevel,
		Level:         toLevelDTO(lu.Level),
		TotalXP:       lu.TotalXP,
	}
}

func toPendingDTOs(events []model.PendingReward) []dto.PendingRewardDTO {
	out := make([]dto.PendingRewardDTO, 0, len(events))
	for _, e := range events {
		item := dto.PendingRewardDTO{
			ID:        e.ID,
			Type:      string(e.Type),
			Amount:    e.Amount,
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt.UnixMilli(),
		}
		if e.Achievement != nil {
			a := toAchievementDTO(*e.Achievement, true)
			item.Achievement = &a
		}
		out = append(out, item)
	}
	return out
}

func toRecordResultDTO(r service.RecordResult) dto.RecordResultDTO {
	out := dto.RecordResultDTO{
		Action:        string(r.Action),
		BaseXP:        r.BaseXP,
		StreakBonus:   r.StreakBonus,
		XPAwarded:     r.XPAwarded,
		Achievements:  make([]dto.AchievementDTO, 0, len(r.Achievements)),
		LevelUp:       toLevelUpDTO(r.LevelUp),
		TotalXP:       r.TotalXP,
		Level:         r.Level,
		CurrentStreak: r.CurrentStreak,
	}
	for _, a := range r.Achievements {
		out.Achievements = append(out.Achievements, toAchievementDTO(a, true))
	}
	return out
}

func toHistoryDTO(e schema.RewardLogEntry) dto.HistoryEntryDTO {
	return dto.HistoryEntryDTO{
		ID:            e.ID,
		Timestamp:     e.Timestamp,
		Type:          e.Type,
		Amount:        e.Amount,
		AchievementID: e.AchievementID,
		Reason:        e.Reason,
		TotalXPAfter:  e.TotalXPAfter,
		LevelAfter:    e.LevelAfter,
	}
}
