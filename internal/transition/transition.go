// Package transition содержит таблицы допустимых переходов статусов лидов и проектов.
package transition

import (
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/leadflow/internal/apperr"
	"github.com/mmeshcher/leadflow/internal/model"
)

type set[S comparable] map[S]struct{}

func of[S comparable](items ...S) set[S] {
	s := make(set[S], len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

var activeStatuses = []model.LeadStatus{
	model.StatusConnected,
	model.StatusFollowUp,
	model.StatusQuotationSent,
	model.StatusDemoRequested,
	model.StatusHot,
	model.StatusNotPicked,
}

// activeAllowList строит список для активного статуса: все остальные активные плюс финальные.
func activeAllowList(self model.LeadStatus) set[model.LeadStatus] {
	s := of(model.StatusConverted, model.StatusLost, model.StatusNotInterested)
	for _, st := range activeStatuses {
		if st != self {
			s[st] = struct{}{}
		}
	}
	return s
}

// LeadTransitions задаёт таблицу допустимых переходов лида. Устаревшие статусы есть только
// в качестве источника.
var LeadTransitions = map[model.LeadStatus]set[model.LeadStatus]{
	model.StatusNew: of(
		model.StatusConnected,
		model.StatusNotPicked,
		model.StatusLost,
		model.StatusNotInterested,
	),
	model.StatusConnected:     activeAllowList(model.StatusConnected),
	model.StatusFollowUp:      activeAllowList(model.StatusFollowUp),
	model.StatusQuotationSent: activeAllowList(model.StatusQuotationSent),
	model.StatusDemoRequested: activeAllowList(model.StatusDemoRequested),
	model.StatusHot:           activeAllowList(model.StatusHot),
	model.StatusNotPicked:     activeAllowList(model.StatusNotPicked),

	model.StatusConverted:     of[model.LeadStatus](),
	model.StatusLost:          of(model.StatusConnected),
	model.StatusNotInterested: of(model.StatusConnected),

	model.StatusLegacyDQSent:        activeAllowList(""),
	model.StatusLegacyAppClient:     activeAllowList(""),
	model.StatusLegacyWeb:           activeAllowList(""),
	model.StatusLegacyTodayFollowUp: activeAllowList(""),
}

// IsKnown сообщает, что статус входит в закрытое перечисление.
func IsKnown(s model.LeadStatus) bool {
	_, ok := LeadTransitions[s]
	return ok
}

// CanTransition сообщает, разрешён ли переход current -> next.
func CanTransition(current, next model.LeadStatus) bool {
	if next.IsLegacy() {
		return false
	}
	allowed, ok := LeadTransitions[current]
	if !ok {
		return false
	}
	_, ok = allowed[next]
	return ok
}

// Metadata содержит дополнительные данные перехода.
type Metadata struct {
	Date     string
	Time     string
	Notes    string
	Priority string
	Reason   string
}

// ApplyTransition переводит лид в статус next. При ошибке лид не меняется.
func ApplyTransition(lead *model.Lead, next model.LeadStatus, meta Metadata, now time.Time) error {
	if !CanTransition(lead.Status, next) {
		return apperr.InvalidTransition(string(lead.Status), string(next))
	}

	switch next {
	case model.StatusFollowUp:
		if meta.Date == "" || meta.Time == "" {
			return apperr.Validation("followup requires date and time")
		}
		UpsertFollowUp(lead, meta, now)
	case model.StatusLost:
		lead.LostReason = meta.Reason
	case model.StatusConnected:
		lead.LostReason = ""
	}

	lead.Status = next
	lead.UpdatedAt = now
	return nil
}

// UpsertFollowUp обновляет ожидающий контакт на ту же дату или добавляет новый.
func UpsertFollowUp(lead *model.Lead, meta Metadata, now time.Time) model.FollowUp {
	for i := range lead.FollowUps {
		f := &lead.FollowUps[i]
		if f.Status == model.FollowUpPending && f.ScheduledDate == meta.Date {
			f.ScheduledTime = meta.Time
			if meta.Notes != "" {
				f.Notes = meta.Notes
			}
			if meta.Priority != "" {
				f.Priority = meta.Priority
			}
			f.UpdatedAt = now
			return *f
		}
	}

	f := model.FollowUp{
		ID:            uuid.NewString(),
		ScheduledDate: meta.Date,
		ScheduledTime: meta.Time,
		Notes:         meta.Notes,
		Priority:      meta.Priority,
		Status:        model.FollowUpPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	lead.FollowUps = append(lead.FollowUps, f)
	return f
}

// ProjectTransitions задаёт таблицу допустимых переходов статуса проекта.
var ProjectTransitions = map[model.ProjectStatus]set[model.ProjectStatus]{
	model.ProjectPendingAssignment: of(model.ProjectUntouched, model.ProjectCancelled),
	model.ProjectUntouched: of(
		model.ProjectStarted, model.ProjectActive, model.ProjectOnHold, model.ProjectCancelled,
	),
	model.ProjectStarted: of(
		model.ProjectActive, model.ProjectOnHold, model.ProjectTesting,
		model.ProjectCompleted, model.ProjectCancelled,
	),
	model.ProjectActive: of(
		model.ProjectStarted, model.ProjectOnHold, model.ProjectTesting,
		model.ProjectCompleted, model.ProjectCancelled,
	),
	model.ProjectOnHold: of(
		model.ProjectStarted, model.ProjectActive, model.ProjectTesting, model.ProjectCancelled,
	),
	model.ProjectTesting: of(
		model.ProjectStarted, model.ProjectActive, model.ProjectOnHold,
		model.ProjectCompleted, model.ProjectCancelled,
	),
	model.ProjectCompleted: of[model.ProjectStatus](),
	model.ProjectCancelled: of[model.ProjectStatus](),
}

// CanTransitionProject сообщает, разрешён ли переход проекта current -> next.
func CanTransitionProject(current, next model.ProjectStatus) bool {
	allowed, ok := ProjectTransitions[current]
	if !ok {
		return false
	}
	_, ok = allowed[next]
	return ok
}
