package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/leadflow/internal/apperr"
	"github.com/mmeshcher/leadflow/internal/model"
	"github.com/mmeshcher/leadflow/internal/notify"
	"github.com/mmeshcher/leadflow/internal/transition"
	"github.com/mmeshcher/leadflow/internal/validation"
)

// NewLead содержит данные для создания лида.
type NewLead struct {
	Name             string `json:"name" validate:"required"`
	Phone            string `json:"phone" validate:"required"`
	CategoryID       int64  `json:"category_id" validate:"gt=0"`
	ChannelPartnerID *int64 `json:"channel_partner_id,omitempty" validate:"omitempty,gt=0"`
}

// FollowUpInput содержит параметры контакта.
type FollowUpInput struct {
	Date     string `json:"date" validate:"required,date"`
	Time     string `json:"time" validate:"required,clock"`
	Notes    string `json:"notes"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// StatusChange описывает запрос на смену статуса лида.
type StatusChange struct {
	Status   model.LeadStatus `json:"status"`
	Date     string           `json:"date,omitempty"`
	Time     string           `json:"time,omitempty"`
	Notes    string           `json:"notes,omitempty"`
	Priority string           `json:"priority,omitempty"`
	Reason   string           `json:"reason,omitempty"`
}

// ProfileInput содержит квалификационные данные лида.
type ProfileInput struct {
	Name          string            `json:"name" validate:"required"`
	BusinessName  string            `json:"business_name"`
	Email         string            `json:"email" validate:"omitempty,email"`
	EstimatedCost int64             `json:"estimated_cost" validate:"gte=0"`
	QuotationSent bool              `json:"quotation_sent"`
	DemoSent      bool              `json:"demo_sent"`
	Description   string            `json:"description"`
	ProjectType   model.ProjectType `json:"project_type"`
}

// CreateLead создаёт лид в статусе new. Лид, созданный партнёром, привязывается к нему.
func (s *Service) CreateLead(ctx context.Context, actor model.Principal, in NewLead) (*model.Lead, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	now := s.now()
	lead := model.Lead{
		OwnerID:          actor.ID,
		ChannelPartnerID: in.ChannelPartnerID,
		Name:             strings.TrimSpace(in.Name),
		Phone:            strings.TrimSpace(in.Phone),
		CategoryID:       in.CategoryID,
		Status:           model.StatusNew,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if actor.Role == model.RoleChannelPartner {
		id := actor.ID
		lead.ChannelPartnerID = &id
	}

	return s.repo.CreateLead(ctx, lead)
}

// GetLead возвращает лид, доступный действующему лицу.
func (s *Service) GetLead(ctx context.Context, actor model.Principal, leadID int64) (*model.Lead, error) {
	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !canSeeLead(actor, lead) {
		return nil, apperr.NotFound("lead", leadID)
	}
	return lead, nil
}

// ListLeads возвращает собственные и открытые действующему лицу лиды.
func (s *Service) ListLeads(ctx context.Context, actor model.Principal) ([]model.Lead, error) {
	return s.repo.ListLeads(ctx, actor.ID)
}

// mutateLead применяет fn к заблокированному лиду после проверки доступа.
func (s *Service) mutateLead(ctx context.Context, actor model.Principal, leadID int64, ownerOnly bool, fn func(*model.Lead) error) (*model.Lead, error) {
	return s.repo.UpdateLead(ctx, leadID, func(l *model.Lead) error {
		allowed := canSeeLead(actor, l)
		if ownerOnly {
			allowed = ownsLead(actor, l)
		}
		if !allowed {
			return apperr.NotFound("lead", leadID)
		}
		return fn(l)
	})
}

// ChangeStatus переводит лид в новый статус по таблице переходов. Статус converted
// устанавливается только конвертацией.
func (s *Service) ChangeStatus(ctx context.Context, actor model.Principal, leadID int64, ch StatusChange) (*model.Lead, error) {
	if !transition.IsKnown(ch.Status) {
		return nil, apperr.Validation("unknown status %q", ch.Status)
	}
	if ch.Status == model.StatusConverted {
		return nil, apperr.Validation("use conversion to mark a lead as converted")
	}
	if ch.Status == model.StatusFollowUp {
		if err := validation.Struct(FollowUpInput{Date: ch.Date, Time: ch.Time, Priority: ch.Priority}); err != nil {
			return nil, err
		}
	}

	var from model.LeadStatus
	lead, err := s.mutateLead(ctx, actor, leadID, false, func(l *model.Lead) error {
		from = l.Status
		return transition.ApplyTransition(l, ch.Status, transition.Metadata{
			Date:     ch.Date,
			Time:     ch.Time,
			Notes:    ch.Notes,
			Priority: ch.Priority,
			Reason:   ch.Reason,
		}, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("lead status changed",
		zap.Int64("leadID", leadID),
		zap.String("from", string(from)),
		zap.String("to", string(lead.Status)),
	)
	s.publish(ctx, notify.Event{
		Type:     notify.EventLeadStatusChanged,
		EntityID: leadID,
		ActorID:  actor.ID,
		Attributes: map[string]string{
			"from": string(from),
			"to":   string(lead.Status),
		},
	})
	return lead, nil
}

// ScheduleFollowUp добавляет ожидающий контакт.
func (s *Service) ScheduleFollowUp(ctx context.Context, actor model.Principal, leadID int64, in FollowUpInput) (*model.FollowUp, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var created model.FollowUp
	_, err := s.mutateLead(ctx, actor, leadID, false, func(l *model.Lead) error {
		now := s.now()
		created = model.FollowUp{
			ID:            uuid.NewString(),
			ScheduledDate: in.Date,
			ScheduledTime: in.Time,
			Notes:         in.Notes,
			Priority:      in.Priority,
			Status:        model.FollowUpPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		l.FollowUps = append(l.FollowUps, created)
		l.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// CompleteFollowUp отмечает ожидающий контакт выполненным.
func (s *Service) CompleteFollowUp(ctx context.Context, actor model.Principal, leadID int64, followUpID string) (*model.FollowUp, error) {
	return s.closeFollowUp(ctx, actor, leadID, followUpID, model.FollowUpCompleted)
}

// CancelFollowUp отменяет ожидающий контакт.
func (s *Service) CancelFollowUp(ctx context.Context, actor model.Principal, leadID int64, followUpID string) (*model.FollowUp, error) {
	return s.closeFollowUp(ctx, actor, leadID, followUpID, model.FollowUpCancelled)
}

func (s *Service) closeFollowUp(ctx context.Context, actor model.Principal, leadID int64, followUpID string, to model.FollowUpStatus) (*model.FollowUp, error) {
	var res model.FollowUp
	_, err := s.mutateLead(ctx, actor, leadID, false, func(l *model.Lead) error {
		f, err := pendingFollowUp(l, followUpID, to)
		if err != nil {
			return err
		}
		now := s.now()
		f.Status = to
		f.UpdatedAt = now
		l.UpdatedAt = now
		res = *f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// RescheduleFollowUp заменяет дату, время и заметку ожидающего контакта.
func (s *Service) RescheduleFollowUp(ctx context.Context, actor model.Principal, leadID int64, followUpID string, in FollowUpInput) (*model.FollowUp, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var res model.FollowUp
	_, err := s.mutateLead(ctx, actor, leadID, false, func(l *model.Lead) error {
		f, err := pendingFollowUp(l, followUpID, model.FollowUpPending)
		if err != nil {
			return err
		}
		now := s.now()
		f.ScheduledDate = in.Date
		f.ScheduledTime = in.Time
		f.Notes = in.Notes
		if in.Priority != "" {
			f.Priority = in.Priority
		}
		f.UpdatedAt = now
		l.UpdatedAt = now
		res = *f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func pendingFollowUp(l *model.Lead, id string, to model.FollowUpStatus) (*model.FollowUp, error) {
	for i := range l.FollowUps {
		f := &l.FollowUps[i]
		if f.ID != id {
			continue
		}
		if f.Status != model.FollowUpPending {
			return nil, apperr.InvalidTransition(string(f.Status), string(to))
		}
		return f, nil
	}
	return nil, apperr.NotFound("follow-up", id)
}

// AddNote дописывает заметку в журнал лида.
func (s *Service) AddNote(ctx context.Context, actor model.Principal, leadID int64, content string) (*model.Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("note content is required")
	}

	var note model.Note
	_, err := s.mutateLead(ctx, actor, leadID, false, func(l *model.Lead) error {
		now := s.now()
		note = model.Note{
			ID:        uuid.NewString(),
			Content:   content,
			AuthorID:  actor.ID,
			CreatedAt: now,
		}
		l.Notes = append(l.Notes, note)
		l.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// ShareWithChannelPartner открывает лид торгового представителя партнёру.
func (s *Service) ShareWithChannelPartner(ctx context.Context, actor model.Principal, leadID, partnerID int64) (*model.Lead, error) {
	return s.mutateLead(ctx, actor, leadID, true, func(l *model.Lead) error {
		return s.addShare(&l.SharedFromSales, l, partnerID)
	})
}

// ShareWithSales открывает лид партнёра торговому представителю.
func (s *Service) ShareWithSales(ctx context.Context, actor model.Principal, leadID, salesID int64) (*model.Lead, error) {
	return s.mutateLead(ctx, actor, leadID, true, func(l *model.Lead) error {
		return s.addShare(&l.SharedWithSales, l, salesID)
	})
}

// UnshareWithChannelPartner закрывает доступ одному партнёру, не затрагивая остальных.
func (s *Service) UnshareWithChannelPartner(ctx context.Context, actor model.Principal, leadID, partnerID int64) (*model.Lead, error) {
	return s.mutateLead(ctx, actor, leadID, true, func(l *model.Lead) error {
		return s.removeShare(&l.SharedFromSales, l, partnerID)
	})
}

// UnshareWithSales закрывает доступ одному торговому представителю.
func (s *Service) UnshareWithSales(ctx context.Context, actor model.Principal, leadID, salesID int64) (*model.Lead, error) {
	return s.mutateLead(ctx, actor, leadID, true, func(l *model.Lead) error {
		return s.removeShare(&l.SharedWithSales, l, salesID)
	})
}

func (s *Service) addShare(shares *[]model.Share, l *model.Lead, counterpartyID int64) error {
	if counterpartyID <= 0 {
		return apperr.Validation("counterparty is required")
	}
	if counterpartyID == l.OwnerID {
		return apperr.Validation("lead cannot be shared with its owner")
	}
	for _, sh := range *shares {
		if sh.CounterpartyID == counterpartyID {
			return apperr.Validation("lead %d is already shared with %d", l.ID, counterpartyID)
		}
	}
	now := s.now()
	*shares = append(*shares, model.Share{CounterpartyID: counterpartyID, SharedAt: now})
	l.UpdatedAt = now
	return nil
}

func (s *Service) removeShare(shares *[]model.Share, l *model.Lead, counterpartyID int64) error {
	for i, sh := range *shares {
		if sh.CounterpartyID == counterpartyID {
			*shares = append((*shares)[:i:i], (*shares)[i+1:]...)
			l.UpdatedAt = s.now()
			return nil
		}
	}
	return apperr.Validation("lead %d is not shared with %d", l.ID, counterpartyID)
}

// Transfer передаёт лид другому торговому представителю. Владелец меняется в той же
// транзакции, что и запись в истории передач. Клиент сконвертированного лида и его
// проекты переходят к новому владельцу в той же транзакции.
func (s *Service) Transfer(ctx context.Context, actor model.Principal, leadID, toSalesID int64, reason string) (*model.Lead, error) {
	if toSalesID <= 0 {
		return nil, apperr.Validation("target sales rep is required")
	}
	if _, err := s.repo.GetSalesRep(ctx, toSalesID); err != nil {
		return nil, err
	}

	var fromID int64
	lead, err := s.repo.TransferLead(ctx, leadID, func(l *model.Lead) error {
		if !ownsLead(actor, l) {
			return apperr.NotFound("lead", leadID)
		}
		fromID = l.OwnerID
		if l.OwnerID == toSalesID {
			return apperr.Validation("lead %d already belongs to %d", leadID, toSalesID)
		}
		now := s.now()
		l.Transfers = append(l.Transfers, model.Transfer{
			FromSalesID: l.OwnerID,
			ToSalesID:   toSalesID,
			Reason:      strings.TrimSpace(reason),
			At:          now,
		})
		l.OwnerID = toSalesID
		l.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if lead.Status == model.StatusConverted {
		for _, repID := range []int64{fromID, toSalesID} {
			if err := s.cache.Delete(ctx, repID); err != nil {
				s.log.Warn("danger zone invalidation failed", zap.Int64("repID", repID), zap.Error(err))
			}
		}
	}

	s.log.Info("lead transferred",
		zap.Int64("leadID", leadID),
		zap.Int64("from", fromID),
		zap.Int64("to", toSalesID),
		zap.Int64("by", actor.ID),
	)
	return lead, nil
}

// UpsertProfile создаёт или обновляет профиль лида. Лид в статусе new профиля не имеет.
func (s *Service) UpsertProfile(ctx context.Context, actor model.Principal, leadID int64, in ProfileInput) (*model.LeadProfile, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	lead, err := s.GetLead(ctx, actor, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Status == model.StatusNew {
		return nil, apperr.Validation("lead %d must be contacted before profiling", leadID)
	}

	now := s.now()
	profile := model.LeadProfile{
		LeadID:        leadID,
		Name:          strings.TrimSpace(in.Name),
		BusinessName:  strings.TrimSpace(in.BusinessName),
		Email:         strings.TrimSpace(in.Email),
		EstimatedCost: in.EstimatedCost,
		QuotationSent: in.QuotationSent,
		DemoSent:      in.DemoSent,
		Description:   in.Description,
		ProjectType:   in.ProjectType,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return s.repo.SaveProfile(ctx, profile)
}

// GetProfile возвращает профиль лида.
func (s *Service) GetProfile(ctx context.Context, actor model.Principal, leadID int64) (*model.LeadProfile, error) {
	if _, err := s.GetLead(ctx, actor, leadID); err != nil {
		return nil, err
	}
	return s.repo.GetProfile(ctx, leadID)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
