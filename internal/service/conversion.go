package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/leadflow/internal/apperr"
	"github.com/mmeshcher/leadflow/internal/finance"
	"github.com/mmeshcher/leadflow/internal/model"
	"github.com/mmeshcher/leadflow/internal/notify"
	"github.com/mmeshcher/leadflow/internal/repository"
	"github.com/mmeshcher/leadflow/internal/transition"
	"github.com/mmeshcher/leadflow/internal/validation"
)

// AdvanceInput описывает аванс, заявленный при конвертации.
type AdvanceInput struct {
	Amount      float64 `json:"amount" validate:"gt=0"`
	AccountID   int64   `json:"account_id" validate:"gt=0"`
	Method      string  `json:"method"`
	ReferenceID string  `json:"reference_id"`
	Notes       string  `json:"notes"`
}

// ProjectInput содержит параметры проекта, создаваемого конвертацией.
type ProjectInput struct {
	ProjectName  string        `json:"project_name" validate:"required"`
	CategoryID   int64         `json:"category_id" validate:"gt=0"`
	BaseCost     float64       `json:"base_cost" validate:"gt=0"`
	IncludeGST   bool          `json:"include_gst"`
	FinishedDays int           `json:"finished_days" validate:"gte=0"`
	Description  string        `json:"description"`
	Advance      *AdvanceInput `json:"advance,omitempty"`
}

// ConversionResult содержит итог конвертации.
type ConversionResult struct {
	Client    model.Client             `json:"client"`
	Project   model.Project            `json:"project"`
	Advance   *model.PaymentReceipt    `json:"advance,omitempty"`
	Financial model.FinancialBreakdown `json:"financial"`
}

func validateProjectInput(in ProjectInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	if strings.TrimSpace(in.ProjectName) == "" {
		return apperr.Validation("project name is required")
	}
	if finance.ApplyGST(in.BaseCost, in.IncludeGST) <= 0 {
		return apperr.Validation("base cost %v rounds to zero", in.BaseCost)
	}
	if in.Advance != nil && finance.ApplyGST(in.Advance.Amount, false) <= 0 {
		return apperr.Validation("advance amount %v rounds to zero", in.Advance.Amount)
	}
	return nil
}

// buildProject собирает проект и авансовый платёж. Аванс ожидает подтверждения,
// как любое другое поступление.
func (s *Service) buildProject(actor model.Principal, ownerID int64, in ProjectInput) (model.Project, *model.PaymentReceipt) {
	now := s.now()
	project := model.Project{
		OwnerID:      ownerID,
		Name:         strings.TrimSpace(in.ProjectName),
		CategoryID:   in.CategoryID,
		TotalCost:    finance.ApplyGST(in.BaseCost, in.IncludeGST),
		IncludeGST:   in.IncludeGST,
		FinishedDays: in.FinishedDays,
		Description:  in.Description,
		Status:       model.ProjectPendingAssignment,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if in.Advance == nil {
		return project, nil
	}
	return project, &model.PaymentReceipt{
		Kind:        model.ReceiptAdvance,
		Amount:      finance.ApplyGST(in.Advance.Amount, false),
		AccountID:   in.Advance.AccountID,
		Method:      in.Advance.Method,
		ReferenceID: in.Advance.ReferenceID,
		Notes:       in.Advance.Notes,
		Status:      model.ApprovalPending,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
	}
}

func conversionResult(c *repository.Conversion) *ConversionResult {
	res := &ConversionResult{
		Client:  c.Client,
		Project: c.Project,
		Advance: c.Advance,
	}
	var receipts []model.PaymentReceipt
	if c.Advance != nil {
		receipts = append(receipts, *c.Advance)
	}
	res.Financial = finance.ComputeBreakdown(c.Project, receipts, nil)
	return res
}

// ConvertLead превращает лид в клиента с проектом. Перевод лида в converted, создание
// клиента, проекта и аванса выполняются одной транзакцией: при любой ошибке ничего не создаётся.
// Повторная конвертация завершается ошибкой already_converted, конвертация из статуса,
// для которого переход в converted запрещён (new, lost), завершается ошибкой invalid_transition.
func (s *Service) ConvertLead(ctx context.Context, actor model.Principal, leadID int64, in ProjectInput) (*ConversionResult, error) {
	if err := validateProjectInput(in); err != nil {
		return nil, err
	}

	conv, err := s.repo.ConvertLead(ctx, leadID, func(l *model.Lead, profile *model.LeadProfile) (repository.Conversion, error) {
		if !canSeeLead(actor, l) {
			return repository.Conversion{}, apperr.NotFound("lead", leadID)
		}
		if l.Status == model.StatusConverted {
			return repository.Conversion{}, apperr.AlreadyConverted(leadID)
		}
		if err := transition.ApplyTransition(l, model.StatusConverted, transition.Metadata{}, s.now()); err != nil {
			return repository.Conversion{}, err
		}

		id := l.ID
		client := model.Client{
			LeadID:    &id,
			OwnerID:   l.OwnerID,
			Name:      l.Name,
			Phone:     l.Phone,
			CreatedAt: s.now(),
		}
		if profile != nil {
			if profile.Name != "" {
				client.Name = profile.Name
			}
			client.BusinessName = profile.BusinessName
			client.Email = profile.Email
		}

		project, advance := s.buildProject(actor, l.OwnerID, in)
		return repository.Conversion{Lead: l, Client: client, Project: project, Advance: advance}, nil
	})
	if err != nil {
		return nil, err
	}

	s.afterConversion(ctx, actor, conv)
	return conversionResult(conv), nil
}

// AddClientProject создаёт ещё один проект для существующего клиента.
func (s *Service) AddClientProject(ctx context.Context, actor model.Principal, clientID int64, in ProjectInput) (*ConversionResult, error) {
	if err := validateProjectInput(in); err != nil {
		return nil, err
	}

	conv, err := s.repo.AddClientProject(ctx, clientID, func(c model.Client) (repository.Conversion, error) {
		if !actor.IsAdmin() && c.OwnerID != actor.ID {
			return repository.Conversion{}, apperr.NotFound("client", clientID)
		}
		project, advance := s.buildProject(actor, c.OwnerID, in)
		return repository.Conversion{Client: c, Project: project, Advance: advance}, nil
	})
	if err != nil {
		return nil, err
	}

	s.afterConversion(ctx, actor, conv)
	return conversionResult(conv), nil
}

// GetClient возвращает клиента владельца.
func (s *Service) GetClient(ctx context.Context, actor model.Principal, clientID int64) (*model.Client, error) {
	c, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && c.OwnerID != actor.ID {
		return nil, apperr.NotFound("client", clientID)
	}
	return c, nil
}

// afterConversion сбрасывает закэшированную зону риска владельца и уведомляет о конвертации.
func (s *Service) afterConversion(ctx context.Context, actor model.Principal, conv *repository.Conversion) {
	ownerID := conv.Project.OwnerID
	if err := s.cache.Delete(ctx, ownerID); err != nil {
		s.log.Warn("danger zone invalidation failed", zap.Int64("repID", ownerID), zap.Error(err))
	}

	s.log.Info("project created",
		zap.Int64("projectID", conv.Project.ID),
		zap.Int64("clientID", conv.Client.ID),
		zap.Int64("totalCost", conv.Project.TotalCost),
	)

	if conv.Lead == nil {
		return
	}
	s.publish(ctx, notify.Event{
		Type:     notify.EventLeadConverted,
		EntityID: conv.Lead.ID,
		ActorID:  actor.ID,
		Attributes: map[string]string{
			"client_id":  formatID(conv.Client.ID),
			"project_id": formatID(conv.Project.ID),
		},
	})
}
