package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/leadflow/internal/apperr"
	"github.com/mmeshcher/leadflow/internal/finance"
	"github.com/mmeshcher/leadflow/internal/ledger"
	"github.com/mmeshcher/leadflow/internal/model"
	"github.com/mmeshcher/leadflow/internal/notify"
	"github.com/mmeshcher/leadflow/internal/repository"
	"github.com/mmeshcher/leadflow/internal/transition"
	"github.com/mmeshcher/leadflow/internal/validation"
)

// ProjectDetails содержит проект с историей оплат и производной раскладкой.
type ProjectDetails struct {
	Project      model.Project            `json:"project"`
	Receipts     []model.PaymentReceipt   `json:"receipts"`
	Installments []model.Installment      `json:"installments"`
	Financial    model.FinancialBreakdown `json:"financial"`
	// Available показывает, сколько ещё можно заявить поступлениями с учётом ожидающих.
	Available int64 `json:"available"`
}

// ReceiptInput описывает заявку на поступление по проекту.
type ReceiptInput struct {
	Amount      float64 `json:"amount" validate:"gt=0"`
	AccountID   int64   `json:"account_id" validate:"gt=0"`
	Method      string  `json:"method" validate:"required"`
	ReferenceID string  `json:"reference_id"`
	Notes       string  `json:"notes"`
}

// InstallmentInput описывает платёж по графику.
type InstallmentInput struct {
	Amount  int64  `json:"amount" validate:"gt=0"`
	DueDate string `json:"due_date" validate:"required,date"`
}

func details(l repository.ProjectLedger) *ProjectDetails {
	b := finance.ComputeBreakdown(l.Project, l.Receipts, l.Installments)
	return &ProjectDetails{
		Project:      l.Project,
		Receipts:     l.Receipts,
		Installments: l.Installments,
		Financial:    b,
		Available:    finance.AvailableForRequest(b.Pending, finance.InFlightReceipts(l.Receipts)),
	}
}

// GetProject возвращает проект с раскладкой оплат. Переплата не скрывается.
func (s *Service) GetProject(ctx context.Context, actor model.Principal, projectID int64) (*ProjectDetails, error) {
	l, err := s.repo.GetProjectLedger(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !ownsProject(actor, l.Project) {
		return nil, apperr.NotFound("project", projectID)
	}

	d := details(*l)
	if d.Financial.Overpaid() {
		s.log.Warn("project overpaid",
			zap.Int64("projectID", projectID),
			zap.Int64("pending", d.Financial.Pending),
		)
	}
	return d, nil
}

// UpdateProjectStatus переводит проект по таблице статусов проекта.
func (s *Service) UpdateProjectStatus(ctx context.Context, actor model.Principal, projectID int64, next model.ProjectStatus) (*model.Project, error) {
	if _, ok := transition.ProjectTransitions[next]; !ok {
		return nil, apperr.Validation("unknown project status %q", next)
	}
	return s.repo.UpdateProject(ctx, projectID, func(p *model.Project) error {
		if !ownsProject(actor, *p) {
			return apperr.NotFound("project", projectID)
		}
		if !transition.CanTransitionProject(p.Status, next) {
			return apperr.InvalidTransition(string(p.Status), string(next))
		}
		p.Status = next
		p.UpdatedAt = s.now()
		return nil
	})
}

// UpdateWorkProgress задаёт процент готовности проекта.
func (s *Service) UpdateWorkProgress(ctx context.Context, actor model.Principal, projectID int64, progress int) (*model.Project, error) {
	if progress < 0 || progress > 100 {
		return nil, apperr.Validation("work progress must be between 0 and 100")
	}
	return s.repo.UpdateProject(ctx, projectID, func(p *model.Project) error {
		if !ownsProject(actor, *p) {
			return apperr.NotFound("project", projectID)
		}
		p.WorkProgress = progress
		p.UpdatedAt = s.now()
		return nil
	})
}

// CreateReceipt заявляет поступление. Сумма не может превышать остаток за вычетом
// поступлений, ожидающих подтверждения.
func (s *Service) CreateReceipt(ctx context.Context, actor model.Principal, projectID int64, in ReceiptInput) (*model.PaymentReceipt, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	amount := finance.ApplyGST(in.Amount, false)
	if amount <= 0 {
		return nil, apperr.Validation("amount %v rounds to zero", in.Amount)
	}
	return s.repo.CreateReceipt(ctx, projectID, func(l repository.ProjectLedger) (model.PaymentReceipt, error) {
		if !ownsProject(actor, l.Project) {
			return model.PaymentReceipt{}, apperr.NotFound("project", projectID)
		}
		available := details(l).Available
		if amount > available {
			return model.PaymentReceipt{}, apperr.Validation("amount %d exceeds remaining %d", amount, available)
		}
		return model.PaymentReceipt{
			ProjectID:   projectID,
			Kind:        model.ReceiptRegular,
			Amount:      amount,
			AccountID:   in.AccountID,
			Method:      in.Method,
			ReferenceID: in.ReferenceID,
			Notes:       in.Notes,
			Status:      model.ApprovalPending,
			CreatedBy:   actor.ID,
			CreatedAt:   s.now(),
		}, nil
	})
}

// ApproveReceipt подтверждает поступление и начисляет комиссию владельцу проекта.
func (s *Service) ApproveReceipt(ctx context.Context, actor model.Principal, receiptID int64, note string) (*model.PaymentReceipt, error) {
	var commission int64
	r, err := s.repo.ReviewReceipt(ctx, receiptID, func(r *model.PaymentReceipt, _ model.Project, w *model.Wallet) error {
		commission = finance.Percent(r.Amount, s.commissionPercent)
		if err := ledger.ApproveReceipt(w, r, commission, s.decision(actor, note)); err != nil {
			return err
		}
		r.Notes = appendNote(r.Notes, note)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.Event{
		Type:     notify.EventReceiptApproved,
		EntityID: r.ID,
		ActorID:  actor.ID,
		Attributes: map[string]string{
			"project_id": formatID(r.ProjectID),
			"amount":     formatID(r.Amount),
			"commission": formatID(commission),
		},
	})
	return r, nil
}

// RejectReceipt отклоняет поступление.
func (s *Service) RejectReceipt(ctx context.Context, actor model.Principal, receiptID int64, note string) (*model.PaymentReceipt, error) {
	return s.repo.ReviewReceipt(ctx, receiptID, func(r *model.PaymentReceipt, _ model.Project, _ *model.Wallet) error {
		if err := ledger.RejectReceipt(r, s.decision(actor, note)); err != nil {
			return err
		}
		r.Notes = appendNote(r.Notes, note)
		return nil
	})
}

func appendNote(notes, note string) string {
	switch {
	case note == "":
		return notes
	case notes == "":
		return note
	default:
		return notes + "\n" + note
	}
}

// AddInstallment добавляет платёж в график рассрочки проекта.
func (s *Service) AddInstallment(ctx context.Context, actor model.Principal, projectID int64, in InstallmentInput) (*model.Installment, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	due, err := time.Parse(validation.DateLayout, in.DueDate)
	if err != nil {
		return nil, apperr.Validation("due date must be a date in YYYY-MM-DD format")
	}

	l, err := s.repo.GetProjectLedger(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !ownsProject(actor, l.Project) {
		return nil, apperr.NotFound("project", projectID)
	}

	return s.repo.CreateInstallment(ctx, model.Installment{
		ProjectID: projectID,
		Amount:    in.Amount,
		DueDate:   due,
		Status:    model.InstallmentPending,
		CreatedAt: s.now(),
	})
}

// MarkInstallmentPaid отмечает платёж по графику оплаченным.
func (s *Service) MarkInstallmentPaid(ctx context.Context, actor model.Principal, installmentID int64) (*model.Installment, error) {
	return s.repo.UpdateInstallment(ctx, installmentID, func(in *model.Installment, p model.Project) error {
		if !ownsProject(actor, p) {
			return apperr.NotFound("installment", installmentID)
		}
		if in.Status != model.InstallmentPending {
			return apperr.InvalidTransition(string(in.Status), string(model.InstallmentPaid))
		}
		now := s.now()
		in.Status = model.InstallmentPaid
		in.PaidAt = &now
		return nil
	})
}

func (s *Service) decision(actor model.Principal, note string) ledger.Decision {
	return ledger.Decision{ReviewerID: actor.ID, Note: note, At: s.now()}
}
