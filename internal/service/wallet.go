package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/leadflow/internal/ledger"
	"github.com/mmeshcher/leadflow/internal/model"
	"github.com/mmeshcher/leadflow/internal/notify"
	"github.com/mmeshcher/leadflow/internal/validation"
)

// WithdrawalInput описывает заявку на вывод средств.
type WithdrawalInput struct {
	Amount      int64  `json:"amount" validate:"gt=0"`
	Description string `json:"description"`
}

// GetWallet возвращает кошелёк действующего лица.
func (s *Service) GetWallet(ctx context.Context, actor model.Principal) (*model.Wallet, error) {
	return s.repo.GetWallet(ctx, actor.ID)
}

// ListWithdrawals возвращает заявки на вывод действующего лица.
func (s *Service) ListWithdrawals(ctx context.Context, actor model.Principal) ([]model.WithdrawalRequest, error) {
	return s.repo.ListWithdrawals(ctx, actor.ID)
}

// RequestWithdrawal создаёт заявку на вывод. Баланс не меняется до подтверждения.
func (s *Service) RequestWithdrawal(ctx context.Context, actor model.Principal, in WithdrawalInput) (*model.WithdrawalRequest, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	req, err := s.repo.CreateWithdrawal(ctx, actor.ID, func(w model.Wallet) (model.WithdrawalRequest, error) {
		return ledger.RequestWithdrawal(w, in.Amount, strings.TrimSpace(in.Description), s.now())
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.Event{
		Type:     notify.EventWithdrawalRequested,
		EntityID: req.ID,
		ActorID:  actor.ID,
		Attributes: map[string]string{
			"amount": formatID(req.Amount),
		},
	})
	return req, nil
}

// ApproveWithdrawal подтверждает заявку и списывает сумму с кошелька.
func (s *Service) ApproveWithdrawal(ctx context.Context, actor model.Principal, requestID int64, note string) (*model.WithdrawalRequest, error) {
	req, err := s.repo.ReviewWithdrawal(ctx, requestID, func(w *model.Wallet, r *model.WithdrawalRequest) error {
		return ledger.ApproveWithdrawal(w, r, s.decision(actor, note))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("withdrawal approved",
		zap.Int64("withdrawalID", req.ID),
		zap.Int64("amount", req.Amount),
		zap.Int64("reviewer", actor.ID),
	)
	s.publish(ctx, notify.Event{
		Type:     notify.EventWithdrawalApproved,
		EntityID: req.ID,
		ActorID:  actor.ID,
		Attributes: map[string]string{
			"amount": formatID(req.Amount),
		},
	})
	return req, nil
}

// RejectWithdrawal отклоняет заявку без изменения баланса.
func (s *Service) RejectWithdrawal(ctx context.Context, actor model.Principal, requestID int64, note string) (*model.WithdrawalRequest, error) {
	req, err := s.repo.ReviewWithdrawal(ctx, requestID, func(_ *model.Wallet, r *model.WithdrawalRequest) error {
		return ledger.RejectWithdrawal(r, s.decision(actor, note))
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, notify.Event{
		Type:     notify.EventWithdrawalRejected,
		EntityID: req.ID,
		ActorID:  actor.ID,
	})
	return req, nil
}
