// Package ledger реализует двухфазные операции с кошельком: заявка создаётся без изменения
// баланса, баланс меняется только при подтверждении.
package ledger

import (
	"time"

	"github.com/mmeshcher/leadflow/internal/apperr"
	"github.com/mmeshcher/leadflow/internal/model"
)

// RequestWithdrawal создаёт заявку на вывод. Баланс кошелька не меняется.
func RequestWithdrawal(w model.Wallet, amount int64, description string, now time.Time) (model.WithdrawalRequest, error) {
	if amount <= 0 {
		return model.WithdrawalRequest{}, apperr.Validation("withdrawal amount must be positive")
	}
	if amount > w.Balance {
		return model.WithdrawalRequest{}, apperr.InsufficientBalance(amount, w.Balance)
	}

	return model.WithdrawalRequest{
		WalletID:    w.ID,
		Amount:      amount,
		Description: description,
		Status:      model.ApprovalPending,
		CreatedAt:   now,
	}, nil
}

// Decision описывает решение администратора по заявке.
type Decision struct {
	ReviewerID int64
	Note       string
	At         time.Time
}

func review(status *model.ApprovalStatus, to model.ApprovalStatus, reviewedBy **int64, reviewedAt **time.Time, d Decision) error {
	if *status != model.ApprovalPending {
		return apperr.InvalidTransition(string(*status), string(to))
	}
	if d.ReviewerID <= 0 {
		return apperr.Validation("reviewer is required")
	}
	*status = to
	id, at := d.ReviewerID, d.At
	*reviewedBy = &id
	*reviewedAt = &at
	return nil
}

// ApproveWithdrawal подтверждает заявку и списывает сумму с кошелька.
// При ошибке ни заявка, ни кошелёк не меняются.
func ApproveWithdrawal(w *model.Wallet, req *model.WithdrawalRequest, d Decision) error {
	if req.WalletID != w.ID {
		return apperr.Validation("withdrawal %d does not belong to wallet %d", req.ID, w.ID)
	}
	if req.Status == model.ApprovalPending && req.Amount > w.Balance {
		return apperr.InsufficientBalance(req.Amount, w.Balance)
	}
	if err := review(&req.Status, model.ApprovalApproved, &req.ReviewedBy, &req.ReviewedAt, d); err != nil {
		return err
	}
	req.ReviewNote = d.Note

	w.Balance -= req.Amount
	w.TotalWithdrawn += req.Amount
	w.UpdatedAt = d.At
	return nil
}

// RejectWithdrawal отклоняет заявку; баланс не меняется.
func RejectWithdrawal(req *model.WithdrawalRequest, d Decision) error {
	if err := review(&req.Status, model.ApprovalRejected, &req.ReviewedBy, &req.ReviewedAt, d); err != nil {
		return err
	}
	req.ReviewNote = d.Note
	return nil
}

// ApproveReceipt подтверждает поступление и начисляет комиссию на кошелёк владельца проекта.
func ApproveReceipt(w *model.Wallet, r *model.PaymentReceipt, commission int64, d Decision) error {
	if commission < 0 {
		return apperr.Validation("commission must not be negative")
	}
	if err := review(&r.Status, model.ApprovalApproved, &r.ReviewedBy, &r.ReviewedAt, d); err != nil {
		return err
	}

	w.Balance += commission
	w.TotalEarned += commission
	w.UpdatedAt = d.At
	return nil
}

// RejectReceipt отклоняет поступление.
func RejectReceipt(r *model.PaymentReceipt, d Decision) error {
	return review(&r.Status, model.ApprovalRejected, &r.ReviewedBy, &r.ReviewedAt, d)
}
