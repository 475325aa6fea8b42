// Package finance содержит чистые функции расчёта сумм проекта с учётом GST.
package finance

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/leadflow/internal/model"
)

// GSTPercent задаёт фиксированную ставку GST.
const GSTPercent = 18

var gstMultiplier = decimal.NewFromInt(100 + GSTPercent).Div(decimal.NewFromInt(100))

// ApplyGST возвращает сумму в целых единицах валюты, округлённую до ближайшего целого.
// Отрицательная база даёт 0.
func ApplyGST(base float64, include bool) int64 {
	amount := decimal.NewFromFloat(base)
	if include {
		amount = amount.Mul(gstMultiplier)
	}
	rounded := amount.Round(0).IntPart()
	if rounded < 0 {
		return 0
	}
	return rounded
}

// Percent возвращает round(amount * percent / 100).
func Percent(amount int64, percent float64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// ComputeBreakdown раскладывает оплаты проекта. Аванс учитывается сразу, пока не отклонён;
// из обычных поступлений учитываются только подтверждённые, из рассрочки только оплаченные платежи.
func ComputeBreakdown(project model.Project, receipts []model.PaymentReceipt, installments []model.Installment) model.FinancialBreakdown {
	b := model.FinancialBreakdown{TotalCost: project.TotalCost}

	for _, r := range receipts {
		if r.ProjectID != project.ID || r.Status == model.ApprovalRejected {
			continue
		}
		switch r.Kind {
		case model.ReceiptAdvance:
			b.InitialAdvance += r.Amount
		default:
			if r.Status == model.ApprovalApproved {
				b.FromReceipts += r.Amount
			}
		}
	}

	for _, in := range installments {
		if in.ProjectID == project.ID && in.Status == model.InstallmentPaid {
			b.FromInstallments += in.Amount
		}
	}

	b.TotalPaid = b.InitialAdvance + b.FromReceipts + b.FromInstallments
	b.Pending = b.TotalCost - b.TotalPaid
	return b
}

// InFlightReceipts суммирует обычные поступления, ожидающие подтверждения.
func InFlightReceipts(receipts []model.PaymentReceipt) int64 {
	var sum int64
	for _, r := range receipts {
		if r.Kind != model.ReceiptAdvance && r.Status == model.ApprovalPending {
			sum += r.Amount
		}
	}
	return sum
}

// AvailableForRequest возвращает max(0, pending - inFlight): сколько ещё можно заявить,
// не обещая один и тот же остаток дважды.
func AvailableForRequest(pending, inFlight int64) int64 {
	if avail := pending - inFlight; avail > 0 {
		return avail
	}
	return 0
}
