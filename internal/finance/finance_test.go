package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmeshcher/leadflow/internal/model"
)

func TestApplyGST(t *testing.T) {
	tests := []struct {
		name    string
		base    float64
		include bool
		want    int64
	}{
		{name: "with gst", base: 1000, include: true, want: 1180},
		{name: "without gst", base: 1000, include: false, want: 1000},
		{name: "conversion example", base: 50000, include: true, want: 59000},
		{name: "fraction rounds half up", base: 0.5, include: false, want: 1},
		{name: "fraction with gst", base: 99.99, include: true, want: 118},
		{name: "small gst rounds to nearest", base: 3, include: true, want: 4},
		{name: "negative clamps to zero", base: -100, include: true, want: 0},
		{name: "zero", base: 0, include: true, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyGST(tt.base, tt.include)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, int64(0))
		})
	}
}

func TestComputeBreakdown(t *testing.T) {
	project := model.Project{ID: 7, TotalCost: 59000}

	tests := []struct {
		name         string
		receipts     []model.PaymentReceipt
		installments []model.Installment
		want         model.FinancialBreakdown
	}{
		{
			name: "advance counted before approval",
			receipts: []model.PaymentReceipt{
				{ProjectID: 7, Kind: model.ReceiptAdvance, Amount: 10000, Status: model.ApprovalPending},
			},
			want: model.FinancialBreakdown{TotalCost: 59000, InitialAdvance: 10000, TotalPaid: 10000, Pending: 49000},
		},
		{
			name: "only approved receipts and paid installments",
			receipts: []model.PaymentReceipt{
				{ProjectID: 7, Kind: model.ReceiptAdvance, Amount: 10000, Status: model.ApprovalApproved},
				{ProjectID: 7, Kind: model.ReceiptRegular, Amount: 5000, Status: model.ApprovalApproved},
				{ProjectID: 7, Kind: model.ReceiptRegular, Amount: 3000, Status: model.ApprovalPending},
				{ProjectID: 7, Kind: model.ReceiptRegular, Amount: 2000, Status: model.ApprovalRejected},
				{ProjectID: 8, Kind: model.ReceiptRegular, Amount: 9999, Status: model.ApprovalApproved},
			},
			installments: []model.Installment{
				{ProjectID: 7, Amount: 4000, Status: model.InstallmentPaid},
				{ProjectID: 7, Amount: 4000, Status: model.InstallmentPending},
			},
			want: model.FinancialBreakdown{
				TotalCost: 59000, InitialAdvance: 10000, FromReceipts: 5000,
				FromInstallments: 4000, TotalPaid: 19000, Pending: 40000,
			},
		},
		{
			name: "rejected advance is dropped",
			receipts: []model.PaymentReceipt{
				{ProjectID: 7, Kind: model.ReceiptAdvance, Amount: 10000, Status: model.ApprovalRejected},
			},
			want: model.FinancialBreakdown{TotalCost: 59000, Pending: 59000},
		},
		{
			name: "overpayment surfaces negative pending",
			receipts: []model.PaymentReceipt{
				{ProjectID: 7, Kind: model.ReceiptRegular, Amount: 60000, Status: model.ApprovalApproved},
			},
			want: model.FinancialBreakdown{TotalCost: 59000, FromReceipts: 60000, TotalPaid: 60000, Pending: -1000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBreakdown(project, tt.receipts, tt.installments)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.InitialAdvance+got.FromReceipts+got.FromInstallments, got.TotalPaid)
			assert.Equal(t, got.TotalCost-got.TotalPaid, got.Pending)
		})
	}
}

func TestOverpaidFlag(t *testing.T) {
	b := ComputeBreakdown(model.Project{ID: 1, TotalCost: 100}, []model.PaymentReceipt{
		{ProjectID: 1, Kind: model.ReceiptRegular, Amount: 150, Status: model.ApprovalApproved},
	}, nil)
	assert.True(t, b.Overpaid())
}

func TestAvailableForRequest(t *testing.T) {
	receipts := []model.PaymentReceipt{
		{Kind: model.ReceiptRegular, Amount: 3000, Status: model.ApprovalPending},
		{Kind: model.ReceiptRegular, Amount: 1000, Status: model.ApprovalApproved},
		{Kind: model.ReceiptAdvance, Amount: 10000, Status: model.ApprovalPending},
	}
	inFlight := InFlightReceipts(receipts)
	assert.Equal(t, int64(3000), inFlight)

	assert.Equal(t, int64(46000), AvailableForRequest(49000, inFlight))
	assert.Equal(t, int64(0), AvailableForRequest(2000, inFlight))
	assert.Equal(t, int64(0), AvailableForRequest(-500, 0))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, int64(1000), Percent(10000, 10))
	assert.Equal(t, int64(13), Percent(125, 10))
	assert.Equal(t, int64(0), Percent(0, 10))
}
