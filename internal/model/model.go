// Package model содержит доменные сущности движка жизненного цикла лидов.
package model

import "time"

// LeadStatus описывает статус лида в воронке продаж.
type LeadStatus string

const (
	StatusNew           LeadStatus = "new"
	StatusConnected     LeadStatus = "connected"
	StatusNotPicked     LeadStatus = "not_picked"
	StatusFollowUp      LeadStatus = "followup"
	StatusQuotationSent LeadStatus = "quotation_sent"
	StatusDemoRequested LeadStatus = "demo_requested"
	StatusHot           LeadStatus = "hot"
	StatusConverted     LeadStatus = "converted"
	StatusLost          LeadStatus = "lost"
	StatusNotInterested LeadStatus = "not_interested"

	// Устаревшие статусы встречаются только у старых записей.
	StatusLegacyDQSent        LeadStatus = "dq_sent"
	StatusLegacyAppClient     LeadStatus = "app_client"
	StatusLegacyWeb           LeadStatus = "web"
	StatusLegacyTodayFollowUp LeadStatus = "today_followup"
)

// IsLegacy сообщает, что статус устаревший и не может быть целью перехода.
func (s LeadStatus) IsLegacy() bool {
	switch s {
	case StatusLegacyDQSent, StatusLegacyAppClient, StatusLegacyWeb, StatusLegacyTodayFollowUp:
		return true
	}
	return false
}

// FollowUpStatus описывает состояние запланированного контакта.
type FollowUpStatus string

const (
	FollowUpPending   FollowUpStatus = "pending"
	FollowUpCompleted FollowUpStatus = "completed"
	FollowUpCancelled FollowUpStatus = "cancelled"
)

// FollowUp описывает запланированный повторный контакт с лидом.
type FollowUp struct {
	ID            string         `json:"id"`
	ScheduledDate string         `json:"scheduled_date"`
	ScheduledTime string         `json:"scheduled_time"`
	Notes         string         `json:"notes,omitempty"`
	Priority      string         `json:"priority,omitempty"`
	Status        FollowUpStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Note описывает запись в журнале лида. Журнал только дополняется.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Share фиксирует, что лид открыт контрагенту.
type Share struct {
	CounterpartyID int64     `json:"counterparty_id"`
	SharedAt       time.Time `json:"shared_at"`
}

// Transfer фиксирует смену владельца лида.
type Transfer struct {
	FromSalesID int64     `json:"from_sales_id"`
	ToSalesID   int64     `json:"to_sales_id"`
	Reason      string    `json:"reason"`
	At          time.Time `json:"at"`
}

// Lead описывает потенциального клиента.
type Lead struct {
	ID               int64      `json:"id"`
	OwnerID          int64      `json:"owner_id"`
	ChannelPartnerID *int64     `json:"channel_partner_id,omitempty"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone"`
	CategoryID       int64      `json:"category_id"`
	Status           LeadStatus `json:"status"`
	LostReason       string     `json:"lost_reason"`
	FollowUps        []FollowUp `json:"follow_ups,omitempty"`
	Notes            []Note     `json:"notes,omitempty"`
	// SharedFromSales содержит партнёров, которым лид открыл торговый представитель.
	SharedFromSales  []Share    `json:"shared_from_sales,omitempty"`
	// SharedWithSales содержит торговых представителей, которым лид открыл партнёр.
	SharedWithSales  []Share    `json:"shared_with_sales,omitempty"`
	Transfers        []Transfer `json:"transfers,omitempty"`
	Version          int64      `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ProjectType хранит устаревшие флаги типа проекта.
type ProjectType struct {
	Web  bool `json:"web"`
	App  bool `json:"app"`
	Taxi bool `json:"taxi"`
}

// LeadProfile содержит квалификационные данные лида.
type LeadProfile struct {
	LeadID        int64       `json:"lead_id"`
	Name          string      `json:"name"`
	BusinessName  string      `json:"business_name"`
	Email         string      `json:"email"`
	EstimatedCost int64       `json:"estimated_cost"`
	QuotationSent bool        `json:"quotation_sent"`
	DemoSent      bool        `json:"demo_sent"`
	Description   string      `json:"description"`
	ProjectType   ProjectType `json:"project_type"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Client описывает клиента, получившегося в результате конвертации.
type Client struct {
	ID           int64     `json:"id"`
	LeadID       *int64    `json:"lead_id,omitempty"`
	OwnerID      int64     `json:"owner_id"`
	Name         string    `json:"name"`
	BusinessName string    `json:"business_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProjectStatus описывает стадию проекта.
type ProjectStatus string

const (
	ProjectPendingAssignment ProjectStatus = "pending_assignment"
	ProjectUntouched         ProjectStatus = "untouched"
	ProjectStarted           ProjectStatus = "started"
	ProjectActive            ProjectStatus = "active"
	ProjectOnHold            ProjectStatus = "on_hold"
	ProjectTesting           ProjectStatus = "testing"
	ProjectCompleted         ProjectStatus = "completed"
	ProjectCancelled         ProjectStatus = "cancelled"
)

// Project описывает оплачиваемый проект клиента.
type Project struct {
	ID           int64         `json:"id"`
	ClientID     int64         `json:"client_id"`
	OwnerID      int64         `json:"owner_id"`
	Name         string        `json:"name"`
	CategoryID   int64         `json:"category_id"`
	TotalCost    int64         `json:"total_cost"`
	IncludeGST   bool          `json:"include_gst"`
	FinishedDays int           `json:"finished_days"`
	Description  string        `json:"description"`
	Status       ProjectStatus `json:"status"`
	WorkProgress int           `json:"work_progress"`
	Version      int64         `json:"version"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ApprovalStatus описывает состояние двухфазной операции, требующей подтверждения администратора.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ReceiptKind отличает авансовый платёж при конвертации от обычных поступлений.
type ReceiptKind string

const (
	ReceiptAdvance ReceiptKind = "advance"
	ReceiptRegular ReceiptKind = "regular"
)

// PaymentReceipt описывает заявленный платёж по проекту.
type PaymentReceipt struct {
	ID          int64          `json:"id"`
	ProjectID   int64          `json:"project_id"`
	Kind        ReceiptKind    `json:"kind"`
	Amount      int64          `json:"amount"`
	AccountID   int64          `json:"account_id"`
	Method      string         `json:"method"`
	ReferenceID string         `json:"reference_id"`
	Notes       string         `json:"notes"`
	Status      ApprovalStatus `json:"status"`
	CreatedBy   int64          `json:"created_by"`
	ReviewedBy  *int64         `json:"reviewed_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ReviewedAt  *time.Time     `json:"reviewed_at,omitempty"`
}

// InstallmentStatus описывает состояние платежа по графику.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
)

// Installment описывает платёж по графику рассрочки.
type Installment struct {
	ID        int64             `json:"id"`
	ProjectID int64             `json:"project_id"`
	Amount    int64             `json:"amount"`
	DueDate   time.Time         `json:"due_date"`
	Status    InstallmentStatus `json:"status"`
	PaidAt    *time.Time        `json:"paid_at,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// FinancialBreakdown содержит производную раскладку оплат проекта. Не хранится.
type FinancialBreakdown struct {
	TotalCost        int64 `json:"total_cost"`
	InitialAdvance   int64 `json:"initial_advance"`
	FromReceipts     int64 `json:"from_receipts"`
	FromInstallments int64 `json:"from_installments"`
	TotalPaid        int64 `json:"total_paid"`
	// Pending может быть отрицательным при переплате.
	Pending int64 `json:"pending"`
}

// Overpaid сообщает о расхождении в биллинге.
func (b FinancialBreakdown) Overpaid() bool {
	return b.Pending < 0
}

// Wallet описывает кошелёк торгового представителя или партнёра.
type Wallet struct {
	ID             int64     `json:"id"`
	OwnerID        int64     `json:"owner_id"`
	Balance        int64     `json:"balance"`
	TotalEarned    int64     `json:"total_earned"`
	TotalWithdrawn int64     `json:"total_withdrawn"`
	Version        int64     `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// WithdrawalRequest описывает заявку на вывод средств.
type WithdrawalRequest struct {
	ID          int64          `json:"id"`
	WalletID    int64          `json:"wallet_id"`
	Amount      int64          `json:"amount"`
	Description string         `json:"description"`
	Status      ApprovalStatus `json:"status"`
	ReviewedBy  *int64         `json:"reviewed_by,omitempty"`
	ReviewNote  string         `json:"review_note"`
	CreatedAt   time.Time      `json:"created_at"`
	ReviewedAt  *time.Time     `json:"reviewed_at,omitempty"`
}

// Target описывает план продаж.
type Target struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	TargetNumber int       `json:"target_number"`
	Amount       int64     `json:"amount"`
	Deadline     time.Time `json:"deadline"`
	Reward       string    `json:"reward"`
	CreatedAt    time.Time `json:"created_at"`
}

// TargetProgress содержит план с производными показателями на момент расчёта.
type TargetProgress struct {
	Target           Target `json:"target"`
	MonthlySales     int64  `json:"monthly_sales"`
	Progress         int    `json:"progress"`
	IsAchieved       bool   `json:"is_achieved"`
	IsDeadlinePassed bool   `json:"is_deadline_passed"`
}

// SalesRep представляет торгового представителя.
type SalesRep struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	TeamLeadID *int64    `json:"team_lead_id,omitempty"`
	JoinedAt   time.Time `json:"joined_at"`
}

// Role описывает роль действующего лица.
type Role string

const (
	RoleSales          Role = "sales"
	RoleChannelPartner Role = "channel_partner"
	RoleAdmin          Role = "admin"
)

// Valid сообщает, что роль известна.
func (r Role) Valid() bool {
	switch r {
	case RoleSales, RoleChannelPartner, RoleAdmin:
		return true
	}
	return false
}

// Principal представляет действующее лицо, переданное внешним слоем авторизации.
type Principal struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// IsAdmin сообщает, что действующее лицо является администратором.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
