// Package handler содержит HTTP-обработчики API движка лидов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/leadflow/internal/apperr"
	"github.com/mmeshcher/leadflow/internal/dangerzone"
	"github.com/mmeshcher/leadflow/internal/middleware"
	"github.com/mmeshcher/leadflow/internal/model"
	"github.com/mmeshcher/leadflow/internal/service"
	"github.com/mmeshcher/leadflow/internal/target"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateLead(ctx context.Context, actor model.Principal, in service.NewLead) (*model.Lead, error)
	GetLead(ctx context.Context, actor model.Principal, leadID int64) (*model.Lead, error)
	ListLeads(ctx context.Context, actor model.Principal) ([]model.Lead, error)
	ChangeStatus(ctx context.Context, actor model.Principal, leadID int64, ch service.StatusChange) (*model.Lead, error)
	ScheduleFollowUp(ctx context.Context, actor model.Principal, leadID int64, in service.FollowUpInput) (*model.FollowUp, error)
	CompleteFollowUp(ctx context.Context, actor model.Principal, leadID int64, followUpID string) (*model.FollowUp, error)
	CancelFollowUp(ctx context.Context, actor model.Principal, leadID int64, followUpID string) (*model.FollowUp, error)
	RescheduleFollowUp(ctx context.Context, actor model.Principal, leadID int64, followUpID string, in service.FollowUpInput) (*model.FollowUp, error)
	AddNote(ctx context.Context, actor model.Principal, leadID int64, content string) (*model.Note, error)
	ShareWithChannelPartner(ctx context.Context, actor model.Principal, leadID, partnerID int64) (*model.Lead, error)
	ShareWithSales(ctx context.Context, actor model.Principal, leadID, salesID int64) (*model.Lead, error)
	UnshareWithChannelPartner(ctx context.Context, actor model.Principal, leadID, partnerID int64) (*model.Lead, error)
	UnshareWithSales(ctx context.Context, actor model.Principal, leadID, salesID int64) (*model.Lead, error)
	Transfer(ctx context.Context, actor model.Principal, leadID, toSalesID int64, reason string) (*model.Lead, error)
	UpsertProfile(ctx context.Context, actor model.Principal, leadID int64, in service.ProfileInput) (*model.LeadProfile, error)
	GetProfile(ctx context.Context, actor model.Principal, leadID int64) (*model.LeadProfile, error)

	ConvertLead(ctx context.Context, actor model.Principal, leadID int64, in service.ProjectInput) (*service.ConversionResult, error)
	AddClientProject(ctx context.Context, actor model.Principal, clientID int64, in service.ProjectInput) (*service.ConversionResult, error)
	GetClient(ctx context.Context, actor model.Principal, clientID int64) (*model.Client, error)

	GetProject(ctx context.Context, actor model.Principal, projectID int64) (*service.ProjectDetails, error)
	UpdateProjectStatus(ctx context.Context, actor model.Principal, projectID int64, next model.ProjectStatus) (*model.Project, error)
	UpdateWorkProgress(ctx context.Context, actor model.Principal, projectID int64, progress int) (*model.Project, error)
	CreateReceipt(ctx context.Context, actor model.Principal, projectID int64, in service.ReceiptInput) (*model.PaymentReceipt, error)
	ApproveReceipt(ctx context.Context, actor model.Principal, receiptID int64, note string) (*model.PaymentReceipt, error)
	RejectReceipt(ctx context.Context, actor model.Principal, receiptID int64, note string) (*model.PaymentReceipt, error)
	AddInstallment(ctx context.Context, actor model.Principal, projectID int64, in service.InstallmentInput) (*model.Installment, error)
	MarkInstallmentPaid(ctx context.Context, actor model.Principal, installmentID int64) (*model.Installment, error)

	GetWallet(ctx context.Context, actor model.Principal) (*model.Wallet, error)
	ListWithdrawals(ctx context.Context, actor model.Principal) ([]model.WithdrawalRequest, error)
	RequestWithdrawal(ctx context.Context, actor model.Principal, in service.WithdrawalInput) (*model.WithdrawalRequest, error)
	ApproveWithdrawal(ctx context.Context, actor model.Principal, requestID int64, note string) (*model.WithdrawalRequest, error)
	RejectWithdrawal(ctx context.Context, actor model.Principal, requestID int64, note string) (*model.WithdrawalRequest, error)

	CreateSalesRep(ctx context.Context, in service.SalesRepInput) (*model.SalesRep, error)
	CreateTarget(ctx context.Context, repID int64, in service.TargetInput) (*model.Target, error)
	ListTargets(ctx context.Context, repID int64) ([]model.TargetProgress, error)
	CurrentTarget(ctx context.Context, repID int64) (*model.TargetProgress, error)
	DangerZone(ctx context.Context, repID int64) dangerzone.Result
	Dashboard(ctx context.Context, repID int64) (*service.Dashboard, error)
	TeamDashboard(ctx context.Context, teamLeadID int64) (*target.TeamRollup, error)
}

// Handler реализует HTTP-обработчики API движка лидов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type errorResponse struct {
	Error   apperr.Kind `json:"error"`
	Message string      `json:"message"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindInvalidTransition, apperr.KindAlreadyConverted:
		return http.StatusConflict
	case apperr.KindInsufficientBalance:
		return http.StatusPaymentRequired
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	default:
		h.logger.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}

	resp := errorResponse{Error: kind, Message: apperr.Message(err)}
	if kind == "" {
		resp = errorResponse{Error: "internal", Message: http.StatusText(http.StatusInternalServerError)}
	}
	h.writeJSON(w, status, resp)
}

// decode читает JSON-тело запроса. Неизвестные поля отклоняются.
func decode(r *http.Request, v any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("%s must be a positive integer", name)
	}
	return id, nil
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return model.Principal{}, false
	}
	return p, true
}

// respond пишет результат вызова сервиса или ошибку.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, status, v)
}
