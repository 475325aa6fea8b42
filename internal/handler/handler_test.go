package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/leadflow/internal/apperr"
	"github.com/mmeshcher/leadflow/internal/dangerzone"
	"github.com/mmeshcher/leadflow/internal/middleware"
	"github.com/mmeshcher/leadflow/internal/model"
	"github.com/mmeshcher/leadflow/internal/service"
)

// stubService реализует только вызываемые в тестах методы; остальные паникуют
// через nil-интерфейс.
type stubService struct {
	Service

	lead    *model.Lead
	leads   []model.Lead
	leadErr error

	gotActor  model.Principal
	gotLeadID int64
	gotChange service.StatusChange

	conversion    *service.ConversionResult
	conversionErr error

	withdrawal    *model.WithdrawalRequest
	withdrawalErr error
	gotNote       string

	danger dangerzone.Result
}

func (s *stubService) GetLead(ctx context.Context, actor model.Principal, leadID int64) (*model.Lead, error) {
	s.gotActor, s.gotLeadID = actor, leadID
	return s.lead, s.leadErr
}

func (s *stubService) ListLeads(ctx context.Context, actor model.Principal) ([]model.Lead, error) {
	s.gotActor = actor
	return s.leads, s.leadErr
}

func (s *stubService) ChangeStatus(ctx context.Context, actor model.Principal, leadID int64, ch service.StatusChange) (*model.Lead, error) {
	s.gotActor, s.gotLeadID, s.gotChange = actor, leadID, ch
	return s.lead, s.leadErr
}

func (s *stubService) ConvertLead(ctx context.Context, actor model.Principal, leadID int64, in service.ProjectInput) (*service.ConversionResult, error) {
	s.gotLeadID = leadID
	return s.conversion, s.conversionErr
}

func (s *stubService) RequestWithdrawal(ctx context.Context, actor model.Principal, in service.WithdrawalInput) (*model.WithdrawalRequest, error) {
	return s.withdrawal, s.withdrawalErr
}

func (s *stubService) ApproveWithdrawal(ctx context.Context, actor model.Principal, requestID int64, note string) (*model.WithdrawalRequest, error) {
	s.gotActor, s.gotNote = actor, note
	return s.withdrawal, s.withdrawalErr
}

func (s *stubService) DangerZone(ctx context.Context, repID int64) dangerzone.Result {
	return s.danger
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

func do(t *testing.T, h *Handler, p *model.Principal, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if p != nil {
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: h.authMiddleware.Token(*p)})
	}

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec
}

var (
	salesRep = model.Principal{ID: 7, Role: model.RoleSales}
	admin    = model.Principal{ID: 1, Role: model.RoleAdmin}
)

func TestGetLead_Success(t *testing.T) {
	svc := &stubService{lead: &model.Lead{ID: 5, Name: "Acme", Status: model.StatusNew}}
	h := newTestHandler(t, svc)

	rec := do(t, h, &salesRep, http.MethodGet, "/api/leads/5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, salesRep, svc.gotActor)
	assert.Equal(t, int64(5), svc.gotLeadID)

	var got model.Lead
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Acme", got.Name)
}

func TestGetLead_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := do(t, h, nil, http.MethodGet, "/api/leads/5", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetLead_BadID(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := do(t, h, &salesRep, http.MethodGet, "/api/leads/abc", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, apperr.KindValidation, resp.Error)
}

func TestListLeads_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{leads: []model.Lead{}})

	rec := do(t, h, &salesRep, http.MethodGet, "/api/leads", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestChangeStatus_DecodesBody(t *testing.T) {
	svc := &stubService{lead: &model.Lead{ID: 3, Status: model.StatusConnected}}
	h := newTestHandler(t, svc)

	rec := do(t, h, &salesRep, http.MethodPost, "/api/leads/3/status", map[string]string{
		"status": "connected",
		"notes":  "called back",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusConnected, svc.gotChange.Status)
	assert.Equal(t, "called back", svc.gotChange.Notes)
}

func TestChangeStatus_UnknownField(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := do(t, h, &salesRep, http.MethodPost, "/api/leads/3/status", map[string]string{
		"state": "connected",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   apperr.Kind
	}{
		{"validation", apperr.Validation("bad"), http.StatusBadRequest, apperr.KindValidation},
		{"invalid transition", apperr.InvalidTransition("new", "lost"), http.StatusConflict, apperr.KindInvalidTransition},
		{"already converted", apperr.AlreadyConverted(3), http.StatusConflict, apperr.KindAlreadyConverted},
		{"not found", apperr.NotFound("lead", 3), http.StatusNotFound, apperr.KindNotFound},
		{"storage", apperr.StorageUnavailable("get lead", context.DeadlineExceeded), http.StatusServiceUnavailable, apperr.KindStorageUnavailable},
		{"unclassified", context.Canceled, http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{conversionErr: tt.err})

			rec := do(t, h, &salesRep, http.MethodPost, "/api/leads/3/convert", map[string]any{
				"project_name": "Site",
				"category_id":  1,
				"base_cost":    1000,
			})

			require.Equal(t, tt.status, rec.Code)

			var resp errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.kind, resp.Error)
		})
	}
}

func TestRequestWithdrawal_InsufficientBalance(t *testing.T) {
	h := newTestHandler(t, &stubService{withdrawalErr: apperr.InsufficientBalance(500, 100)})

	rec := do(t, h, &salesRep, http.MethodPost, "/api/wallet/withdrawals", map[string]any{"amount": 500})

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	svc := &stubService{withdrawal: &model.WithdrawalRequest{ID: 9, Status: model.ApprovalApproved}}
	h := newTestHandler(t, svc)

	rec := do(t, h, &salesRep, http.MethodPost, "/api/admin/withdrawals/9/approve", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, &admin, http.MethodPost, "/api/admin/withdrawals/9/approve", map[string]string{"note": "ok"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, admin, svc.gotActor)
	assert.Equal(t, "ok", svc.gotNote)
}

func TestAdminReview_EmptyBody(t *testing.T) {
	svc := &stubService{withdrawal: &model.WithdrawalRequest{ID: 9}}
	h := newTestHandler(t, svc)

	rec := do(t, h, &admin, http.MethodPost, "/api/admin/withdrawals/9/approve", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.gotNote)
}

func TestDangerZone_IncludesTier(t *testing.T) {
	svc := &stubService{danger: dangerzone.Result{
		Entry: dangerzone.Entry{IsInDangerZone: true, DaysSinceLastConversion: 9},
		Tier:  dangerzone.TierLastConversion,
	}}
	h := newTestHandler(t, svc)

	rec := do(t, h, &salesRep, http.MethodGet, "/api/dashboard/danger-zone", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, true, got["is_in_danger_zone"])
	assert.EqualValues(t, 9, got["days_since_last_conversion"])
	assert.Equal(t, "last_conversion", got["tier"])
}
