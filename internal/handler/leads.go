package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/leadflow/internal/model"
	"github.com/mmeshcher/leadflow/internal/service"
)

type noteRequest struct {
	Content string `json:"content"`
}

type shareRequest struct {
	CounterpartyID int64 `json:"counterparty_id"`
}

type transferRequest struct {
	ToSalesID int64  `json:"to_sales_id"`
	Reason    string `json:"reason"`
}

// CreateLead создаёт лид от имени текущего пользователя.
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var in service.NewLead
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	lead, err := h.service.CreateLead(r.Context(), p, in)
	h.respond(w, r, http.StatusCreated, lead, err)
}

// ListLeads возвращает лиды, доступные текущему пользователю.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	leads, err := h.service.ListLeads(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(leads) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, leads)
}

// GetLead возвращает лид.
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	leadID, err := idParam(r, "leadID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	lead, err := h.service.GetLead(r.Context(), p, leadID)
	h.respond(w, r, http.StatusOK, lead, err)
}

// ChangeStatus меняет статус лида.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	leadID, err := idParam(r, "leadID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var ch service.StatusChange
	if err := decode(r, &ch); err != nil {
		h.writeError(w, r, err)
		return
	}

	lead, err := h.service.ChangeStatus(r.Context(), p, leadID, ch)
	h.respond(w, r, http.StatusOK, lead, err)
}

// ScheduleFollowUp добавляет контакт.
func (h *Handler) ScheduleFollowUp(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	leadID, err := idParam(r, "leadID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var in service.FollowUpInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	f, err := h.service.ScheduleFollowUp(r.Context(), p, leadID, in)
	h.respond(w, r, http.StatusCreated, f, err)
}

// CompleteFollowUp отмечает контакт выполненным.
func (h *Handler) CompleteFollowUp(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	leadID, err := idParam(r, "leadID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	f, err := h.service.CompleteFollowUp(r.Context(), p, leadID, chi.URLParam(r, "followUpID"))
	h.respond(w, r, http.StatusOK, f, err)
}

// CancelFollowUp отменяет контакт.
func (h *Handler) CancelFollowUp(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	leadID, err := idParam(r, "leadID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	f, err := h.service.CancelFollowUp(r.Context(), p, leadID, chi.URLParam(r, "followUpID"))
	h.respond(w, r, http.StatusOK, f, err)
}

// RescheduleFollowUp переносит контакт.
func (h *Handler) RescheduleFollowUp(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	leadID, err := idParam(r, "leadID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var in service.FollowUpInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	f, err := h.service.RescheduleFollowUp(r.Context(), p, leadID, chi.URLParam(r, "followUpID"), in)
	h.respond(w, r, http.StatusOK, f, err)
}

// AddNote дописывает заметку.
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	leadID, err := idParam(r, "leadID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req noteRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	note, err := h.service.AddNote(r.Context(), p, leadID, req.Content)
	h.respond(w, r, http.StatusCreated, note, err)
}

// ShareWithChannelPartner открывает лид партнёру.
func (h *Handler) ShareWithChannelPartner(w http.ResponseWriter, r *http.Request) {
	h.share(w, r, h.service.ShareWithChannelPartner)
}

// ShareWithSales открывает лид торговому представителю.
func (h *Handler) ShareWithSales(w http.ResponseWriter, r *http.Request) {
	h.share(w, r, h.service.ShareWithSales)
}

type shareFunc func(ctx context.Context, actor model.Principal, leadID, counterpartyID int64) (*model.Lead, error)

func (h *Handler) share(w http.ResponseWriter, r *http.Request, fn shareFunc) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	leadID, err := idParam(r, "leadID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req shareRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	lead, err := fn(r.Context(), p, leadID, req.CounterpartyID)
	h.respond(w, r, http.StatusOK, lead, err)
}

// UnshareWithChannelPartner закрывает доступ партнёру.
func (h *Handler) UnshareWithChannelPartner(w http.ResponseWriter, r *http.Request) {
	h.unshare(w, r, h.service.UnshareWithChannelPartner)
}

// UnshareWithSales закрывает доступ торговому представителю.
func (h *Handler) UnshareWithSales(w http.ResponseWriter, r *http.Request) {
	h.unshare(w, r, h.service.UnshareWithSales)
}

func (h *Handler) unshare(w http.ResponseWriter, r *http.Request, fn shareFunc) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	leadID, err := idParam(r, "leadID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	counterpartyID, err := idParam(r, "counterpartyID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	lead, err := fn(r.Context(), p, leadID, counterpartyID)
	h.respond(w, r, http.StatusOK, lead, err)
}

// Transfer передаёт лид другому торговому представителю.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	leadID, err := idParam(r, "leadID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req transferRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	lead, err := h.service.Transfer(r.Context(), p, leadID, req.ToSalesID, req.Reason)
	h.respond(w, r, http.StatusOK, lead, err)
}

// UpsertProfile создаёт или обновляет профиль лида.
func (h *Handler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	leadID, err := idParam(r, "leadID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var in service.ProfileInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	profile, err := h.service.UpsertProfile(r.Context(), p, leadID, in)
	h.respond(w, r, http.StatusOK, profile, err)
}

// GetProfile возвращает профиль лида.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	leadID, err := idParam(r, "leadID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	profile, err := h.service.GetProfile(r.Context(), p, leadID)
	h.respond(w, r, http.StatusOK, profile, err)
}

// ConvertLead конвертирует лид в клиента с проектом.
func (h *Handler) ConvertLead(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	leadID, err := idParam(r, "leadID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var in service.ProjectInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.service.ConvertLead(r.Context(), p, leadID, in)
	h.respond(w, r, http.StatusCreated, res, err)
}
