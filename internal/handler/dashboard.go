package handler

import (
	"net/http"

	"github.com/mmeshcher/leadflow/internal/dangerzone"
	"github.com/mmeshcher/leadflow/internal/service"
)

// Dashboard возвращает сводку текущего пользователя.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	d, err := h.service.Dashboard(r.Context(), p.ID)
	h.respond(w, r, http.StatusOK, d, err)
}

// TeamDashboard возвращает итоги команды текущего пользователя как руководителя.
func (h *Handler) TeamDashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	d, err := h.service.TeamDashboard(r.Context(), p.ID)
	h.respond(w, r, http.StatusOK, d, err)
}

// DangerZone возвращает признак зоны риска текущего пользователя.
func (h *Handler) DangerZone(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	res := h.service.DangerZone(r.Context(), p.ID)
	h.writeJSON(w, http.StatusOK, dangerZoneResponse{Entry: res.Entry, Tier: res.Tier})
}

type dangerZoneResponse struct {
	dangerzone.Entry
	Tier dangerzone.Tier `json:"tier"`
}

// ListTargets возвращает планы текущего пользователя.
func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	res, err := h.service.ListTargets(r.Context(), p.ID)
	h.respond(w, r, http.StatusOK, res, err)
}

// CurrentTarget возвращает план, показываемый по умолчанию.
func (h *Handler) CurrentTarget(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	res, err := h.service.CurrentTarget(r.Context(), p.ID)
	h.respond(w, r, http.StatusOK, res, err)
}

// CreateSalesRep регистрирует торгового представителя.
func (h *Handler) CreateSalesRep(w http.ResponseWriter, r *http.Request) {
	var in service.SalesRepInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	rep, err := h.service.CreateSalesRep(r.Context(), in)
	h.respond(w, r, http.StatusCreated, rep, err)
}

// CreateTarget добавляет план представителю.
func (h *Handler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	repID, err := idParam(r, "repID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var in service.TargetInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	t, err := h.service.CreateTarget(r.Context(), repID, in)
	h.respond(w, r, http.StatusCreated, t, err)
}

// RepDashboard возвращает сводку представителя для администратора.
func (h *Handler) RepDashboard(w http.ResponseWriter, r *http.Request) {
	repID, err := idParam(r, "repID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.service.Dashboard(r.Context(), repID)
	h.respond(w, r, http.StatusOK, d, err)
}
