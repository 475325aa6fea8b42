package handler

import (
	"net/http"

	"github.com/mmeshcher/leadflow/internal/model"
	"github.com/mmeshcher/leadflow/internal/service"
)

type projectStatusRequest struct {
	Status model.ProjectStatus `json:"status"`
}

type progressRequest struct {
	WorkProgress int `json:"work_progress"`
}

type reviewRequest struct {
	Note string `json:"note"`
}

// GetClient возвращает клиента.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	clientID, err := idParam(r, "clientID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	c, err := h.service.GetClient(r.Context(), p, clientID)
	h.respond(w, r, http.StatusOK, c, err)
}

// AddClientProject создаёт новый проект существующего клиента.
func (h *Handler) AddClientProject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	clientID, err := idParam(r, "clientID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var in service.ProjectInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.service.AddClientProject(r.Context(), p, clientID, in)
	h.respond(w, r, http.StatusCreated, res, err)
}

// GetProject возвращает проект с раскладкой оплат.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	projectID, err := idParam(r, "projectID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.service.GetProject(r.Context(), p, projectID)
	h.respond(w, r, http.StatusOK, d, err)
}

// UpdateProjectStatus меняет статус проекта.
func (h *Handler) UpdateProjectStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	projectID, err := idParam(r, "projectID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req projectStatusRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	project, err := h.service.UpdateProjectStatus(r.Context(), p, projectID, req.Status)
	h.respond(w, r, http.StatusOK, project, err)
}

// UpdateWorkProgress задаёт процент готовности проекта.
func (h *Handler) UpdateWorkProgress(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	projectID, err := idParam(r, "projectID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req progressRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	project, err := h.service.UpdateWorkProgress(r.Context(), p, projectID, req.WorkProgress)
	h.respond(w, r, http.StatusOK, project, err)
}

// CreateReceipt заявляет поступление по проекту.
func (h *Handler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	projectID, err := idParam(r, "projectID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var in service.ReceiptInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	rc, err := h.service.CreateReceipt(r.Context(), p, projectID, in)
	h.respond(w, r, http.StatusAccepted, rc, err)
}

// AddInstallment добавляет платёж в график рассрочки.
func (h *Handler) AddInstallment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	projectID, err := idParam(r, "projectID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var in service.InstallmentInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	inst, err := h.service.AddInstallment(r.Context(), p, projectID, in)
	h.respond(w, r, http.StatusCreated, inst, err)
}

// MarkInstallmentPaid отмечает платёж по графику оплаченным.
func (h *Handler) MarkInstallmentPaid(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	installmentID, err := idParam(r, "installmentID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	inst, err := h.service.MarkInstallmentPaid(r.Context(), p, installmentID)
	h.respond(w, r, http.StatusOK, inst, err)
}

// ApproveReceipt подтверждает поступление.
func (h *Handler) ApproveReceipt(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "receiptID", func(p model.Principal, id int64, note string) (any, error) {
		return h.service.ApproveReceipt(r.Context(), p, id, note)
	})
}

// RejectReceipt отклоняет поступление.
func (h *Handler) RejectReceipt(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "receiptID", func(p model.Principal, id int64, note string) (any, error) {
		return h.service.RejectReceipt(r.Context(), p, id, note)
	})
}

// review разбирает решение администратора. Тело запроса необязательно.
func (h *Handler) review(w http.ResponseWriter, r *http.Request, param string, fn func(p model.Principal, id int64, note string) (any, error)) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, err := idParam(r, param)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req reviewRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	res, err := fn(p, id, req.Note)
	h.respond(w, r, http.StatusOK, res, err)
}
