package handler

import (
	"net/http"

	"github.com/mmeshcher/leadflow/internal/model"
	"github.com/mmeshcher/leadflow/internal/service"
)

// GetWallet возвращает кошелёк текущего пользователя.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), p)
	h.respond(w, r, http.StatusOK, wallet, err)
}

// RequestWithdrawal создаёт заявку на вывод средств.
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var in service.WithdrawalInput
	if err := decode(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	req, err := h.service.RequestWithdrawal(r.Context(), p, in)
	h.respond(w, r, http.StatusAccepted, req, err)
}

// ListWithdrawals возвращает историю заявок на вывод.
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	res, err := h.service.ListWithdrawals(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(res) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ApproveWithdrawal подтверждает заявку на вывод.
func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "withdrawalID", func(p model.Principal, id int64, note string) (any, error) {
		return h.service.ApproveWithdrawal(r.Context(), p, id, note)
	})
}

// RejectWithdrawal отклоняет заявку на вывод.
func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "withdrawalID", func(p model.Principal, id int64, note string) (any, error) {
		return h.service.RejectWithdrawal(r.Context(), p, id, note)
	})
}
