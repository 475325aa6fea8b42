package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/leadflow/internal/middleware"
	"github.com/mmeshcher/leadflow/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware движка лидов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Route("/leads", func(r chi.Router) {
			r.Post("/", h.CreateLead)
			r.Get("/", h.ListLeads)

			r.Route("/{leadID}", func(r chi.Router) {
				r.Get("/", h.GetLead)
				r.Post("/status", h.ChangeStatus)

				r.Post("/followups", h.ScheduleFollowUp)
				r.Post("/followups/{followUpID}/complete", h.CompleteFollowUp)
				r.Post("/followups/{followUpID}/cancel", h.CancelFollowUp)
				r.Post("/followups/{followUpID}/reschedule", h.RescheduleFollowUp)

				r.Post("/notes", h.AddNote)

				r.Post("/share/partners", h.ShareWithChannelPartner)
				r.Delete("/share/partners/{counterpartyID}", h.UnshareWithChannelPartner)
				r.Post("/share/sales", h.ShareWithSales)
				r.Delete("/share/sales/{counterpartyID}", h.UnshareWithSales)

				r.Post("/transfer", h.Transfer)

				r.Get("/profile", h.GetProfile)
				r.Put("/profile", h.UpsertProfile)

				r.Post("/convert", h.ConvertLead)
			})
		})

		r.Route("/clients/{clientID}", func(r chi.Router) {
			r.Get("/", h.GetClient)
			r.Post("/projects", h.AddClientProject)
		})

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/", h.GetProject)
			r.Post("/status", h.UpdateProjectStatus)
			r.Post("/progress", h.UpdateWorkProgress)
			r.Post("/receipts", h.CreateReceipt)
			r.Post("/installments", h.AddInstallment)
		})

		r.Post("/installments/{installmentID}/paid", h.MarkInstallmentPaid)

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", h.GetWallet)
			r.Get("/withdrawals", h.ListWithdrawals)
			r.Post("/withdrawals", h.RequestWithdrawal)
		})

		r.Get("/targets", h.ListTargets)
		r.Get("/targets/current", h.CurrentTarget)

		r.Get("/dashboard", h.Dashboard)
		r.Get("/dashboard/team", h.TeamDashboard)
		r.Get("/dashboard/danger-zone", h.DangerZone)

		r.Route("/admin", func(r chi.Router) {
			r.Use(custommiddleware.RequireRole(model.RoleAdmin))

			r.Post("/receipts/{receiptID}/approve", h.ApproveReceipt)
			r.Post("/receipts/{receiptID}/reject", h.RejectReceipt)
			r.Post("/withdrawals/{withdrawalID}/approve", h.ApproveWithdrawal)
			r.Post("/withdrawals/{withdrawalID}/reject", h.RejectWithdrawal)

			r.Post("/sales", h.CreateSalesRep)
			r.Post("/sales/{repID}/targets", h.CreateTarget)
			r.Get("/sales/{repID}/dashboard", h.RepDashboard)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
