package reports

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.TrialBalance)
	r.Get("/balance-sheet", h.BalanceSheet)
	r.Get("/profit-loss", h.ProfitAndLoss)
	r.Get("/cash-flow", h.CashFlow)
	r.Get("/day-book", h.DayBook)
	r.Get("/cash-book", h.CashBook)
	r.Get("/bank-book", h.BankBook)
	r.Get("/general-ledger", h.GeneralLedger)
	r.Get("/aging/{kind}", h.Aging)
	r.Get("/accounts/{id}/ledger", h.AccountLedger)
	r.Get("/accounts/{id}/balance", h.AccountBalance)
}
