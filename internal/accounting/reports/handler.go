package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler serves report read models inside the success envelope.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

type reportQuery struct {
	companyID int64
	r         shared.DateRange
	asOf      time.Time
}

func parseQuery(r *http.Request) (reportQuery, error) {
	var q reportQuery
	var err error
	if q.companyID, err = httpx.QueryInt64(r, "company_id"); err != nil {
		return q, err
	}
	if q.r.From, err = httpx.QueryDate(r, "from"); err != nil {
		return q, err
	}
	if q.r.To, err = httpx.QueryDate(r, "to"); err != nil {
		return q, err
	}
	if q.asOf, err = httpx.QueryDate(r, "as_of"); err != nil {
		return q, err
	}
	return q, nil
}

func (h *Handler) respond(w http.ResponseWriter, op string, data any, err error) {
	if err != nil {
		if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
			h.logger.Error(op, slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, data)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), q.companyID, q.asOf)
	h.respond(w, "trial balance", tb, err)
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), q.companyID, q.asOf)
	h.respond(w, "balance sheet", bs, err)
}

func (h *Handler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), q.companyID, q.r)
	h.respond(w, "profit and loss", pl, err)
}

func (h *Handler) CashFlow(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	cf, err := h.service.CashFlow(r.Context(), q.companyID, q.r)
	h.respond(w, "cash flow", cf, err)
}

func (h *Handler) DayBook(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	book, err := h.service.DayBook(r.Context(), q.companyID, q.r)
	h.respond(w, "day book", book, err)
}

func (h *Handler) CashBook(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	book, err := h.service.CashBook(r.Context(), q.companyID, q.r)
	h.respond(w, "cash book", book, err)
}

func (h *Handler) BankBook(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	book, err := h.service.BankBook(r.Context(), q.companyID, q.r)
	h.respond(w, "bank book", book, err)
}

func (h *Handler) GeneralLedger(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	book, err := h.service.GeneralLedger(r.Context(), q.companyID, q.r)
	h.respond(w, "general ledger", book, err)
}

func (h *Handler) Aging(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	kind, err := ParseAgingKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	aging, err := h.service.Aging(r.Context(), q.companyID, kind, q.asOf)
	h.respond(w, "aging", aging, err)
}

func (h *Handler) AccountLedger(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ledger, err := h.service.AccountLedger(r.Context(), id, q.r)
	h.respond(w, "account ledger", ledger, err)
}

func (h *Handler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	balance, err := h.service.AccountBalance(r.Context(), id)
	h.respond(w, "account balance", map[string]any{"account_id": id, "balance": balance}, err)
}
