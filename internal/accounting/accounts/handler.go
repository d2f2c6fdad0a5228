package accounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes the chart of accounts over JSON.
type Handler struct {
	registry *Registry
	logger   *slog.Logger
}

func NewHandler(logger *slog.Logger, registry *Registry) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, registry: registry}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.QueryInt64(r, "company_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListAccountsFilter{
		CompanyID: companyID,
		Type:      shared.AccountType(r.URL.Query().Get("type")),
		Search:    r.URL.Query().Get("q"),
	}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.RespondError(w, httpx.ErrBadRequest)
			return
		}
		filter.IsActive = &active
	}
	list, err := h.registry.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	views := make([]AccountView, 0, len(list))
	for _, a := range list {
		views = append(views, View(a))
	}
	httpx.OK(w, http.StatusOK, views)
}

func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.QueryInt64(r, "company_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	nodes, err := h.registry.Tree(r.Context(), companyID)
	if err != nil {
		h.fail(w, "account tree", err)
		return
	}
	httpx.OK(w, http.StatusOK, treeView(nodes))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	acct, err := h.registry.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get account", err)
		return
	}
	httpx.OK(w, http.StatusOK, View(acct))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	acct, err := h.registry.Create(r.Context(), req.input())
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.OK(w, http.StatusCreated, View(acct))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	acct, err := h.registry.Update(r.Context(), id, req.input())
	if err != nil {
		h.fail(w, "update account", err)
		return
	}
	httpx.OK(w, http.StatusOK, View(acct))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.registry.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
