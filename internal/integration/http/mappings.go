package integrationhttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// MappingStore persists per-company role overrides.
type MappingStore interface {
	ForCompany(ctx context.Context, companyID int64) ([]mappings.AccountMapping, error)
	Upsert(ctx context.Context, m mappings.AccountMapping) (mappings.AccountMapping, error)
	Delete(ctx context.Context, companyID int64, key string) error
}

type mappingRequest struct {
	CompanyID     int64  `json:"company_id" validate:"required,gt=0"`
	AccountNumber string `json:"account_number" validate:"required,max=20"`
}

type mappingView struct {
	Key           string     `json:"key"`
	AccountNumber string     `json:"account_number"`
	Override      bool       `json:"override"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// MappingHandler exposes the effective account map of a company and its
// overrides.
type MappingHandler struct {
	store    MappingStore
	defaults integration.AccountMap
	logger   *slog.Logger
}

func NewMappingHandler(logger *slog.Logger, store MappingStore, defaults integration.AccountMap) *MappingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MappingHandler{store: store, defaults: defaults, logger: logger}
}

func (h *MappingHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/{key}", h.Put)
	r.Delete("/{key}", h.Delete)
}

func (h *MappingHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.QueryInt64(r, "company_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if companyID <= 0 {
		httpx.RespondError(w, shared.ErrCompanyRequired)
		return
	}
	rows, err := h.store.ForCompany(r.Context(), companyID)
	if err != nil {
		h.fail(w, "list mappings", err)
		return
	}
	byKey := make(map[string]mappings.AccountMapping, len(rows))
	for _, row := range rows {
		byKey[strings.ToUpper(row.Key)] = row
	}
	effective := h.defaults.With(rows)
	views := make([]mappingView, 0, len(integration.Roles))
	for _, role := range integration.Roles {
		view := mappingView{Key: string(role), AccountNumber: effective.Number(role)}
		if row, ok := byKey[string(role)]; ok {
			view.Override = true
			updated := row.UpdatedAt
			view.UpdatedAt = &updated
		}
		views = append(views, view)
	}
	httpx.OK(w, http.StatusOK, views)
}

func (h *MappingHandler) Put(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !integration.ValidRole(key) {
		httpx.RespondError(w, shared.ErrInvalidMappingKey)
		return
	}
	var req mappingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	saved, err := h.store.Upsert(r.Context(), mappings.AccountMapping{
		CompanyID: req.CompanyID, Key: key, AccountNumber: req.AccountNumber,
	})
	if err != nil {
		h.fail(w, "save mapping", err)
		return
	}
	httpx.OK(w, http.StatusOK, mappingView{Key: saved.Key, AccountNumber: saved.AccountNumber, Override: true, UpdatedAt: &saved.UpdatedAt})
}

func (h *MappingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.QueryInt64(r, "company_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if companyID <= 0 {
		httpx.RespondError(w, shared.ErrCompanyRequired)
		return
	}
	key := chi.URLParam(r, "key")
	if !integration.ValidRole(key) {
		httpx.RespondError(w, shared.ErrInvalidMappingKey)
		return
	}
	if err := h.store.Delete(r.Context(), companyID, key); err != nil {
		h.fail(w, "delete mapping", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MappingHandler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
