package journals

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// IdempotencyHeader lets clients retry entry creation safely.
const IdempotencyHeader = "Idempotency-Key"

const idempotencyScope = "journals.create"

// Idempotency guards repeated create requests carrying the same key.
type Idempotency interface {
	Claim(ctx context.Context, scope, key string) (int64, error)
	Complete(ctx context.Context, scope, key string, resultID int64) error
	Release(ctx context.Context, scope, key string) error
}

// Handler exposes journal entries over JSON.
type Handler struct {
	service     *Service
	idempotency Idempotency
	logger      *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// WithIdempotency enables Idempotency-Key handling on Create.
func (h *Handler) WithIdempotency(store Idempotency) *Handler {
	h.idempotency = store
	return h
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	companyID, err := httpx.QueryInt64(r, "company_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := ListEntriesFilter{
		CompanyID:     companyID,
		Type:          EntryType(q.Get("entry_type")),
		Range:         shared.DateRange{From: from, To: to},
		ReferenceType: q.Get("reference_type"),
		ReferenceID:   q.Get("reference_id"),
	}
	if raw := q.Get("posted"); raw != "" {
		posted, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.RespondError(w, httpx.ErrBadRequest)
			return
		}
		filter.Posted = &posted
	}
	if limit, err := httpx.QueryInt64(r, "limit"); err == nil && limit > 0 {
		filter.Limit = int(limit)
	}
	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list journals", err)
		return
	}
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, View(e))
	}
	httpx.OK(w, http.StatusOK, views)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get journal", err)
		return
	}
	httpx.OK(w, http.StatusOK, View(entry))
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
	key := r.Header.Get(IdempotencyHeader)
	if key != "" && h.idempotency != nil {
		prior, err := h.idempotency.Claim(r.Context(), idempotencyScope, key)
		if errors.Is(err, shared.ErrIdempotencyConflict) && prior > 0 {
			h.replay(w, r, prior)
			return
		}
		if err != nil {
			h.fail(w, "claim idempotency key", err)
			return
		}
	}
	actor := httpx.ActorID(r)
	var (
		entry JournalEntry
		err   error
	)
	if req.Post {
		entry, err = h.service.CreateAndPost(r.Context(), req.input(actor), actor)
	} else {
		entry, err = h.service.Create(r.Context(), req.input(actor))
	}
	if err != nil {
		if key != "" && h.idempotency != nil {
			if rerr := h.idempotency.Release(r.Context(), idempotencyScope, key); rerr != nil {
				h.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", rerr))
			}
		}
		h.fail(w, "create journal", err)
		return
	}
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.Complete(r.Context(), idempotencyScope, key, entry.ID); err != nil {
			h.logger.Warn("complete idempotency key", slog.String("key", key), slog.Any("error", err))
		}
	}
	httpx.OK(w, http.StatusCreated, View(entry))
}

// replay answers a repeated create with the entry the first request made.
func (h *Handler) replay(w http.ResponseWriter, r *http.Request, id int64) {
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "replay journal", err)
		return
	}
	w.Header().Set("Idempotent-Replayed", "true")
	httpx.OK(w, http.StatusOK, View(entry))
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
	entry, err := h.service.Update(r.Context(), id, req.input(), httpx.ActorID(r))
	if err != nil {
		h.fail(w, "update journal", err)
		return
	}
	httpx.OK(w, http.StatusOK, View(entry))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, httpx.ActorID(r)); err != nil {
		h.fail(w, "delete journal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Post(r.Context(), id, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "post journal", err)
		return
	}
	httpx.OK(w, http.StatusOK, View(entry))
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := httpx.Validate(req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	in := ReverseInput{ActorID: httpx.ActorID(r), Description: req.Description}
	if req.Date != nil {
		d, _ := time.Parse(time.DateOnly, *req.Date)
		in.Date = &d
	}
	entry, err := h.service.Reverse(r.Context(), id, in)
	if err != nil {
		h.fail(w, "reverse journal", err)
		return
	}
	httpx.OK(w, http.StatusCreated, View(entry))
}

func (h *Handler) ReverseByReference(w http.ResponseWriter, r *http.Request) {
	var req reverseByReferenceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.ReverseByReference(r.Context(), req.CompanyID, req.ReferenceType, req.ReferenceID, httpx.ActorID(r))
	if err != nil {
		h.fail(w, "reverse by reference", err)
		return
	}
	httpx.OK(w, http.StatusOK, viewReversal(res))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
