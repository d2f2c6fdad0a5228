// Package integrationhttp lets upstream document systems report lifecycle
// transitions that must reach the ledger.
package integrationhttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type lineRequest struct {
	Description string          `json:"description" validate:"max=500"`
	Qty         decimal.Decimal `json:"qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// documentRequest is the union of the document shapes. ParentID is the bill or
// invoice a payment, receipt or return settles.
type documentRequest struct {
	ID        int64           `json:"id" validate:"required,gt=0"`
	CompanyID int64           `json:"company_id" validate:"required,gt=0"`
	ParentID  int64           `json:"parent_id" validate:"gte=0"`
	Number    string          `json:"number" validate:"max=120"`
	Date      string          `json:"date" validate:"required,datetime=2006-01-02"`
	Status    string          `json:"status" validate:"required,max=20"`
	Method    string          `json:"method" validate:"omitempty,oneof=CASH BANK"`
	Inventory bool            `json:"inventory"`
	Amount    decimal.Decimal `json:"amount"`
	Lines     []lineRequest   `json:"lines" validate:"dive"`
}

func (r documentRequest) date() time.Time {
	d, _ := time.Parse(time.DateOnly, r.Date)
	return d
}

func (r documentRequest) lines() []integration.DocumentLine {
	out := make([]integration.DocumentLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		out = append(out, integration.DocumentLine{Description: l.Description, Qty: l.Qty, UnitCost: l.UnitCost})
	}
	return out
}

func (r documentRequest) bill() integration.Bill {
	return integration.Bill{ID: r.ID, CompanyID: r.CompanyID, Number: r.Number, Date: r.date(),
		Status: integration.BillStatus(r.Status), Inventory: r.Inventory, Lines: r.lines()}
}

func (r documentRequest) invoice() integration.Invoice {
	return integration.Invoice{ID: r.ID, CompanyID: r.CompanyID, Number: r.Number, Date: r.date(),
		Status: integration.InvoiceStatus(r.Status), Lines: r.lines()}
}

func (r documentRequest) payment() integration.Payment {
	return integration.Payment{ID: r.ID, CompanyID: r.CompanyID, BillID: r.ParentID, Number: r.Number, Date: r.date(),
		Status: integration.PaymentStatus(r.Status), Method: integration.PaymentMethod(r.Method), Amount: r.Amount}
}

func (r documentRequest) receipt() integration.Receipt {
	return integration.Receipt{ID: r.ID, CompanyID: r.CompanyID, InvoiceID: r.ParentID, Number: r.Number, Date: r.date(),
		Status: integration.ReceiptStatus(r.Status), Method: integration.PaymentMethod(r.Method), Amount: r.Amount}
}

func (r documentRequest) purchaseReturn() integration.PurchaseReturn {
	return integration.PurchaseReturn{ID: r.ID, CompanyID: r.CompanyID, BillID: r.ParentID, Number: r.Number, Date: r.date(),
		Status: integration.ReturnStatus(r.Status), Inventory: r.Inventory, Lines: r.lines()}
}

func (r documentRequest) salesReturn() integration.SalesReturn {
	return integration.SalesReturn{ID: r.ID, CompanyID: r.CompanyID, InvoiceID: r.ParentID, Number: r.Number, Date: r.date(),
		Status: integration.ReturnStatus(r.Status), Lines: r.lines()}
}

// outcome is the response body: the document after the transition and the
// entry it produced, when any.
type outcome struct {
	Document any                 `json:"document"`
	Entry    *journals.EntryView `json:"entry,omitempty"`
}

type action func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error)

func posted[D any](doc D, entry journals.JournalEntry, err error) (outcome, error) {
	if err != nil {
		return outcome{}, err
	}
	view := journals.View(entry)
	return outcome{Document: doc, Entry: &view}, nil
}

func changed[D any](doc D, err error) (outcome, error) {
	if err != nil {
		return outcome{}, err
	}
	return outcome{Document: doc}, nil
}

var actions = map[string]map[string]action{
	"bills": {
		"approve": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			return posted(h.ApproveBill(ctx, req.bill(), actor))
		},
		"cancel": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			return changed(h.CancelBill(ctx, req.bill(), actor))
		},
	},
	"invoices": {
		"issue": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			return posted(h.IssueInvoice(ctx, req.invoice(), actor))
		},
		"cancel": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			return changed(h.CancelInvoice(ctx, req.invoice(), actor))
		},
	},
	"payments": {
		"complete": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			return posted(h.CompletePayment(ctx, req.payment(), actor))
		},
		"void": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			return changed(h.VoidPayment(ctx, req.payment(), actor))
		},
		"delete": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			p := req.payment()
			return changed(p, h.DeletePayment(ctx, p, actor))
		},
	},
	"receipts": {
		"receive": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			return posted(h.ReceiveReceipt(ctx, req.receipt(), actor))
		},
		"void": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			return changed(h.VoidReceipt(ctx, req.receipt(), actor))
		},
		"delete": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			rc := req.receipt()
			return changed(rc, h.DeleteReceipt(ctx, rc, actor))
		},
	},
	"purchase-returns": {
		"complete": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			return posted(h.CompletePurchaseReturn(ctx, req.purchaseReturn(), actor))
		},
		"cancel": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			return changed(h.CancelPurchaseReturn(ctx, req.purchaseReturn(), actor))
		},
	},
	"sales-returns": {
		"complete": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			return posted(h.CompleteSalesReturn(ctx, req.salesReturn(), actor))
		},
		"cancel": func(ctx context.Context, h *integration.Hooks, req documentRequest, actor int64) (outcome, error) {
			return changed(h.CancelSalesReturn(ctx, req.salesReturn(), actor))
		},
	},
}

// Handler routes document events to the integration hooks.
type Handler struct {
	hooks  *integration.Hooks
	logger *slog.Logger
}

// NewHandler constructs the document event handler.
func NewHandler(logger *slog.Logger, hooks *integration.Hooks) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hooks: hooks, logger: logger}
}

// MountRoutes registers POST /{document}/{action}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{document}/{action}", h.apply)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	document, name := chi.URLParam(r, "document"), chi.URLParam(r, "action")
	act, ok := actions[document][name]
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", fmt.Sprintf("no %s action for %s", name, document))
		return
	}
	var req documentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := act(r.Context(), h.hooks, req, httpx.ActorID(r))
	if err != nil {
		status, _ := httpx.StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("document event", slog.String("document", document), slog.String("action", name), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, out)
}
