package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Ledger exposes the journal operations required by document workflows.
type Ledger interface {
	CreateAndPost(ctx context.Context, input journals.CreateEntryInput, actorID int64) (journals.JournalEntry, error)
	Post(ctx context.Context, id int64, actorID int64) (journals.JournalEntry, error)
	Get(ctx context.Context, id int64) (journals.JournalEntry, error)
	ReverseByReference(ctx context.Context, companyID int64, refType, refID string, actorID int64) (journals.ReversalResult, error)
	List(ctx context.Context, filter journals.ListEntriesFilter) ([]journals.JournalEntry, error)
}

// AccountLookup lists a company's chart of accounts.
type AccountLookup interface {
	List(ctx context.Context, filter accounts.ListAccountsFilter) ([]accounts.Account, error)
}

// Hooks turn document lifecycle transitions into posted journal entries.
type Hooks struct {
	ledger    Ledger
	accounts  AccountLookup
	mapping   AccountMap
	overrides OverrideSource
	logger    *slog.Logger
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, lookup AccountLookup, mapping AccountMap, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{ledger: ledger, accounts: lookup, mapping: mapping, logger: logger}
}

// WithOverrides lets per-company mappings replace the configured account numbers.
func (h *Hooks) WithOverrides(src OverrideSource) *Hooks {
	h.overrides = src
	return h
}

// SourceID is the deterministic reference id of a document's journal entry.
func SourceID(refType string, id int64) string {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d", refType, id))).String()
}

func (h *Hooks) resolve(ctx context.Context, companyID int64, roles ...Role) ([]int64, error) {
	mapping, err := h.mappingFor(ctx, companyID)
	if err != nil {
		return nil, err
	}
	list, err := h.accounts.List(ctx, accounts.ListAccountsFilter{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	byNumber := make(map[string]int64, len(list))
	for _, a := range list {
		byNumber[a.Number] = a.ID
	}
	ids := make([]int64, len(roles))
	for i, role := range roles {
		number := mapping.Number(role)
		id, ok := byNumber[number]
		if !ok {
			return nil, fmt.Errorf("%s account %s: %w", role, number, shared.ErrAccountNotFound)
		}
		ids[i] = id
	}
	return ids, nil
}

func (h *Hooks) mappingFor(ctx context.Context, companyID int64) (AccountMap, error) {
	if h.overrides == nil {
		return h.mapping, nil
	}
	rows, err := h.overrides.ForCompany(ctx, companyID)
	if err != nil {
		return AccountMap{}, err
	}
	return h.mapping.With(rows), nil
}

func moneyAccount(method PaymentMethod) Role {
	if method == MethodBank {
		return RoleBank
	}
	return RoleCash
}

type posting struct {
	companyID int64
	entryType journals.EntryType
	refType   string
	docID     int64
	number    string
	date      time.Time
	memo      string
	debit     Role
	credit    Role
	amount    decimal.Decimal
	debitRef  string
	creditRef string
}

// post records a two-line entry for a document. A document that already has
// a posted live entry is not posted again; a leftover draft is posted.
func (h *Hooks) post(ctx context.Context, p posting, actorID int64) (journals.JournalEntry, error) {
	amount := round2(p.amount)
	if !amount.IsPositive() {
		return journals.JournalEntry{}, shared.ErrInvalidAmount
	}
	if p.date.IsZero() {
		return journals.JournalEntry{}, shared.ErrDateRequired
	}
	refID := SourceID(p.refType, p.docID)
	existing, err := h.ledger.List(ctx, journals.ListEntriesFilter{CompanyID: p.companyID, ReferenceType: p.refType, ReferenceID: refID})
	if err != nil {
		return journals.JournalEntry{}, err
	}
	for _, e := range existing {
		if e.Type == journals.EntryTypeReversal || e.ReversedByID != nil {
			continue
		}
		if e.IsPosted {
			return e, nil
		}
		// a draft for the document exists but never reached the ledger
		entry, err := h.ledger.Post(ctx, e.ID, actorID)
		if errors.Is(err, shared.ErrAlreadyPosted) {
			return h.ledger.Get(ctx, e.ID)
		}
		return entry, err
	}
	ids, err := h.resolve(ctx, p.companyID, p.debit, p.credit)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	entry, err := h.ledger.CreateAndPost(ctx, journals.CreateEntryInput{
		CompanyID:       p.companyID,
		Date:            p.date,
		Type:            p.entryType,
		ReferenceType:   p.refType,
		ReferenceID:     refID,
		ReferenceNumber: p.number,
		Description:     p.memo,
		CreatedBy:       actorID,
		Lines: []journals.LineInput{
			{AccountID: ids[0], Type: shared.Debit, Amount: amount, DocumentRef: p.debitRef},
			{AccountID: ids[1], Type: shared.Credit, Amount: amount, DocumentRef: p.creditRef},
		},
	}, actorID)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	h.logger.Info("document posted",
		slog.String("reference_type", p.refType),
		slog.Int64("document_id", p.docID),
		slog.String("entry_number", entry.Number))
	return entry, nil
}

// reverse undoes the entry of a document. Documents that never reached the
// ledger have nothing to reverse.
func (h *Hooks) reverse(ctx context.Context, companyID int64, refType string, docID, actorID int64) error {
	_, err := h.ledger.ReverseByReference(ctx, companyID, refType, SourceID(refType, docID), actorID)
	if errors.Is(err, shared.ErrReferenceNotFound) {
		return nil
	}
	return err
}

func expenseAccount(inventory bool) Role {
	if inventory {
		return RoleInventory
	}
	return RoleExpense
}

// ApproveBill posts DR expense or inventory, CR payable.
func (h *Hooks) ApproveBill(ctx context.Context, bill Bill, actorID int64) (Bill, journals.JournalEntry, error) {
	if err := transition(billFlow, bill.Status, BillApproved); err != nil {
		return bill, journals.JournalEntry{}, err
	}
	ref := documentRef(RefBill, bill.ID)
	entry, err := h.post(ctx, posting{
		companyID: bill.CompanyID, entryType: journals.EntryTypeBill, refType: RefBill, docID: bill.ID,
		number: bill.Number, date: bill.Date, memo: fmt.Sprintf("Bill %s", bill.Number),
		debit: expenseAccount(bill.Inventory), credit: RolePayable, amount: Total(bill.Lines),
		debitRef: ref, creditRef: ref,
	}, actorID)
	if err != nil {
		return bill, journals.JournalEntry{}, err
	}
	bill.Status = BillApproved
	return bill, entry, nil
}

// CancelBill reverses an approved bill.
func (h *Hooks) CancelBill(ctx context.Context, bill Bill, actorID int64) (Bill, error) {
	if err := transition(billFlow, bill.Status, BillCancelled); err != nil {
		return bill, err
	}
	if bill.Status == BillApproved {
		if err := h.reverse(ctx, bill.CompanyID, RefBill, bill.ID, actorID); err != nil {
			return bill, err
		}
	}
	bill.Status = BillCancelled
	return bill, nil
}

// IssueInvoice posts DR receivable, CR revenue.
func (h *Hooks) IssueInvoice(ctx context.Context, inv Invoice, actorID int64) (Invoice, journals.JournalEntry, error) {
	if err := transition(invoiceFlow, inv.Status, InvoiceIssued); err != nil {
		return inv, journals.JournalEntry{}, err
	}
	ref := documentRef(RefInvoice, inv.ID)
	entry, err := h.post(ctx, posting{
		companyID: inv.CompanyID, entryType: journals.EntryTypeInvoice, refType: RefInvoice, docID: inv.ID,
		number: inv.Number, date: inv.Date, memo: fmt.Sprintf("Invoice %s", inv.Number),
		debit: RoleReceivable, credit: RoleRevenue, amount: Total(inv.Lines),
		debitRef: ref, creditRef: ref,
	}, actorID)
	if err != nil {
		return inv, journals.JournalEntry{}, err
	}
	inv.Status = InvoiceIssued
	return inv, entry, nil
}

// CancelInvoice reverses an issued invoice.
func (h *Hooks) CancelInvoice(ctx context.Context, inv Invoice, actorID int64) (Invoice, error) {
	if err := transition(invoiceFlow, inv.Status, InvoiceCancelled); err != nil {
		return inv, err
	}
	if inv.Status == InvoiceIssued {
		if err := h.reverse(ctx, inv.CompanyID, RefInvoice, inv.ID, actorID); err != nil {
			return inv, err
		}
	}
	inv.Status = InvoiceCancelled
	return inv, nil
}

// CompletePayment posts DR payable against the bill, CR cash or bank.
func (h *Hooks) CompletePayment(ctx context.Context, p Payment, actorID int64) (Payment, journals.JournalEntry, error) {
	if err := transition(paymentFlow, p.Status, PaymentCompleted); err != nil {
		return p, journals.JournalEntry{}, err
	}
	entry, err := h.post(ctx, posting{
		companyID: p.CompanyID, entryType: journals.EntryTypePayment, refType: RefPayment, docID: p.ID,
		number: p.Number, date: p.Date, memo: fmt.Sprintf("Payment %s", p.Number),
		debit: RolePayable, credit: moneyAccount(p.Method), amount: p.Amount,
		debitRef: documentRef(RefBill, p.BillID), creditRef: documentRef(RefPayment, p.ID),
	}, actorID)
	if err != nil {
		return p, journals.JournalEntry{}, err
	}
	p.Status = PaymentCompleted
	return p, entry, nil
}

// VoidPayment reverses a completed payment.
func (h *Hooks) VoidPayment(ctx context.Context, p Payment, actorID int64) (Payment, error) {
	if err := transition(paymentFlow, p.Status, PaymentVoided); err != nil {
		return p, err
	}
	if p.Status == PaymentCompleted {
		if err := h.reverse(ctx, p.CompanyID, RefPayment, p.ID, actorID); err != nil {
			return p, err
		}
	}
	p.Status = PaymentVoided
	return p, nil
}

// DeletePayment removes the ledger effect of a payment being deleted.
func (h *Hooks) DeletePayment(ctx context.Context, p Payment, actorID int64) error {
	return h.reverse(ctx, p.CompanyID, RefPayment, p.ID, actorID)
}

// ReceiveReceipt posts DR cash or bank, CR receivable against the invoice.
func (h *Hooks) ReceiveReceipt(ctx context.Context, r Receipt, actorID int64) (Receipt, journals.JournalEntry, error) {
	if err := transition(receiptFlow, r.Status, ReceiptReceived); err != nil {
		return r, journals.JournalEntry{}, err
	}
	entry, err := h.post(ctx, posting{
		companyID: r.CompanyID, entryType: journals.EntryTypeReceipt, refType: RefReceipt, docID: r.ID,
		number: r.Number, date: r.Date, memo: fmt.Sprintf("Receipt %s", r.Number),
		debit: moneyAccount(r.Method), credit: RoleReceivable, amount: r.Amount,
		debitRef: documentRef(RefReceipt, r.ID), creditRef: documentRef(RefInvoice, r.InvoiceID),
	}, actorID)
	if err != nil {
		return r, journals.JournalEntry{}, err
	}
	r.Status = ReceiptReceived
	return r, entry, nil
}

// VoidReceipt reverses a received receipt.
func (h *Hooks) VoidReceipt(ctx context.Context, r Receipt, actorID int64) (Receipt, error) {
	if err := transition(receiptFlow, r.Status, ReceiptVoided); err != nil {
		return r, err
	}
	if r.Status == ReceiptReceived {
		if err := h.reverse(ctx, r.CompanyID, RefReceipt, r.ID, actorID); err != nil {
			return r, err
		}
	}
	r.Status = ReceiptVoided
	return r, nil
}

// DeleteReceipt removes the ledger effect of a receipt being deleted.
func (h *Hooks) DeleteReceipt(ctx context.Context, r Receipt, actorID int64) error {
	return h.reverse(ctx, r.CompanyID, RefReceipt, r.ID, actorID)
}

// CompletePurchaseReturn posts DR payable against the bill, CR expense or inventory.
func (h *Hooks) CompletePurchaseReturn(ctx context.Context, ret PurchaseReturn, actorID int64) (PurchaseReturn, journals.JournalEntry, error) {
	if err := transition(returnFlow, ret.Status, ReturnCompleted); err != nil {
		return ret, journals.JournalEntry{}, err
	}
	entry, err := h.post(ctx, posting{
		companyID: ret.CompanyID, entryType: journals.EntryTypePurchaseReturn, refType: RefPurchaseReturn, docID: ret.ID,
		number: ret.Number, date: ret.Date, memo: fmt.Sprintf("Purchase return %s", ret.Number),
		debit: RolePayable, credit: expenseAccount(ret.Inventory), amount: Total(ret.Lines),
		debitRef: documentRef(RefBill, ret.BillID), creditRef: documentRef(RefPurchaseReturn, ret.ID),
	}, actorID)
	if err != nil {
		return ret, journals.JournalEntry{}, err
	}
	ret.Status = ReturnCompleted
	return ret, entry, nil
}

// CancelPurchaseReturn reverses a completed purchase return.
func (h *Hooks) CancelPurchaseReturn(ctx context.Context, ret PurchaseReturn, actorID int64) (PurchaseReturn, error) {
	if err := transition(returnFlow, ret.Status, ReturnCancelled); err != nil {
		return ret, err
	}
	if ret.Status == ReturnCompleted {
		if err := h.reverse(ctx, ret.CompanyID, RefPurchaseReturn, ret.ID, actorID); err != nil {
			return ret, err
		}
	}
	ret.Status = ReturnCancelled
	return ret, nil
}

// CompleteSalesReturn posts DR sales returns, CR receivable against the invoice.
func (h *Hooks) CompleteSalesReturn(ctx context.Context, ret SalesReturn, actorID int64) (SalesReturn, journals.JournalEntry, error) {
	if err := transition(returnFlow, ret.Status, ReturnCompleted); err != nil {
		return ret, journals.JournalEntry{}, err
	}
	entry, err := h.post(ctx, posting{
		companyID: ret.CompanyID, entryType: journals.EntryTypeSalesReturn, refType: RefSalesReturn, docID: ret.ID,
		number: ret.Number, date: ret.Date, memo: fmt.Sprintf("Sales return %s", ret.Number),
		debit: RoleSalesReturns, credit: RoleReceivable, amount: Total(ret.Lines),
		debitRef: documentRef(RefSalesReturn, ret.ID), creditRef: documentRef(RefInvoice, ret.InvoiceID),
	}, actorID)
	if err != nil {
		return ret, journals.JournalEntry{}, err
	}
	ret.Status = ReturnCompleted
	return ret, entry, nil
}

// CancelSalesReturn reverses a completed sales return.
func (h *Hooks) CancelSalesReturn(ctx context.Context, ret SalesReturn, actorID int64) (SalesReturn, error) {
	if err := transition(returnFlow, ret.Status, ReturnCancelled); err != nil {
		return ret, err
	}
	if ret.Status == ReturnCompleted {
		if err := h.reverse(ctx, ret.CompanyID, RefSalesReturn, ret.ID, actorID); err != nil {
			return ret, err
		}
	}
	ret.Status = ReturnCancelled
	return ret, nil
}
