package integration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type fixture struct {
	store   *ledgertest.Store
	ledger  *journals.Service
	hooks   *integration.Hooks
	numbers map[string]int64
}

func newFixture(t *testing.T, mode journals.ReversalMode) *fixture {
	t.Helper()
	f := &fixture{store: ledgertest.New(), numbers: map[string]int64{}}
	chart := []accounts.Account{
		{Number: "1000", Name: "Cash", Type: shared.AccountTypeAsset},
		{Number: "1010", Name: "Bank", Type: shared.AccountTypeAsset},
		{Number: "1200", Name: "Accounts Receivable", Type: shared.AccountTypeAsset},
		{Number: "1300", Name: "Inventory", Type: shared.AccountTypeAsset},
		{Number: "2000", Name: "Accounts Payable", Type: shared.AccountTypeLiability},
		{Number: "4000", Name: "Sales", Type: shared.AccountTypeRevenue},
		{Number: "4100", Name: "Sales Returns", Type: shared.AccountTypeRevenue},
		{Number: "5000", Name: "Office Supplies", Type: shared.AccountTypeExpense},
	}
	for _, a := range chart {
		a.CompanyID = 1
		a.IsActive = true
		f.numbers[a.Number] = f.store.SeedAccount(a).ID
	}
	f.ledger = journals.NewService(f.store.Journals(), nil, nil)
	f.ledger.WithReversalMode(mode)
	registry := accounts.NewRegistry(f.store.Accounts(), nil)
	var mapping integration.AccountMap
	mapping.Cash, mapping.Bank, mapping.Receivable, mapping.Inventory = "1000", "1010", "1200", "1300"
	mapping.Payable, mapping.Revenue, mapping.SalesReturns, mapping.Expense = "2000", "4000", "4100", "5000"
	f.hooks = integration.NewHooks(f.ledger, registry, mapping, nil)
	return f
}

func (f *fixture) balance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	a, ok := f.store.Account(f.numbers[number])
	require.True(t, ok)
	return a.CurrentBalance
}

func lines(qty, cost string) []integration.DocumentLine {
	return []integration.DocumentLine{{Qty: decimal.RequireFromString(qty), UnitCost: decimal.RequireFromString(cost)}}
}

var on = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func TestBillAndPaymentLifecycle(t *testing.T) {
	f := newFixture(t, journals.ReversalModeReversingEntry)
	ctx := context.Background()

	bill := integration.Bill{ID: 7, CompanyID: 1, Number: "BILL-7", Date: on, Status: integration.BillDraft, Lines: lines("3", "33.333")}
	bill, entry, err := f.hooks.ApproveBill(ctx, bill, 9)
	require.NoError(t, err)
	require.Equal(t, integration.BillApproved, bill.Status)
	require.Equal(t, journals.EntryTypeBill, entry.Type)
	require.True(t, entry.IsPosted)
	require.Equal(t, integration.SourceID(integration.RefBill, 7), entry.ReferenceID)
	require.True(t, f.balance(t, "5000").Equal(decimal.RequireFromString("100")))
	require.True(t, f.balance(t, "2000").Equal(decimal.RequireFromString("100")))

	_, _, err = f.hooks.ApproveBill(ctx, bill, 9)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	pay := integration.Payment{ID: 3, CompanyID: 1, BillID: 7, Number: "PAY-3", Date: on.AddDate(0, 0, 5),
		Status: integration.PaymentPending, Method: integration.MethodBank, Amount: decimal.NewFromInt(40)}
	pay, _, err = f.hooks.CompletePayment(ctx, pay, 9)
	require.NoError(t, err)
	require.True(t, f.balance(t, "1010").Equal(decimal.NewFromInt(-40)))
	require.True(t, f.balance(t, "2000").Equal(decimal.NewFromInt(60)))

	svc := reports.NewService(f.store.Balances(), nil, nil, nil)
	ap, err := svc.Aging(ctx, 1, reports.AgingPayable, on.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.Len(t, ap.Documents, 1)
	require.Equal(t, "BILL:7", ap.Documents[0].DocumentRef)
	require.True(t, ap.Total.Equal(decimal.NewFromInt(60)))

	require.NoError(t, f.hooks.DeletePayment(ctx, pay, 9))
	require.True(t, f.balance(t, "1010").IsZero())
	require.True(t, f.balance(t, "2000").Equal(decimal.NewFromInt(100)))

	entries := f.store.Entries()
	var reversals int
	for _, e := range entries {
		if e.Type == journals.EntryTypeReversal {
			reversals++
		}
	}
	require.Equal(t, 1, reversals)

	bill, err = f.hooks.CancelBill(ctx, bill, 9)
	require.NoError(t, err)
	require.Equal(t, integration.BillCancelled, bill.Status)
	require.True(t, f.balance(t, "2000").IsZero())
	require.True(t, f.balance(t, "5000").IsZero())
}

func TestInvoiceReceiptAndReturnHardDelete(t *testing.T) {
	f := newFixture(t, journals.ReversalModeHardDelete)
	ctx := context.Background()

	inv := integration.Invoice{ID: 11, CompanyID: 1, Number: "INV-11", Date: on, Status: integration.InvoiceDraft, Lines: lines("2", "250")}
	inv, _, err := f.hooks.IssueInvoice(ctx, inv, 1)
	require.NoError(t, err)
	require.True(t, f.balance(t, "1200").Equal(decimal.NewFromInt(500)))
	require.True(t, f.balance(t, "4000").Equal(decimal.NewFromInt(500)))

	// issuing twice is a no-op at the ledger level
	again := inv
	again.Status = integration.InvoiceDraft
	_, dup, err := f.hooks.IssueInvoice(ctx, again, 1)
	require.NoError(t, err)
	require.True(t, f.balance(t, "1200").Equal(decimal.NewFromInt(500)))
	require.Equal(t, integration.SourceID(integration.RefInvoice, 11), dup.ReferenceID)

	ret := integration.SalesReturn{ID: 2, CompanyID: 1, InvoiceID: 11, Number: "SR-2", Date: on, Status: integration.ReturnDraft, Lines: lines("1", "100")}
	ret, _, err = f.hooks.CompleteSalesReturn(ctx, ret, 1)
	require.NoError(t, err)
	require.True(t, f.balance(t, "4100").Equal(decimal.NewFromInt(-100)))
	require.True(t, f.balance(t, "1200").Equal(decimal.NewFromInt(400)))

	rcp := integration.Receipt{ID: 5, CompanyID: 1, InvoiceID: 11, Number: "RCP-5", Date: on,
		Status: integration.ReceiptPending, Method: integration.MethodCash, Amount: decimal.NewFromInt(400)}
	rcp, _, err = f.hooks.ReceiveReceipt(ctx, rcp, 1)
	require.NoError(t, err)
	require.True(t, f.balance(t, "1000").Equal(decimal.NewFromInt(400)))
	require.True(t, f.balance(t, "1200").IsZero())

	before := len(f.store.Entries())
	require.NoError(t, f.hooks.DeleteReceipt(ctx, rcp, 1))
	require.Len(t, f.store.Entries(), before-1)
	require.True(t, f.balance(t, "1000").IsZero())
	require.True(t, f.balance(t, "1200").Equal(decimal.NewFromInt(400)))

	// deleting again finds nothing and leaves state alone
	require.NoError(t, f.hooks.DeleteReceipt(ctx, rcp, 1))

	ret, err = f.hooks.CancelSalesReturn(ctx, ret, 1)
	require.NoError(t, err)
	require.Equal(t, integration.ReturnCancelled, ret.Status)
	require.True(t, f.balance(t, "4100").IsZero())
}

func TestPurchaseReturnAndValidation(t *testing.T) {
	f := newFixture(t, journals.ReversalModeReversingEntry)
	ctx := context.Background()

	bill := integration.Bill{ID: 1, CompanyID: 1, Number: "B-1", Date: on, Status: integration.BillDraft, Inventory: true, Lines: lines("10", "5")}
	_, _, err := f.hooks.ApproveBill(ctx, bill, 1)
	require.NoError(t, err)
	require.True(t, f.balance(t, "1300").Equal(decimal.NewFromInt(50)))

	ret := integration.PurchaseReturn{ID: 4, CompanyID: 1, BillID: 1, Number: "PR-4", Date: on, Status: integration.ReturnDraft,
		Inventory: true, Lines: lines("2", "5")}
	ret, _, err = f.hooks.CompletePurchaseReturn(ctx, ret, 1)
	require.NoError(t, err)
	require.Equal(t, integration.ReturnCompleted, ret.Status)
	require.True(t, f.balance(t, "1300").Equal(decimal.NewFromInt(40)))
	require.True(t, f.balance(t, "2000").Equal(decimal.NewFromInt(40)))

	_, err = f.hooks.CancelPurchaseReturn(ctx, ret, 1)
	require.NoError(t, err)
	require.True(t, f.balance(t, "2000").Equal(decimal.NewFromInt(50)))

	empty := integration.Invoice{ID: 2, CompanyID: 1, Date: on, Status: integration.InvoiceDraft}
	_, _, err = f.hooks.IssueInvoice(ctx, empty, 1)
	require.ErrorIs(t, err, shared.ErrInvalidAmount)

	orphan := integration.Invoice{ID: 3, CompanyID: 2, Date: on, Status: integration.InvoiceDraft, Lines: lines("1", "1")}
	_, _, err = f.hooks.IssueInvoice(ctx, orphan, 1)
	require.ErrorIs(t, err, shared.ErrAccountNotFound)

	voided := integration.Payment{ID: 8, CompanyID: 1, Status: integration.PaymentVoided}
	_, _, err = f.hooks.CompletePayment(ctx, voided, 1)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	pending := integration.Payment{ID: 9, CompanyID: 1, Status: integration.PaymentPending}
	pending, err = f.hooks.VoidPayment(ctx, pending, 1)
	require.NoError(t, err)
	require.Equal(t, integration.PaymentVoided, pending.Status)
}

type overrides map[int64][]mappings.AccountMapping

func (o overrides) ForCompany(_ context.Context, companyID int64) ([]mappings.AccountMapping, error) {
	return o[companyID], nil
}

func TestCompanyOverrideRedirectsPosting(t *testing.T) {
	f := newFixture(t, journals.ReversalModeReversingEntry)
	ctx := context.Background()
	f.hooks.WithOverrides(overrides{
		1: {{CompanyID: 1, Key: "bank", AccountNumber: "1000"}},
	})

	receipt := integration.Receipt{ID: 5, CompanyID: 1, InvoiceID: 1, Date: on, Status: integration.ReceiptPending,
		Method: integration.MethodBank, Amount: decimal.NewFromInt(30)}
	_, _, err := f.hooks.ReceiveReceipt(ctx, receipt, 1)
	require.NoError(t, err)
	require.True(t, f.balance(t, "1000").Equal(decimal.NewFromInt(30)))
	require.True(t, f.balance(t, "1010").IsZero())
}

func TestApproveBillRetryAfterFailedPost(t *testing.T) {
	f := newFixture(t, journals.ReversalModeReversingEntry)
	ctx := context.Background()
	bill := integration.Bill{ID: 8, CompanyID: 1, Number: "BILL-8", Date: on, Status: integration.BillDraft, Lines: lines("2", "25")}

	f.store.FailOn("AdjustBalance", errors.New("transient"))
	_, _, err := f.hooks.ApproveBill(ctx, bill, 9)
	require.Error(t, err)
	f.store.FailOn("AdjustBalance", nil)
	require.Empty(t, f.store.Entries())

	approved, entry, err := f.hooks.ApproveBill(ctx, bill, 9)
	require.NoError(t, err)
	require.Equal(t, integration.BillApproved, approved.Status)
	require.True(t, entry.IsPosted)
	require.True(t, f.balance(t, "5000").Equal(decimal.NewFromInt(50)))
	require.True(t, f.balance(t, "2000").Equal(decimal.NewFromInt(50)))
}

func TestApproveBillPostsLeftoverDraft(t *testing.T) {
	f := newFixture(t, journals.ReversalModeReversingEntry)
	ctx := context.Background()
	amount := decimal.NewFromInt(50)
	draft, err := f.ledger.Create(ctx, journals.CreateEntryInput{
		CompanyID:     1,
		Date:          on,
		Type:          journals.EntryTypeBill,
		ReferenceType: integration.RefBill,
		ReferenceID:   integration.SourceID(integration.RefBill, 8),
		CreatedBy:     9,
		Lines: []journals.LineInput{
			{AccountID: f.numbers["5000"], Type: shared.Debit, Amount: amount},
			{AccountID: f.numbers["2000"], Type: shared.Credit, Amount: amount},
		},
	})
	require.NoError(t, err)
	require.False(t, draft.IsPosted)

	bill := integration.Bill{ID: 8, CompanyID: 1, Number: "BILL-8", Date: on, Status: integration.BillDraft, Lines: lines("2", "25")}
	_, entry, err := f.hooks.ApproveBill(ctx, bill, 9)
	require.NoError(t, err)
	require.Equal(t, draft.ID, entry.ID)
	require.True(t, entry.IsPosted)
	require.Len(t, f.store.Entries(), 1)
	require.True(t, f.balance(t, "5000").Equal(amount))
	require.True(t, f.balance(t, "2000").Equal(amount))
}
