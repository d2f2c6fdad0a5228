package integrationhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type server struct {
	http.Handler
	store   *ledgertest.Store
	numbers map[string]int64
}

func newServer(t *testing.T, overrides MappingStore) *server {
	t.Helper()
	srv := &server{store: ledgertest.New(), numbers: map[string]int64{}}
	chart := []accounts.Account{
		{Number: "1010", Name: "Cash", Type: shared.AccountTypeAsset},
		{Number: "1020", Name: "Bank", Type: shared.AccountTypeAsset},
		{Number: "1200", Name: "Accounts Receivable", Type: shared.AccountTypeAsset},
		{Number: "1300", Name: "Inventory", Type: shared.AccountTypeAsset},
		{Number: "2010", Name: "Accounts Payable", Type: shared.AccountTypeLiability},
		{Number: "4010", Name: "Sales", Type: shared.AccountTypeRevenue},
		{Number: "4100", Name: "Sales Returns", Type: shared.AccountTypeRevenue},
		{Number: "5100", Name: "Office Supplies", Type: shared.AccountTypeExpense},
	}
	for _, a := range chart {
		a.CompanyID = 1
		a.IsActive = true
		srv.numbers[a.Number] = srv.store.SeedAccount(a).ID
	}
	ledger := journals.NewService(srv.store.Journals(), nil, nil)
	mapping := integration.AccountMap{
		Cash: "1010", Bank: "1020", Receivable: "1200", Inventory: "1300",
		Payable: "2010", Revenue: "4010", SalesReturns: "4100", Expense: "5100",
	}
	hooks := integration.NewHooks(ledger, accounts.NewRegistry(srv.store.Accounts(), nil), mapping, nil)
	r := chi.NewRouter()
	if overrides != nil {
		hooks.WithOverrides(overrides)
		r.Route("/mappings", NewMappingHandler(nil, overrides, mapping).MountRoutes)
	}
	r.Route("/documents", NewHandler(nil, hooks).MountRoutes)
	srv.Handler = r
	return srv
}

func send(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpx.ActorHeader, "12")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestApproveBillPostsEntry(t *testing.T) {
	h := newServer(t, nil)
	store := h.store

	rec := send(t, h, "/documents/bills/approve", `{"id":7,"company_id":1,"number":"BILL-7","date":"2025-03-01","status":"DRAFT",
		"lines":[{"description":"paper","qty":"4","unit_cost":"12.5"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Document integration.Bill   `json:"document"`
			Entry    journals.EntryView `json:"entry"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, integration.BillApproved, body.Data.Document.Status)
	require.Len(t, store.Entries(), 1)
	require.True(t, store.Entries()[0].IsPosted)

	// the document system retries with a stale status
	rec = send(t, h, "/documents/bills/approve", `{"id":7,"company_id":1,"date":"2025-03-01","status":"APPROVED","lines":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = send(t, h, "/documents/bills/cancel", `{"id":7,"company_id":1,"date":"2025-03-01","status":"APPROVED"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotContains(t, rec.Body.String(), `"entry"`)
}

func TestDocumentEventValidation(t *testing.T) {
	h := newServer(t, nil)

	cases := map[string]struct {
		path string
		body string
		code int
	}{
		"unknown document": {"/documents/orders/approve", `{}`, http.StatusNotFound},
		"unknown action":   {"/documents/bills/pay", `{}`, http.StatusNotFound},
		"missing date":     {"/documents/invoices/issue", `{"id":1,"company_id":1,"status":"DRAFT"}`, http.StatusBadRequest},
		"bad method":       {"/documents/payments/complete", `{"id":1,"company_id":1,"date":"2025-03-01","status":"PENDING","method":"CHEQUE"}`, http.StatusBadRequest},
		"unknown field":    {"/documents/receipts/receive", `{"id":1,"company_id":1,"date":"2025-03-01","status":"PENDING","memo":"x"}`, http.StatusBadRequest},
		"unmapped company": {"/documents/invoices/issue", `{"id":1,"company_id":9,"date":"2025-03-01","status":"DRAFT","lines":[{"qty":"1","unit_cost":"1"}]}`, http.StatusNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := send(t, h, tc.path, tc.body)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPaymentDeleteRoutesToReversal(t *testing.T) {
	h := newServer(t, nil)
	store := h.store

	rec := send(t, h, "/documents/payments/complete", `{"id":3,"company_id":1,"parent_id":7,"date":"2025-03-05","status":"PENDING","method":"BANK","amount":"40"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = send(t, h, "/documents/payments/delete", `{"id":3,"company_id":1,"parent_id":7,"date":"2025-03-05","status":"COMPLETED","method":"BANK","amount":"40"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	entries := store.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, journals.EntryTypeReversal, entries[1].Type)
}

type memoryMappings struct {
	rows map[int64]map[string]mappings.AccountMapping
}

func (m *memoryMappings) ForCompany(_ context.Context, companyID int64) ([]mappings.AccountMapping, error) {
	out := make([]mappings.AccountMapping, 0, len(m.rows[companyID]))
	for _, row := range m.rows[companyID] {
		out = append(out, row)
	}
	return out, nil
}

func (m *memoryMappings) Upsert(_ context.Context, row mappings.AccountMapping) (mappings.AccountMapping, error) {
	if m.rows[row.CompanyID] == nil {
		m.rows[row.CompanyID] = map[string]mappings.AccountMapping{}
	}
	row.Key = strings.ToUpper(row.Key)
	row.UpdatedAt = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	m.rows[row.CompanyID][row.Key] = row
	return row, nil
}

func (m *memoryMappings) Delete(_ context.Context, companyID int64, key string) error {
	key = strings.ToUpper(key)
	if _, ok := m.rows[companyID][key]; !ok {
		return shared.ErrMappingNotFound
	}
	delete(m.rows[companyID], key)
	return nil
}

func TestMappingOverridesRedirectDocumentPostings(t *testing.T) {
	store := &memoryMappings{rows: map[int64]map[string]mappings.AccountMapping{}}
	h := newServer(t, store)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPut, "/mappings/tax", `{"company_id":1,"account_number":"2100"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPut, "/mappings/expense", `{"company_id":1,"account_number":"1300"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(http.MethodGet, "/mappings?company_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Data []struct {
			Key           string `json:"key"`
			AccountNumber string `json:"account_number"`
			Override      bool   `json:"override"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data, len(integration.Roles))
	for _, m := range listed.Data {
		if m.Key == "EXPENSE" {
			require.True(t, m.Override)
			require.Equal(t, "1300", m.AccountNumber)
		} else {
			require.False(t, m.Override, m.Key)
		}
	}

	rec = send(t, h, "/documents/bills/approve", `{"id":1,"company_id":1,"date":"2025-03-01","status":"DRAFT",
		"lines":[{"qty":"1","unit_cost":"10"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entry := h.store.Entries()[0]
	require.Equal(t, h.numbers["1300"], entry.Lines[0].AccountID)

	rec = do(http.MethodDelete, "/mappings/expense?company_id=1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(http.MethodDelete, "/mappings/expense?company_id=1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(http.MethodGet, "/mappings", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
