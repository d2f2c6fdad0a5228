package reports_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func reportsRouter(t *testing.T) (http.Handler, *book) {
	t.Helper()
	b := newBook(t,
		acct("1000", "Cash", shared.AccountTypeAsset),
		acct("1200", "Accounts Receivable", shared.AccountTypeAsset),
		acct("4000", "Sales", shared.AccountTypeRevenue),
		acct("5000", "Rent", shared.AccountTypeExpense),
	)
	b.post(t, date(1, 10), "Cash", "Sales", "500", "inv-1")
	b.post(t, date(1, 12), "Accounts Receivable", "Sales", "200", "inv-2")
	b.post(t, date(1, 20), "Rent", "Cash", "120", "bill-1")

	r := chi.NewRouter()
	r.Route("/reports", reports.NewHandler(nil, reports.NewService(b.store.Balances(), nil, nil, nil)).MountRoutes)
	return r, b
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func envelope[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	return body.Data
}

func TestReportEndpointsServeEnvelopes(t *testing.T) {
	h, b := reportsRouter(t)

	tb := envelope[reports.TrialBalance](t, get(h, "/reports/trial-balance?company_id=1&as_of=2025-01-31"))
	require.True(t, tb.Balanced)
	require.True(t, tb.TotalDebit.Equal(dec("700")), tb.TotalDebit.String())

	early := envelope[reports.TrialBalance](t, get(h, "/reports/trial-balance?company_id=1&as_of=2025-01-11"))
	require.True(t, early.TotalDebit.Equal(dec("500")))

	pl := envelope[struct {
		NetProfit decimal.Decimal `json:"net_profit"`
	}](t, get(h, "/reports/profit-loss?company_id=1&from=2025-01-01&to=2025-01-31"))
	require.True(t, pl.NetProfit.Equal(dec("580")), pl.NetProfit.String())

	aging := envelope[reports.Aging](t, get(h, "/reports/aging/ar?company_id=1&as_of=2025-02-15"))
	require.Len(t, aging.Documents, 1)
	require.True(t, aging.Total.Equal(dec("200")))

	balance := envelope[struct {
		AccountID int64           `json:"account_id"`
		Balance   decimal.Decimal `json:"balance"`
	}](t, get(h, fmt.Sprintf("/reports/accounts/%d/balance", b.ids["Cash"])))
	require.Equal(t, b.ids["Cash"], balance.AccountID)
	require.True(t, balance.Balance.Equal(dec("380")))

	rec := get(h, fmt.Sprintf("/reports/accounts/%d/ledger?from=2025-01-15&to=2025-01-31", b.ids["Cash"]))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestReportEndpointErrors(t *testing.T) {
	h, _ := reportsRouter(t)

	cases := map[string]struct {
		path string
		code int
	}{
		"missing company":  {"/reports/trial-balance?as_of=2025-01-31", http.StatusBadRequest},
		"bad company":      {"/reports/balance-sheet?company_id=x", http.StatusBadRequest},
		"bad date":         {"/reports/trial-balance?company_id=1&as_of=31-01-2025", http.StatusBadRequest},
		"inverted range":   {"/reports/profit-loss?company_id=1&from=2025-02-01&to=2025-01-01", http.StatusBadRequest},
		"inverted books":   {"/reports/day-book?company_id=1&from=2025-02-01&to=2025-01-01", http.StatusBadRequest},
		"unknown aging":    {"/reports/aging/xx?company_id=1", http.StatusBadRequest},
		"bad account id":   {"/reports/accounts/abc/balance", http.StatusBadRequest},
		"missing account":  {"/reports/accounts/999/ledger", http.StatusNotFound},
		"missing balance":  {"/reports/accounts/999/balance", http.StatusNotFound},
		"cash flow ranges": {"/reports/cash-flow?company_id=1&from=2025-03-01&to=2025-01-01", http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := get(h, tc.path)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}
