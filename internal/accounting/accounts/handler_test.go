package accounts_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func newAccountsRouter(t *testing.T) (http.Handler, *accounts.Registry) {
	t.Helper()
	reg, _ := newRegistry()
	r := chi.NewRouter()
	r.Route("/accounts", accounts.NewHandler(nil, reg).MountRoutes)
	return r, reg
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	require.True(t, body.Success)
	return body.Data
}

func TestAccountHandlerLifecycle(t *testing.T) {
	h, _ := newAccountsRouter(t)

	rec := call(h, http.MethodPost, "/accounts", `{"company_id":1,"name":"Current Assets","type":"ASSET"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	parent := decodeData[accounts.AccountView](t, rec)
	require.Equal(t, "1000", parent.Number)
	require.True(t, parent.IsActive)

	rec = call(h, http.MethodPost, "/accounts", fmt.Sprintf(`{"company_id":1,"name":"Cash","type":"ASSET","parent_id":%d}`, parent.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	child := decodeData[accounts.AccountView](t, rec)
	require.Equal(t, "1001", child.Number)

	rec = call(h, http.MethodGet, "/accounts/tree?company_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decodeData[[]accounts.NodeView](t, rec)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	require.Equal(t, child.ID, tree[0].Children[0].ID)

	rec = call(h, http.MethodPatch, fmt.Sprintf("/accounts/%d", child.ID), `{"name":"Petty Cash"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "Petty Cash", decodeData[accounts.AccountView](t, rec).Name)

	rec = call(h, http.MethodGet, "/accounts?company_id=1&q=petty", "")
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeData[[]accounts.AccountView](t, rec)
	require.Len(t, listed, 1)
	require.Equal(t, child.ID, listed[0].ID)

	rec = call(h, http.MethodDelete, fmt.Sprintf("/accounts/%d", parent.ID), "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = call(h, http.MethodDelete, fmt.Sprintf("/accounts/%d", child.ID), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = call(h, http.MethodGet, fmt.Sprintf("/accounts/%d", child.ID), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountHandlerErrors(t *testing.T) {
	h, reg := newAccountsRouter(t)
	_, err := reg.Create(t.Context(), accounts.CreateAccountInput{CompanyID: 1, Number: "4000", Name: "Sales", Type: shared.AccountTypeRevenue})
	require.NoError(t, err)

	cases := map[string]struct {
		method string
		path   string
		body   string
		code   int
	}{
		"duplicate number": {http.MethodPost, "/accounts", `{"company_id":1,"number":"4000","name":"Other","type":"REVENUE"}`, http.StatusConflict},
		"unknown type":     {http.MethodPost, "/accounts", `{"company_id":1,"name":"X","type":"STOCK"}`, http.StatusBadRequest},
		"missing name":     {http.MethodPost, "/accounts", `{"company_id":1,"type":"ASSET"}`, http.StatusBadRequest},
		"number too short": {http.MethodPost, "/accounts", `{"company_id":1,"number":"12","name":"X","type":"ASSET"}`, http.StatusBadRequest},
		"malformed body":   {http.MethodPost, "/accounts", `{"company_id":`, http.StatusBadRequest},
		"bad active flag":  {http.MethodGet, "/accounts?company_id=1&active=maybe", "", http.StatusBadRequest},
		"bad type filter":  {http.MethodGet, "/accounts?company_id=1&type=STOCK", "", http.StatusBadRequest},
		"bad company":      {http.MethodGet, "/accounts?company_id=one", "", http.StatusBadRequest},
		"bad id":           {http.MethodGet, "/accounts/abc", "", http.StatusBadRequest},
		"missing account":  {http.MethodGet, "/accounts/999", "", http.StatusNotFound},
		"patch missing":    {http.MethodPatch, "/accounts/999", `{"name":"X"}`, http.StatusNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := call(h, tc.method, tc.path, tc.body)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
			if rec.Code >= http.StatusBadRequest {
				require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			}
		})
	}
}
