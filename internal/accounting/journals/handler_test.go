package journals_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type memoryKeys struct {
	mu   sync.Mutex
	keys map[string]int64
}

func (m *memoryKeys) Claim(_ context.Context, scope, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[scope+"/"+key]
	if ok {
		return id, shared.ErrIdempotencyConflict
	}
	m.keys[scope+"/"+key] = 0
	return 0, nil
}

func (m *memoryKeys) Complete(_ context.Context, scope, key string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[scope+"/"+key] = id
	return nil
}

func (m *memoryKeys) Release(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, scope+"/"+key)
	return nil
}

func newRouter(f *fixture, keys journals.Idempotency) http.Handler {
	r := chi.NewRouter()
	h := journals.NewHandler(nil, f.service)
	if keys != nil {
		h.WithIdempotency(keys)
	}
	r.Route("/journals", h.MountRoutes)
	return r
}

func createBody(f *fixture, amount string) string {
	return fmt.Sprintf(`{"company_id":1,"date":"2025-03-10","post":true,"lines":[
		{"account_id":%d,"transaction_type":"DEBIT","amount":"%s"},
		{"account_id":%d,"transaction_type":"CREDIT","amount":"%s"}]}`, f.cash.ID, amount, f.sales.ID, amount)
}

func postJournal(h http.Handler, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/journals", strings.NewReader(body))
	req.Header.Set(httpx.ActorHeader, "7")
	if key != "" {
		req.Header.Set(journals.IdempotencyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateWithIdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	h := newRouter(f, &memoryKeys{keys: map[string]int64{}})

	first := postJournal(h, createBody(f, "50"), "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	again := postJournal(h, createBody(f, "50"), "k-1")
	require.Equal(t, http.StatusOK, again.Code, again.Body.String())
	require.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))

	var a, b struct {
		Data journals.EntryView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(again.Body.Bytes(), &b))
	require.Equal(t, a.Data.ID, b.Data.ID)
	require.Len(t, f.store.Entries(), 1)
	require.True(t, f.balance(t, f.cash.ID).Equal(decimal.NewFromInt(50)))
}

func TestCreateReleasesKeyOnFailure(t *testing.T) {
	f := newFixture(t)
	keys := &memoryKeys{keys: map[string]int64{}}
	h := newRouter(f, keys)

	body := fmt.Sprintf(`{"company_id":1,"date":"2025-03-10","lines":[
		{"account_id":%d,"transaction_type":"DEBIT","amount":"10"},
		{"account_id":%d,"transaction_type":"CREDIT","amount":"9"}]}`, f.cash.ID, f.sales.ID)
	rec := postJournal(h, body, "k-2")
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	require.Empty(t, keys.keys)

	rec = postJournal(h, createBody(f, "10"), "k-2")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateInFlightKeyConflicts(t *testing.T) {
	f := newFixture(t)
	keys := &memoryKeys{keys: map[string]int64{"journals.create/k-3": 0}}
	h := newRouter(f, keys)

	rec := postJournal(h, createBody(f, "10"), "k-3")
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	require.Empty(t, f.store.Entries())
}

func TestCreateWithoutKeyAlwaysCreates(t *testing.T) {
	f := newFixture(t)
	h := newRouter(f, nil)

	for i := 0; i < 2; i++ {
		rec := postJournal(h, createBody(f, "5"), "k-ignored")
		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}
	require.Len(t, f.store.Entries(), 2)
}
