package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type staticCompanies []int64

func (s staticCompanies) CompanyIDs(context.Context) ([]int64, error) { return s, nil }

func seed(store *ledgertest.Store, companyID int64, number string) accounts.Account {
	return store.SeedAccount(accounts.Account{
		CompanyID: companyID, Number: number, Name: "Cash " + number, Type: shared.AccountTypeAsset,
		OpeningBalance: decimal.NewFromInt(100), IsActive: true,
	})
}

func TestLedgerIntegrityRepairsDrift(t *testing.T) {
	store := ledgertest.New()
	a := seed(store, 1, "1000")
	seed(store, 1, "1001")
	seed(store, 2, "1000")
	store.SetCurrentBalance(a.ID, decimal.NewFromInt(90))

	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	job := jobs.NewLedgerIntegrityJob(balances.NewCalculator(store.Balances(), nil), staticCompanies{1, 2}, nil, metrics)

	result, err := job.Run(context.Background(), jobs.LedgerIntegrityPayload{})
	require.NoError(t, err)
	require.Equal(t, jobs.IntegrityResult{Companies: 2, Checked: 3, Drifted: 1, Repaired: 0}, result)
	fixed, _ := store.Account(a.ID)
	require.True(t, fixed.CurrentBalance.Equal(decimal.NewFromInt(90)))

	task, err := jobs.NewLedgerIntegrityTask(jobs.LedgerIntegrityPayload{CompanyIDs: []int64{1}, Repair: true})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	fixed, _ = store.Account(a.ID)
	require.True(t, fixed.CurrentBalance.Equal(decimal.NewFromInt(100)))

	out, err := testutil.GatherAndCount(registry, "odyssey_ledger_integrity_drifts_total", "odyssey_jobs_total")
	require.NoError(t, err)
	require.Equal(t, 3, out)

	result, err = job.Run(context.Background(), jobs.LedgerIntegrityPayload{CompanyIDs: []int64{1}})
	require.NoError(t, err)
	require.Zero(t, result.Drifted)
}

func TestLedgerIntegrityBadPayload(t *testing.T) {
	job := jobs.NewLedgerIntegrityJob(balances.NewCalculator(ledgertest.New().Balances(), nil), nil, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskLedgerIntegrity, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	_, err = job.Run(context.Background(), jobs.LedgerIntegrityPayload{})
	require.Error(t, err)
}

type stubEnqueuer struct {
	got jobs.LedgerIntegrityPayload
	err error
}

func (s *stubEnqueuer) EnqueueLedgerIntegrity(ctx context.Context, payload jobs.LedgerIntegrityPayload) (*asynq.TaskInfo, error) {
	s.got = payload
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "t-1", Queue: jobs.QueueDefault}, nil
}

func TestTriggerIntegrityEndpoint(t *testing.T) {
	enq := &stubEnqueuer{}
	r := chi.NewRouter()
	r.Route("/jobs", jobs.NewHandler(nil, enq, nil).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/ledger-integrity", strings.NewReader(`{"company_ids":[4],"repair":true}`)))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, []int64{4}, enq.got.CompanyIDs)
	require.True(t, enq.got.Repair)
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "t-1", body.Data["task_id"])

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/ledger-integrity", strings.NewReader(`{"unknown":1}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	enq.err = errors.New("redis down")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/ledger-integrity", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"queue":"default"`)
}

type prunerSpy struct {
	retention time.Duration
	err       error
}

func (p *prunerSpy) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	p.retention = olderThan
	return 3, p.err
}

func TestIdempotencyCleanup(t *testing.T) {
	registry := prometheus.NewRegistry()
	spy := &prunerSpy{}
	job := jobs.NewIdempotencyCleanupJob(spy, nil, jobmetrics.NewMetrics(registry))

	task, err := jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{Retention: 72 * time.Hour})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 72*time.Hour, spy.retention)
	pruned, err := testutil.GatherAndCount(registry, "odyssey_idempotency_keys_pruned_total", "odyssey_job_last_success_timestamp_seconds")
	require.NoError(t, err)
	require.Equal(t, 2, pruned)

	spy.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), task))

	bad := asynq.NewTask(jobs.TaskIdempotencyCleanup, []byte(`{"retention":0}`))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

type fakeInspector struct {
	entries []*asynq.SchedulerEntry
	err     error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.QueueInfo{Queue: queue, Size: 4, Pending: 1, Scheduled: 2, Retry: 1}, nil
}

func (f fakeInspector) SchedulerEntries() ([]*asynq.SchedulerEntry, error) {
	return f.entries, f.err
}

func TestQueueHealthAndSchedule(t *testing.T) {
	next := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	insp := fakeInspector{entries: []*asynq.SchedulerEntry{
		{ID: "e-1", Spec: "@daily", Task: asynq.NewTask(jobs.TaskLedgerIntegrity, nil), Next: next},
	}}
	r := chi.NewRouter()
	r.Route("/jobs", jobs.NewHandler(insp, nil, nil).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"scheduled":2`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/schedule", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data []struct {
			Task string    `json:"task"`
			Next time.Time `json:"next"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, jobs.TaskLedgerIntegrity, body.Data[0].Task)
	require.True(t, next.Equal(body.Data[0].Next))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/ledger-integrity", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	down := chi.NewRouter()
	down.Route("/jobs", jobs.NewHandler(fakeInspector{err: errors.New("redis down")}, nil, nil).MountRoutes)
	rr = httptest.NewRecorder()
	down.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
