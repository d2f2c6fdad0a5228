package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// Reconciler verifies the cached balances of a company.
type Reconciler interface {
	ReconcileCompany(ctx context.Context, companyID int64, repair bool) (balances.ReconcileReport, error)
}

// CompanyLister enumerates companies that own a chart of accounts.
type CompanyLister interface {
	CompanyIDs(ctx context.Context) ([]int64, error)
}

// PoolCompanies lists companies straight from the accounts table.
type PoolCompanies struct {
	Pool *pgxpool.Pool
}

// CompanyIDs returns the distinct company ids in ascending order.
func (p PoolCompanies) CompanyIDs(ctx context.Context) ([]int64, error) {
	if p.Pool == nil {
		return nil, errors.New("ledger integrity: pool not configured")
	}
	rows, err := p.Pool.Query(ctx, `SELECT DISTINCT company_id FROM accounts ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// IntegrityResult summarises one run.
type IntegrityResult struct {
	Companies int
	Checked   int
	Drifted   int
	Repaired  int
}

// LedgerIntegrityJob reconciles cached balances company by company.
type LedgerIntegrityJob struct {
	Reconciler Reconciler
	Companies  CompanyLister
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the integrity handler.
func NewLedgerIntegrityJob(reconciler Reconciler, companies CompanyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Reconciler: reconciler, Companies: companies, Logger: logger, Metrics: metrics}
}

// Handle decodes the payload and runs the check.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reconciler == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run verifies every requested company. A failing company does not stop the
// others; the joined error is returned at the end.
func (j *LedgerIntegrityJob) Run(ctx context.Context, payload LedgerIntegrityPayload) (IntegrityResult, error) {
	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	start := time.Now()
	logger := j.logger().With(slog.Bool("repair", payload.Repair))

	companies := payload.CompanyIDs
	if len(companies) == 0 {
		if j.Companies == nil {
			return IntegrityResult{}, tracker.End(errors.New("ledger integrity: no companies to check"))
		}
		var err error
		if companies, err = j.Companies.CompanyIDs(ctx); err != nil {
			return IntegrityResult{}, tracker.End(err)
		}
	}

	var result IntegrityResult
	var errs []error
	for _, companyID := range companies {
		report, err := j.Reconciler.ReconcileCompany(ctx, companyID, payload.Repair)
		if err != nil {
			logger.Error("ledger integrity failed", slog.Int64("company_id", companyID), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		result.Companies++
		result.Checked += report.Checked
		result.Drifted += len(report.Drifts)
		result.Repaired += report.Repaired
		j.Metrics.AddDrifts(companyID, len(report.Drifts), report.Repaired)
		if len(report.Drifts) > 0 {
			logger.Warn("ledger drift detected",
				slog.Int64("company_id", companyID),
				slog.Int("drifted", len(report.Drifts)),
				slog.Int("repaired", report.Repaired))
		}
	}
	logger.Info("ledger integrity completed",
		slog.Int("companies", result.Companies),
		slog.Int("checked", result.Checked),
		slog.Int("drifted", result.Drifted),
		slog.Duration("duration", time.Since(start)))
	return result, tracker.End(errors.Join(errs...))
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
