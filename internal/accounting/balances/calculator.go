package balances

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Recorder counts balance drift found by verification.
type Recorder interface {
	RecordBalanceDrift(repaired bool)
}

// Calculator derives balances from posted lines.
type Calculator struct {
	repo         Repository
	logger       *slog.Logger
	metrics      Recorder
	repairOnRead bool
}

// NewCalculator constructs a Calculator.
func NewCalculator(repo Repository, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{repo: repo, logger: logger}
}

// WithRepairOnRead makes Balance write recomputed values back when they drift.
func (c *Calculator) WithRepairOnRead(enabled bool) *Calculator {
	c.repairOnRead = enabled
	return c
}

// WithRecorder registers a metrics sink.
func (c *Calculator) WithRecorder(metrics Recorder) *Calculator {
	c.metrics = metrics
	return c
}

// ComputeBalance recomputes an account balance from scratch:
// opening balance plus the signed effect of every posted line.
func (c *Calculator) ComputeBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	acct, err := c.repo.Account(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return c.compute(ctx, acct)
}

func (c *Calculator) compute(ctx context.Context, acct accounts.Account) (decimal.Decimal, error) {
	sums, err := c.repo.AccountSums(ctx, acct.ID, shared.DateRange{})
	if err != nil {
		return decimal.Zero, err
	}
	return acct.OpeningBalance.Add(sums.Effect(acct.Type)), nil
}

// Verify compares the cached balance with the recomputed one and optionally
// repairs it. A repair that loses a race with a concurrent post is skipped.
func (c *Calculator) Verify(ctx context.Context, accountID int64, repair bool) (Check, error) {
	acct, err := c.repo.Account(ctx, accountID)
	if err != nil {
		return Check{}, err
	}
	computed, err := c.compute(ctx, acct)
	if err != nil {
		return Check{}, err
	}
	check := Check{
		AccountID: acct.ID,
		CompanyID: acct.CompanyID,
		Number:    acct.Number,
		Cached:    acct.CurrentBalance,
		Computed:  computed,
	}
	return c.settle(ctx, check, repair)
}

func (c *Calculator) settle(ctx context.Context, check Check, repair bool) (Check, error) {
	if check.InSync() {
		return check, nil
	}
	if repair {
		ok, err := c.repo.RepairBalance(ctx, check.AccountID, check.Cached, check.Computed)
		if err != nil {
			return check, err
		}
		check.Repaired = ok
	}
	if c.metrics != nil {
		c.metrics.RecordBalanceDrift(check.Repaired)
	}
	c.logger.Warn("account balance drift",
		slog.Int64("account_id", check.AccountID),
		slog.String("number", check.Number),
		slog.String("cached", check.Cached.String()),
		slog.String("computed", check.Computed.String()),
		slog.Bool("repaired", check.Repaired))
	return check, nil
}

// Balance returns the recomputed balance of an account, repairing the cached
// value on the way when repair-on-read is enabled.
func (c *Calculator) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	check, err := c.Verify(ctx, accountID, c.repairOnRead)
	if err != nil {
		return decimal.Zero, err
	}
	return check.Computed, nil
}

// ReconcileCompany verifies every account of a company in one pass.
func (c *Calculator) ReconcileCompany(ctx context.Context, companyID int64, repair bool) (ReconcileReport, error) {
	list, err := c.repo.CompanyAccounts(ctx, companyID)
	if err != nil {
		return ReconcileReport{}, err
	}
	sums, err := c.repo.CompanySums(ctx, companyID, shared.DateRange{})
	if err != nil {
		return ReconcileReport{}, err
	}
	report := ReconcileReport{CompanyID: companyID}
	for _, acct := range list {
		check, err := c.settle(ctx, Check{
			AccountID: acct.ID,
			CompanyID: acct.CompanyID,
			Number:    acct.Number,
			Cached:    acct.CurrentBalance,
			Computed:  acct.OpeningBalance.Add(sums[acct.ID].Effect(acct.Type)),
		}, repair)
		if err != nil {
			return report, err
		}
		report.Checked++
		if !check.InSync() {
			report.Drifts = append(report.Drifts, check)
			if check.Repaired {
				report.Repaired++
			}
		}
	}
	return report, nil
}

// AccountLedger lists the posted lines of an account inside r with a running
// balance. The opening balance is the account opening plus every posted line
// dated strictly before r.From.
func (c *Calculator) AccountLedger(ctx context.Context, accountID int64, r shared.DateRange) (Ledger, error) {
	if err := r.Validate(); err != nil {
		return Ledger{}, err
	}
	acct, err := c.repo.Account(ctx, accountID)
	if err != nil {
		return Ledger{}, err
	}
	opening := acct.OpeningBalance
	if !r.From.IsZero() {
		before, err := c.repo.AccountSums(ctx, acct.ID, shared.DateRange{To: shared.DateOnly(r.From).AddDate(0, 0, -1)})
		if err != nil {
			return Ledger{}, err
		}
		opening = opening.Add(before.Effect(acct.Type))
	}
	lines, err := c.repo.AccountLines(ctx, acct.ID, r)
	if err != nil {
		return Ledger{}, err
	}
	return BuildLedger(acct, r, opening, lines), nil
}

// BuildLedger folds lines, already in ledger order, into running balances.
func BuildLedger(acct accounts.Account, r shared.DateRange, opening decimal.Decimal, lines []LedgerLine) Ledger {
	ledger := Ledger{
		Account:     acct,
		Range:       r,
		Opening:     opening,
		Rows:        make([]LedgerRow, 0, len(lines)),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	running := opening
	for _, line := range lines {
		effect := shared.SignedEffect(acct.Type, line.Type, line.Amount)
		running = running.Add(effect)
		ledger.TotalDebit = ledger.TotalDebit.Add(line.Debit())
		ledger.TotalCredit = ledger.TotalCredit.Add(line.Credit())
		ledger.Rows = append(ledger.Rows, LedgerRow{LedgerLine: line, Effect: effect, Balance: running})
	}
	ledger.Closing = running
	return ledger
}
