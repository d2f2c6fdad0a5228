package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Service composes read models over posted journal lines. It never writes to
// the ledger; repair-on-read is delegated to the balance calculator.
type Service struct {
	repo   balances.Repository
	calc   *balances.Calculator
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the read repository with an optional cache.
func NewService(repo balances.Repository, calc *balances.Calculator, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if calc == nil {
		calc = balances.NewCalculator(repo, logger)
	}
	return &Service{repo: repo, calc: calc, cache: cache, logger: logger, now: time.Now}
}

// WithNow overrides the clock used when as-of dates are omitted.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Bump invalidates cached reports of a company.
func (s *Service) Bump(ctx context.Context, companyID int64) error {
	return s.cache.Bump(ctx, companyID)
}

type snapshot struct {
	chart    []accounts.Account
	balances []AccountBalance
	lines    []balances.LedgerLine
}

func (s *Service) snapshot(ctx context.Context, companyID int64, r shared.DateRange, withLines bool) (snapshot, error) {
	var (
		snap   snapshot
		before map[int64]balances.Sums
		during map[int64]balances.Sums
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		chart, err := s.repo.CompanyAccounts(gctx, companyID)
		snap.chart = chart
		return err
	})
	if !r.From.IsZero() {
		g.Go(func() error {
			sums, err := s.repo.CompanySums(gctx, companyID, shared.DateRange{To: shared.DateOnly(r.From).AddDate(0, 0, -1)})
			before = sums
			return err
		})
	}
	g.Go(func() error {
		sums, err := s.repo.CompanySums(gctx, companyID, r)
		during = sums
		return err
	})
	if withLines {
		g.Go(func() error {
			lines, err := s.repo.CompanyLines(gctx, companyID, r)
			snap.lines = lines
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	snap.balances = CollectBalances(snap.chart, before, during)
	return snap, nil
}

func (s *Service) asOf(t time.Time) time.Time {
	if t.IsZero() {
		return shared.DateOnly(s.now())
	}
	return shared.DateOnly(t)
}

func checkRange(companyID int64, r shared.DateRange) error {
	if companyID == 0 {
		return shared.ErrCompanyRequired
	}
	return r.Validate()
}

// buildTimeout caps a shared report build once no caller controls its lifetime.
const buildTimeout = 30 * time.Second

// cached runs build once per key across concurrent callers and stores the
// result in the report cache. The shared build is detached from the caller that
// started it; each caller's ctx only bounds its own wait.
func cached[T any](ctx context.Context, s *Service, companyID int64, parts []string, build func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := s.cache.BuildKey(ctx, companyID, parts...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.Any("error", err))
		return build(ctx)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
		defer cancel()
		if s.cache == nil {
			return build(ctx)
		}
		var out T
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			return build(ctx)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func day(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}

// TrialBalance nets posted lines per account up to asOf.
func (s *Service) TrialBalance(ctx context.Context, companyID int64, asOf time.Time) (TrialBalance, error) {
	asOf = s.asOf(asOf)
	if err := checkRange(companyID, shared.DateRange{}); err != nil {
		return TrialBalance{}, err
	}
	return cached(ctx, s, companyID, []string{"tb", day(asOf)}, func(ctx context.Context) (TrialBalance, error) {
		snap, err := s.snapshot(ctx, companyID, shared.DateRange{To: asOf}, false)
		if err != nil {
			return TrialBalance{}, err
		}
		return BuildTrialBalance(asOf, snap.balances), nil
	})
}

// BalanceSheet reports closing balances as of asOf with retained earnings.
func (s *Service) BalanceSheet(ctx context.Context, companyID int64, asOf time.Time) (BalanceSheet, error) {
	asOf = s.asOf(asOf)
	if err := checkRange(companyID, shared.DateRange{}); err != nil {
		return BalanceSheet{}, err
	}
	return cached(ctx, s, companyID, []string{"bs", day(asOf)}, func(ctx context.Context) (BalanceSheet, error) {
		snap, err := s.snapshot(ctx, companyID, shared.DateRange{To: asOf}, false)
		if err != nil {
			return BalanceSheet{}, err
		}
		bs := BuildBalanceSheet(asOf, snap.balances)
		if !bs.Balanced {
			s.logger.Warn("balance sheet out of balance",
				slog.Int64("company_id", companyID),
				slog.String("difference", bs.Difference.String()))
		}
		return bs, nil
	})
}

// ProfitAndLoss reports revenue and expense movements inside r.
func (s *Service) ProfitAndLoss(ctx context.Context, companyID int64, r shared.DateRange) (ProfitAndLoss, error) {
	if err := checkRange(companyID, r); err != nil {
		return ProfitAndLoss{}, err
	}
	return cached(ctx, s, companyID, []string{"pl", day(r.From), day(r.To)}, func(ctx context.Context) (ProfitAndLoss, error) {
		snap, err := s.snapshot(ctx, companyID, r, false)
		if err != nil {
			return ProfitAndLoss{}, err
		}
		return BuildProfitAndLoss(periodOf(r), snap.balances), nil
	})
}

// CashFlow reports movements of cash and bank accounts inside r.
func (s *Service) CashFlow(ctx context.Context, companyID int64, r shared.DateRange) (CashFlow, error) {
	if err := checkRange(companyID, r); err != nil {
		return CashFlow{}, err
	}
	return cached(ctx, s, companyID, []string{"cf", day(r.From), day(r.To)}, func(ctx context.Context) (CashFlow, error) {
		snap, err := s.snapshot(ctx, companyID, r, true)
		if err != nil {
			return CashFlow{}, err
		}
		return BuildCashFlow(periodOf(r), snap.balances, snap.lines), nil
	})
}

// DayBook lists posted entries inside r day by day.
func (s *Service) DayBook(ctx context.Context, companyID int64, r shared.DateRange) (DayBook, error) {
	if err := checkRange(companyID, r); err != nil {
		return DayBook{}, err
	}
	return cached(ctx, s, companyID, []string{"daybook", day(r.From), day(r.To)}, func(ctx context.Context) (DayBook, error) {
		lines, err := s.repo.CompanyLines(ctx, companyID, r)
		if err != nil {
			return DayBook{}, err
		}
		return BuildDayBook(periodOf(r), lines), nil
	})
}

// CashBook runs the ledgers of accounts named like cash.
func (s *Service) CashBook(ctx context.Context, companyID int64, r shared.DateRange) (Book, error) {
	return s.book(ctx, companyID, r, "cashbook", func(a AccountBalance) bool { return IsCashAccount(a.Name) })
}

// BankBook runs the ledgers of accounts named like bank.
func (s *Service) BankBook(ctx context.Context, companyID int64, r shared.DateRange) (Book, error) {
	return s.book(ctx, companyID, r, "bankbook", func(a AccountBalance) bool { return IsBankAccount(a.Name) })
}

// GeneralLedger runs the ledger of every account with activity or an opening balance.
func (s *Service) GeneralLedger(ctx context.Context, companyID int64, r shared.DateRange) (Book, error) {
	return s.book(ctx, companyID, r, "gl", func(AccountBalance) bool { return true })
}

func (s *Service) book(ctx context.Context, companyID int64, r shared.DateRange, name string, keep func(AccountBalance) bool) (Book, error) {
	if err := checkRange(companyID, r); err != nil {
		return Book{}, err
	}
	return cached(ctx, s, companyID, []string{name, day(r.From), day(r.To)}, func(ctx context.Context) (Book, error) {
		snap, err := s.snapshot(ctx, companyID, r, true)
		if err != nil {
			return Book{}, err
		}
		return BuildBook(r, snap.chart, snap.balances, snap.lines, keep), nil
	})
}

// Aging reports open receivables or payables as of asOf.
func (s *Service) Aging(ctx context.Context, companyID int64, kind AgingKind, asOf time.Time) (Aging, error) {
	asOf = s.asOf(asOf)
	if err := checkRange(companyID, shared.DateRange{}); err != nil {
		return Aging{}, err
	}
	if _, err := ParseAgingKind(string(kind)); err != nil {
		return Aging{}, err
	}
	return cached(ctx, s, companyID, []string{"aging", string(kind), day(asOf)}, func(ctx context.Context) (Aging, error) {
		snap, err := s.snapshot(ctx, companyID, shared.DateRange{To: asOf}, true)
		if err != nil {
			return Aging{}, err
		}
		return BuildAging(kind, asOf, snap.chart, snap.lines), nil
	})
}

// AccountLedger is the running balance of a single account. It is not cached.
func (s *Service) AccountLedger(ctx context.Context, accountID int64, r shared.DateRange) (balances.Ledger, error) {
	return s.calc.AccountLedger(ctx, accountID, r)
}

// AccountBalance returns the balance of an account, repairing the cached
// value when the calculator is configured to.
func (s *Service) AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return s.calc.Balance(ctx, accountID)
}
