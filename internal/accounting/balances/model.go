package balances

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Sums are the raw debit and credit totals of posted lines.
type Sums struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Add accumulates one line.
func (s Sums) Add(tt shared.TransactionType, amount decimal.Decimal) Sums {
	if tt == shared.Debit {
		s.Debit = s.Debit.Add(amount)
	} else {
		s.Credit = s.Credit.Add(amount)
	}
	return s
}

// Effect is the signed change the sums apply to an account of type t.
func (s Sums) Effect(t shared.AccountType) decimal.Decimal {
	return shared.SignedEffect(t, shared.Debit, s.Debit).Add(shared.SignedEffect(t, shared.Credit, s.Credit))
}

// Net is debit minus credit.
func (s Sums) Net() decimal.Decimal {
	return s.Debit.Sub(s.Credit)
}

// LedgerLine is a posted journal line joined with its entry header.
type LedgerLine struct {
	EntryID         int64
	EntryNumber     string
	EntryType       string
	Date            time.Time
	EntryDesc       string
	ReferenceType   string
	ReferenceID     string
	ReferenceNumber string
	LineID          int64
	AccountID       int64
	Position        int
	Description     string
	Type            shared.TransactionType
	Amount          decimal.Decimal
	DocumentRef     string
}

// Debit returns the amount when the line is a debit, else zero.
func (l LedgerLine) Debit() decimal.Decimal {
	if l.Type == shared.Debit {
		return l.Amount
	}
	return decimal.Zero
}

// Credit returns the amount when the line is a credit, else zero.
func (l LedgerLine) Credit() decimal.Decimal {
	if l.Type == shared.Credit {
		return l.Amount
	}
	return decimal.Zero
}

// LedgerRow is a line annotated with the balance after applying it.
type LedgerRow struct {
	LedgerLine
	Effect  decimal.Decimal
	Balance decimal.Decimal
}

// Ledger is the running-balance view of one account over a date range.
type Ledger struct {
	Account     accounts.Account
	Range       shared.DateRange
	Opening     decimal.Decimal
	Rows        []LedgerRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	Closing     decimal.Decimal
}

// Check compares the cached balance of an account with its recomputed value.
type Check struct {
	AccountID int64
	CompanyID int64
	Number    string
	Cached    decimal.Decimal
	Computed  decimal.Decimal
	Repaired  bool
}

// Drift is cached minus computed.
func (c Check) Drift() decimal.Decimal {
	return c.Cached.Sub(c.Computed)
}

// InSync reports whether the cached balance matches.
func (c Check) InSync() bool {
	return c.Cached.Equal(c.Computed)
}

// ReconcileReport summarises a company-wide balance verification.
type ReconcileReport struct {
	CompanyID int64
	Checked   int
	Drifts    []Check
	Repaired  int
}
