package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

var typeOrder = []shared.AccountType{
	shared.AccountTypeAsset,
	shared.AccountTypeLiability,
	shared.AccountTypeEquity,
	shared.AccountTypeRevenue,
	shared.AccountTypeExpense,
}

// TrialBalanceAccount represents a row inside a trial balance group. Debit and
// Credit are the net columns; Opening and Closing follow the sign rule and are
// informational.
type TrialBalanceAccount struct {
	AccountID int64           `json:"account_id"`
	Number    string          `json:"number"`
	Name      string          `json:"name"`
	Opening   decimal.Decimal `json:"opening"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Closing   decimal.Decimal `json:"closing"`
}

// TrialBalanceGroup aggregates the accounts of one type.
type TrialBalanceGroup struct {
	Type     shared.AccountType    `json:"type"`
	Accounts []TrialBalanceAccount `json:"accounts"`
	Debit    decimal.Decimal       `json:"debit"`
	Credit   decimal.Decimal       `json:"credit"`
}

// TrialBalance proves the ledger balances as of a date.
type TrialBalance struct {
	AsOf        time.Time           `json:"as_of"`
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
	Balanced    bool                `json:"balanced"`
}

// BuildTrialBalance nets each account's posted debits against its credits. A
// positive difference lands in the debit column, otherwise its absolute value
// lands in the credit column. Equality is exact.
func BuildTrialBalance(asOf time.Time, list []AccountBalance) TrialBalance {
	groups := make(map[shared.AccountType]*TrialBalanceGroup, len(typeOrder))
	for _, t := range typeOrder {
		groups[t] = &TrialBalanceGroup{Type: t, Accounts: []TrialBalanceAccount{}, Debit: decimal.Zero, Credit: decimal.Zero}
	}
	result := TrialBalance{AsOf: asOf, Groups: []TrialBalanceGroup{}, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, acc := range list {
		grp, ok := groups[acc.Type]
		if !ok {
			continue
		}
		row := TrialBalanceAccount{
			AccountID: acc.AccountID,
			Number:    acc.Number,
			Name:      acc.Name,
			Opening:   acc.Opening,
			Debit:     decimal.Zero,
			Credit:    decimal.Zero,
			Closing:   acc.Closing(),
		}
		if net := acc.Debit.Sub(acc.Credit); net.IsPositive() {
			row.Debit = net
		} else {
			row.Credit = net.Abs()
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
	}
	for _, t := range typeOrder {
		grp := groups[t]
		if len(grp.Accounts) == 0 {
			continue
		}
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	result.Balanced = result.TotalDebit.Equal(result.TotalCredit)
	return result
}
