package reports

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AccountBalance is an account with its opening balance at the start of a
// period and the posted debit and credit sums inside it.
type AccountBalance struct {
	AccountID      int64                   `json:"account_id"`
	Number         string                  `json:"number"`
	Name           string                  `json:"name"`
	Type           shared.AccountType      `json:"type"`
	Classification accounts.Classification `json:"classification,omitempty"`
	Opening        decimal.Decimal         `json:"opening"`
	Debit          decimal.Decimal         `json:"debit"`
	Credit         decimal.Decimal         `json:"credit"`
}

// Movement is the signed effect of the period sums on the balance.
func (a AccountBalance) Movement() decimal.Decimal {
	return balances.Sums{Debit: a.Debit, Credit: a.Credit}.Effect(a.Type)
}

// Closing is the opening balance plus the period movement.
func (a AccountBalance) Closing() decimal.Decimal {
	return a.Opening.Add(a.Movement())
}

// Active reports whether the account has anything to show.
func (a AccountBalance) Active() bool {
	return !a.Opening.IsZero() || !a.Debit.IsZero() || !a.Credit.IsZero()
}

// CollectBalances combines the chart with period sums. before holds the sums
// of lines dated before the period and may be nil for an open start.
func CollectBalances(list []accounts.Account, before, during map[int64]balances.Sums) []AccountBalance {
	out := make([]AccountBalance, 0, len(list))
	for _, acct := range list {
		opening := acct.OpeningBalance
		if s, ok := before[acct.ID]; ok {
			opening = opening.Add(s.Effect(acct.Type))
		}
		row := AccountBalance{
			AccountID:      acct.ID,
			Number:         acct.Number,
			Name:           acct.Name,
			Type:           acct.Type,
			Classification: acct.Classification,
			Opening:        opening,
			Debit:          decimal.Zero,
			Credit:         decimal.Zero,
		}
		if s, ok := during[acct.ID]; ok {
			row.Debit = s.Debit
			row.Credit = s.Credit
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Line is one row of a presented section.
type Line struct {
	AccountID int64           `json:"account_id"`
	Number    string          `json:"number"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// Section groups lines under a label with their total.
type Section struct {
	Label string          `json:"label"`
	Lines []Line          `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

func newSection(label string) Section {
	return Section{Label: label, Lines: []Line{}, Total: decimal.Zero}
}

func (s *Section) add(a AccountBalance, amount decimal.Decimal) {
	s.Lines = append(s.Lines, Line{AccountID: a.AccountID, Number: a.Number, Name: a.Name, Amount: amount})
	s.Total = s.Total.Add(amount)
}

func (s *Section) addLine(l Line) {
	s.Lines = append(s.Lines, l)
	s.Total = s.Total.Add(l.Amount)
}

// Period is the date window a report covers. A zero From is open.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func periodOf(r shared.DateRange) Period {
	return Period{From: r.From, To: r.To}
}

func nameHas(name string, words ...string) bool {
	lower := strings.ToLower(name)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
