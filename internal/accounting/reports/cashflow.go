package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
)

// IsCashAccount matches accounts named like cash.
func IsCashAccount(name string) bool { return nameHas(name, "cash") }

// IsBankAccount matches accounts named like bank.
func IsBankAccount(name string) bool { return nameHas(name, "bank") }

// CashFlowAccount is the movement of one cash or bank account.
type CashFlowAccount struct {
	AccountID int64           `json:"account_id"`
	Number    string          `json:"number"`
	Name      string          `json:"name"`
	Opening   decimal.Decimal `json:"opening"`
	Inflow    decimal.Decimal `json:"inflow"`
	Outflow   decimal.Decimal `json:"outflow"`
	Closing   decimal.Decimal `json:"closing"`
}

// CashFlowMonth is the movement within one calendar month.
type CashFlowMonth struct {
	Month   string          `json:"month"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
	Net     decimal.Decimal `json:"net"`
}

// CashFlow summarises money moving through cash and bank accounts.
type CashFlow struct {
	Period   Period            `json:"period"`
	Accounts []CashFlowAccount `json:"accounts"`
	Opening  decimal.Decimal   `json:"opening"`
	Inflow   decimal.Decimal   `json:"inflow"`
	Outflow  decimal.Decimal   `json:"outflow"`
	Net      decimal.Decimal   `json:"net"`
	Closing  decimal.Decimal   `json:"closing"`
	Monthly  []CashFlowMonth   `json:"monthly"`
}

// BuildCashFlow treats debits to cash and bank accounts as inflows and credits
// as outflows. lines may contain other accounts; they are ignored.
func BuildCashFlow(period Period, list []AccountBalance, lines []balances.LedgerLine) CashFlow {
	cf := CashFlow{
		Period:   period,
		Accounts: []CashFlowAccount{},
		Opening:  decimal.Zero,
		Inflow:   decimal.Zero,
		Outflow:  decimal.Zero,
		Monthly:  []CashFlowMonth{},
	}
	cash := make(map[int64]bool)
	for _, acc := range list {
		if !IsCashAccount(acc.Name) && !IsBankAccount(acc.Name) {
			continue
		}
		cash[acc.AccountID] = true
		cf.Accounts = append(cf.Accounts, CashFlowAccount{
			AccountID: acc.AccountID,
			Number:    acc.Number,
			Name:      acc.Name,
			Opening:   acc.Opening,
			Inflow:    acc.Debit,
			Outflow:   acc.Credit,
			Closing:   acc.Closing(),
		})
		cf.Opening = cf.Opening.Add(acc.Opening)
		cf.Inflow = cf.Inflow.Add(acc.Debit)
		cf.Outflow = cf.Outflow.Add(acc.Credit)
	}
	cf.Net = cf.Inflow.Sub(cf.Outflow)
	cf.Closing = cf.Opening.Add(cf.Net)

	months := make(map[string]*CashFlowMonth)
	for _, line := range lines {
		if !cash[line.AccountID] {
			continue
		}
		key := line.Date.Format("2006-01")
		m, ok := months[key]
		if !ok {
			m = &CashFlowMonth{Month: key, Inflow: decimal.Zero, Outflow: decimal.Zero}
			months[key] = m
		}
		m.Inflow = m.Inflow.Add(line.Debit())
		m.Outflow = m.Outflow.Add(line.Credit())
	}
	for _, m := range months {
		m.Net = m.Inflow.Sub(m.Outflow)
		cf.Monthly = append(cf.Monthly, *m)
	}
	sort.Slice(cf.Monthly, func(i, j int) bool { return cf.Monthly[i].Month < cf.Monthly[j].Month })
	return cf
}
