package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

const (
	fixedAssetThreshold    = 1500
	longTermLiabilityStart = 2500
)

var (
	fixedAssetWords     = []string{"fixed", "equipment", "property", "building", "vehicle", "furniture", "machinery"}
	longTermLiabilWords = []string{"long-term", "long term", "loan", "mortgage", "bond"}
)

// RetainedEarningsLabel names the synthetic equity line.
const RetainedEarningsLabel = "Retained Earnings"

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	AsOf                      time.Time       `json:"as_of"`
	CurrentAssets             Section         `json:"current_assets"`
	FixedAssets               Section         `json:"fixed_assets"`
	TotalAssets               decimal.Decimal `json:"total_assets"`
	CurrentLiabilities        Section         `json:"current_liabilities"`
	LongTermLiabilities       Section         `json:"long_term_liabilities"`
	TotalLiabilities          decimal.Decimal `json:"total_liabilities"`
	Equity                    Section         `json:"equity"`
	RetainedEarnings          decimal.Decimal `json:"retained_earnings"`
	TotalLiabilitiesAndEquity decimal.Decimal `json:"total_liabilities_and_equity"`
	Difference                decimal.Decimal `json:"difference"`
	Balanced                  bool            `json:"balanced"`
}

// IsFixedAsset decides the asset split. An explicit classification wins over
// the number and name heuristic.
func IsFixedAsset(a AccountBalance) bool {
	switch a.Classification {
	case accounts.ClassificationNonCurrent:
		return true
	case accounts.ClassificationCurrent:
		return false
	}
	return shared.AccountNumberValue(a.Number) >= fixedAssetThreshold || nameHas(a.Name, fixedAssetWords...)
}

// IsLongTermLiability decides the liability split, classification first.
func IsLongTermLiability(a AccountBalance) bool {
	switch a.Classification {
	case accounts.ClassificationNonCurrent:
		return true
	case accounts.ClassificationCurrent:
		return false
	}
	return shared.AccountNumberValue(a.Number) >= longTermLiabilityStart || nameHas(a.Name, longTermLiabilWords...)
}

// BuildBalanceSheet places closing balances into sections. Revenue and expense
// accounts fold into a synthetic retained earnings line so that the sheet
// balances whenever the ledger does.
func BuildBalanceSheet(asOf time.Time, list []AccountBalance) BalanceSheet {
	bs := BalanceSheet{
		AsOf:                asOf,
		CurrentAssets:       newSection("Current Assets"),
		FixedAssets:         newSection("Fixed Assets"),
		CurrentLiabilities:  newSection("Current Liabilities"),
		LongTermLiabilities: newSection("Long-term Liabilities"),
		Equity:              newSection("Equity"),
		RetainedEarnings:    decimal.Zero,
	}
	for _, acc := range list {
		closing := acc.Closing()
		switch acc.Type {
		case shared.AccountTypeAsset:
			if IsFixedAsset(acc) {
				bs.FixedAssets.add(acc, closing)
			} else {
				bs.CurrentAssets.add(acc, closing)
			}
		case shared.AccountTypeLiability:
			if IsLongTermLiability(acc) {
				bs.LongTermLiabilities.add(acc, closing)
			} else {
				bs.CurrentLiabilities.add(acc, closing)
			}
		case shared.AccountTypeEquity:
			bs.Equity.add(acc, closing)
		case shared.AccountTypeRevenue:
			bs.RetainedEarnings = bs.RetainedEarnings.Add(closing)
		case shared.AccountTypeExpense:
			bs.RetainedEarnings = bs.RetainedEarnings.Sub(closing)
		}
	}
	bs.Equity.addLine(Line{Name: RetainedEarningsLabel, Amount: bs.RetainedEarnings})

	bs.TotalAssets = bs.CurrentAssets.Total.Add(bs.FixedAssets.Total)
	bs.TotalLiabilities = bs.CurrentLiabilities.Total.Add(bs.LongTermLiabilities.Total)
	bs.TotalLiabilitiesAndEquity = bs.TotalLiabilities.Add(bs.Equity.Total)
	bs.Difference = bs.TotalAssets.Sub(bs.TotalLiabilitiesAndEquity)
	bs.Balanced = bs.Difference.IsZero()
	return bs
}
