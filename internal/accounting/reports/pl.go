package reports

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

var (
	cogsWords  = []string{"cost of goods", "cogs", "cost of sales", "purchases"}
	otherWords = []string{"interest", "other", "loss", "depreciation"}
)

// ExpenseBucket is the profit and loss grouping of an expense account.
type ExpenseBucket string

const (
	BucketCOGS      ExpenseBucket = "COGS"
	BucketOperating ExpenseBucket = "OPERATING"
	BucketOther     ExpenseBucket = "OTHER"
)

// ClassifyExpense picks the bucket of an expense account.
func ClassifyExpense(a AccountBalance) ExpenseBucket {
	switch a.Classification {
	case accounts.ClassificationCOGS:
		return BucketCOGS
	case accounts.ClassificationOperating:
		return BucketOperating
	case accounts.ClassificationOther:
		return BucketOther
	}
	switch {
	case nameHas(a.Name, cogsWords...):
		return BucketCOGS
	case nameHas(a.Name, otherWords...):
		return BucketOther
	}
	return BucketOperating
}

// ProfitAndLoss contains the structured output for the report.
type ProfitAndLoss struct {
	Period            Period          `json:"period"`
	Revenue           Section         `json:"revenue"`
	CostOfGoodsSold   Section         `json:"cost_of_goods_sold"`
	OperatingExpenses Section         `json:"operating_expenses"`
	OtherExpenses     Section         `json:"other_expenses"`
	TotalExpenses     decimal.Decimal `json:"total_expenses"`
	GrossProfit       decimal.Decimal `json:"gross_profit"`
	OperatingProfit   decimal.Decimal `json:"operating_profit"`
	NetProfit         decimal.Decimal `json:"net_profit"`
}

// BuildProfitAndLoss aggregates period movements of revenue and expense accounts.
// Accounts without movement are left out.
func BuildProfitAndLoss(period Period, list []AccountBalance) ProfitAndLoss {
	pl := ProfitAndLoss{
		Period:            period,
		Revenue:           newSection("Revenue"),
		CostOfGoodsSold:   newSection("Cost of Goods Sold"),
		OperatingExpenses: newSection("Operating Expenses"),
		OtherExpenses:     newSection("Other Expenses"),
	}
	for _, acc := range list {
		if acc.Debit.IsZero() && acc.Credit.IsZero() {
			continue
		}
		switch acc.Type {
		case shared.AccountTypeRevenue:
			pl.Revenue.add(acc, acc.Credit.Sub(acc.Debit))
		case shared.AccountTypeExpense:
			amount := acc.Debit.Sub(acc.Credit)
			switch ClassifyExpense(acc) {
			case BucketCOGS:
				pl.CostOfGoodsSold.add(acc, amount)
			case BucketOther:
				pl.OtherExpenses.add(acc, amount)
			default:
				pl.OperatingExpenses.add(acc, amount)
			}
		}
	}
	pl.TotalExpenses = pl.CostOfGoodsSold.Total.Add(pl.OperatingExpenses.Total).Add(pl.OtherExpenses.Total)
	pl.GrossProfit = pl.Revenue.Total.Sub(pl.CostOfGoodsSold.Total)
	pl.OperatingProfit = pl.GrossProfit.Sub(pl.OperatingExpenses.Total)
	pl.NetProfit = pl.Revenue.Total.Sub(pl.TotalExpenses)
	return pl
}
