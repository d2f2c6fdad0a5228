package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// DayBookEntry is a posted entry with the lines that fall in the report.
type DayBookEntry struct {
	EntryID     int64                 `json:"entry_id"`
	Number      string                `json:"entry_number"`
	Type        string                `json:"entry_type"`
	Description string                `json:"description,omitempty"`
	Reference   string                `json:"reference,omitempty"`
	Lines       []balances.LedgerLine `json:"lines"`
	Debit       decimal.Decimal       `json:"debit"`
	Credit      decimal.Decimal       `json:"credit"`
}

// DayBookDay groups the entries of a single date.
type DayBookDay struct {
	Date    time.Time       `json:"date"`
	Entries []DayBookEntry  `json:"entries"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
}

// DayBook lists posted entries day by day.
type DayBook struct {
	Period Period          `json:"period"`
	Days   []DayBookDay    `json:"days"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// BuildDayBook groups lines, already in ledger order, by date then entry.
func BuildDayBook(period Period, lines []balances.LedgerLine) DayBook {
	book := DayBook{Period: period, Days: []DayBookDay{}, Debit: decimal.Zero, Credit: decimal.Zero}
	for _, line := range lines {
		date := shared.DateOnly(line.Date)
		if n := len(book.Days); n == 0 || !book.Days[n-1].Date.Equal(date) {
			book.Days = append(book.Days, DayBookDay{Date: date, Entries: []DayBookEntry{}, Debit: decimal.Zero, Credit: decimal.Zero})
		}
		day := &book.Days[len(book.Days)-1]
		if n := len(day.Entries); n == 0 || day.Entries[n-1].EntryID != line.EntryID {
			ref := line.ReferenceNumber
			if ref == "" && line.ReferenceType != "" {
				ref = line.ReferenceType + ":" + line.ReferenceID
			}
			day.Entries = append(day.Entries, DayBookEntry{
				EntryID:     line.EntryID,
				Number:      line.EntryNumber,
				Type:        line.EntryType,
				Description: line.EntryDesc,
				Reference:   ref,
				Debit:       decimal.Zero,
				Credit:      decimal.Zero,
			})
		}
		entry := &day.Entries[len(day.Entries)-1]
		entry.Lines = append(entry.Lines, line)
		entry.Debit = entry.Debit.Add(line.Debit())
		entry.Credit = entry.Credit.Add(line.Credit())
		day.Debit = day.Debit.Add(line.Debit())
		day.Credit = day.Credit.Add(line.Credit())
		book.Debit = book.Debit.Add(line.Debit())
		book.Credit = book.Credit.Add(line.Credit())
	}
	return book
}

// Book is a set of account ledgers over one period.
type Book struct {
	Period  Period            `json:"period"`
	Ledgers []balances.Ledger `json:"ledgers"`
	Opening decimal.Decimal   `json:"opening"`
	Closing decimal.Decimal   `json:"closing"`
}

// BuildBook runs a ledger for each account accepted by keep. Accounts without
// an opening balance or lines in the period are skipped.
func BuildBook(r shared.DateRange, chart []accounts.Account, list []AccountBalance, lines []balances.LedgerLine,
	keep func(AccountBalance) bool) Book {
	book := Book{Period: periodOf(r), Ledgers: []balances.Ledger{}, Opening: decimal.Zero, Closing: decimal.Zero}
	byAccount := make(map[int64][]balances.LedgerLine)
	for _, line := range lines {
		byAccount[line.AccountID] = append(byAccount[line.AccountID], line)
	}
	byID := make(map[int64]accounts.Account, len(chart))
	for _, acct := range chart {
		byID[acct.ID] = acct
	}
	for _, acc := range list {
		if !keep(acc) || !acc.Active() {
			continue
		}
		ledger := balances.BuildLedger(byID[acc.AccountID], r, acc.Opening, byAccount[acc.AccountID])
		book.Ledgers = append(book.Ledgers, ledger)
		book.Opening = book.Opening.Add(ledger.Opening)
		book.Closing = book.Closing.Add(ledger.Closing)
	}
	return book
}
