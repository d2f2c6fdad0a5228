package reports

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// AgingKind selects receivables or payables.
type AgingKind string

const (
	AgingReceivable AgingKind = "AR"
	AgingPayable    AgingKind = "AP"
)

// ParseAgingKind accepts AR or AP in any case.
func ParseAgingKind(raw string) (AgingKind, error) {
	switch k := AgingKind(strings.ToUpper(strings.TrimSpace(raw))); k {
	case AgingReceivable, AgingPayable:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", shared.ErrInvalidAgingKind, raw)
}

func (k AgingKind) matches(name string) bool {
	if k == AgingReceivable {
		return nameHas(name, "receivable")
	}
	return nameHas(name, "payable")
}

// Bucket labels in report order.
var agingBuckets = []struct {
	label string
	max   int
}{
	{"0-30", 30},
	{"31-60", 60},
	{"61-90", 90},
	{"91-120", 120},
	{">120", -1},
}

// BucketFor returns the label for an age in days.
func BucketFor(days int) string {
	for _, b := range agingBuckets {
		if b.max < 0 || days <= b.max {
			return b.label
		}
	}
	return agingBuckets[len(agingBuckets)-1].label
}

// AgingDocument is the open amount of one document.
type AgingDocument struct {
	DocumentRef string          `json:"document_ref"`
	AccountID   int64           `json:"account_id"`
	Date        time.Time       `json:"date"`
	Days        int             `json:"days"`
	Bucket      string          `json:"bucket"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// AgingBucket summarises an amount inside a time bucket.
type AgingBucket struct {
	Bucket string          `json:"bucket"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// Aging is the outstanding receivables or payables as of a date.
type Aging struct {
	Kind      AgingKind       `json:"kind"`
	AsOf      time.Time       `json:"as_of"`
	Documents []AgingDocument `json:"documents"`
	Buckets   []AgingBucket   `json:"buckets"`
	Total     decimal.Decimal `json:"total"`
}

// BuildAging nets lines on receivable or payable accounts per document and ages
// what is left by the date of the document's first line. Settled documents are
// omitted.
func BuildAging(kind AgingKind, asOf time.Time, chart []accounts.Account, lines []balances.LedgerLine) Aging {
	asOf = shared.DateOnly(asOf)
	report := Aging{Kind: kind, AsOf: asOf, Documents: []AgingDocument{}, Total: decimal.Zero}
	types := make(map[int64]shared.AccountType)
	for _, acct := range chart {
		if kind.matches(acct.Name) {
			types[acct.ID] = acct.Type
		}
	}
	docs := make(map[string]*AgingDocument)
	order := make([]string, 0)
	for _, line := range lines {
		t, ok := types[line.AccountID]
		if !ok {
			continue
		}
		ref := line.DocumentRef
		if ref == "" {
			ref = line.EntryNumber
		}
		doc, ok := docs[ref]
		if !ok {
			doc = &AgingDocument{DocumentRef: ref, AccountID: line.AccountID, Date: shared.DateOnly(line.Date), Outstanding: decimal.Zero}
			docs[ref] = doc
			order = append(order, ref)
		}
		if d := shared.DateOnly(line.Date); d.Before(doc.Date) {
			doc.Date = d
		}
		doc.Outstanding = doc.Outstanding.Add(shared.SignedEffect(t, line.Type, line.Amount))
	}

	totals := make(map[string]*AgingBucket, len(agingBuckets))
	for _, b := range agingBuckets {
		totals[b.label] = &AgingBucket{Bucket: b.label, Amount: decimal.Zero}
	}
	for _, ref := range order {
		doc := docs[ref]
		if doc.Outstanding.IsZero() {
			continue
		}
		doc.Days = int(asOf.Sub(doc.Date).Hours() / 24)
		if doc.Days < 0 {
			doc.Days = 0
		}
		doc.Bucket = BucketFor(doc.Days)
		report.Documents = append(report.Documents, *doc)
		bucket := totals[doc.Bucket]
		bucket.Amount = bucket.Amount.Add(doc.Outstanding)
		bucket.Count++
		report.Total = report.Total.Add(doc.Outstanding)
	}
	sort.SliceStable(report.Documents, func(i, j int) bool { return report.Documents[i].Date.Before(report.Documents[j].Date) })
	for _, b := range agingBuckets {
		report.Buckets = append(report.Buckets, *totals[b.label])
	}
	return report
}
