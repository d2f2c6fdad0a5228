package journals

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// EntryType tags the business event behind a journal entry.
type EntryType string

const (
	EntryTypeManual         EntryType = "MANUAL"
	EntryTypeSystem         EntryType = "SYSTEM"
	EntryTypePayment        EntryType = "PAYMENT"
	EntryTypeReceipt        EntryType = "RECEIPT"
	EntryTypeBill           EntryType = "BILL"
	EntryTypeInvoice        EntryType = "INVOICE"
	EntryTypePurchaseReturn EntryType = "PURCHASE_RETURN"
	EntryTypeSalesReturn    EntryType = "SALES_RETURN"
	EntryTypeReversal       EntryType = "REVERSAL"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeManual, EntryTypeSystem, EntryTypePayment, EntryTypeReceipt, EntryTypeBill,
		EntryTypeInvoice, EntryTypePurchaseReturn, EntryTypeSalesReturn, EntryTypeReversal:
		return true
	}
	return false
}

// ReversalMode selects how a posted entry is undone when its source document goes away.
type ReversalMode string

const (
	// ReversalModeReversingEntry posts an offsetting entry and keeps the original.
	ReversalModeReversingEntry ReversalMode = "reversing_entry"
	// ReversalModeHardDelete rolls balances back and removes the original entry.
	ReversalModeHardDelete ReversalMode = "hard_delete"
)

// ParseReversalMode maps configuration values; empty selects the reversing entry mode.
func ParseReversalMode(raw string) (ReversalMode, error) {
	switch ReversalMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ReversalModeReversingEntry:
		return ReversalModeReversingEntry, nil
	case ReversalModeHardDelete:
		return ReversalModeHardDelete, nil
	}
	return "", shared.ErrInvalidReversalMode
}

// JournalEntry is the header of a balanced set of lines.
type JournalEntry struct {
	ID              int64
	CompanyID       int64
	Number          string
	Date            time.Time
	Type            EntryType
	ReferenceType   string
	ReferenceID     string
	ReferenceNumber string
	Description     string
	TotalDebit      decimal.Decimal
	TotalCredit     decimal.Decimal
	IsPosted        bool
	PostedAt        *time.Time
	ReversalOfID    *int64
	ReversedByID    *int64
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Lines           []JournalLine
}

// HasReference reports whether the entry is linked to a source document.
func (e JournalEntry) HasReference() bool {
	return e.ReferenceType != "" && e.ReferenceID != ""
}

// JournalLine is one debit or credit of an entry. Amount is always positive.
type JournalLine struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	Description string
	Type        shared.TransactionType
	Amount      decimal.Decimal
	DocumentRef string
	Position    int
}

// ListEntriesFilter narrows List. Zero values are ignored.
type ListEntriesFilter struct {
	CompanyID     int64
	Posted        *bool
	Type          EntryType
	Range         shared.DateRange
	ReferenceType string
	ReferenceID   string
	Limit         int
}

// ReversalResult describes what ReverseByReference did.
type ReversalResult struct {
	Mode     ReversalMode
	Deleted  bool
	Original JournalEntry
	Reversal *JournalEntry
}
