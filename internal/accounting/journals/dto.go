package journals

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// LineInput describes a journal line in a create or update request.
type LineInput struct {
	AccountID   int64
	Description string
	Type        shared.TransactionType
	Amount      decimal.Decimal
	DocumentRef string
}

// CreateEntryInput groups the fields required to open a draft entry.
type CreateEntryInput struct {
	CompanyID       int64
	Date            time.Time
	Type            EntryType
	ReferenceType   string
	ReferenceID     string
	ReferenceNumber string
	Description     string
	CreatedBy       int64
	Lines           []LineInput
}

// Validate checks the line set and returns its debit and credit sums.
func (in CreateEntryInput) Validate() (Totals, error) {
	if in.CompanyID == 0 {
		return Totals{}, shared.ErrCompanyRequired
	}
	if in.Type != "" && (!in.Type.Valid() || in.Type == EntryTypeReversal) {
		return Totals{}, fmt.Errorf("%w: %q", shared.ErrInvalidEntryType, in.Type)
	}
	if in.Date.IsZero() {
		return Totals{}, shared.ErrDateRequired
	}
	if (in.ReferenceType == "") != (in.ReferenceID == "") {
		return Totals{}, shared.ErrIncompleteReference
	}
	return ValidateLines(in.Lines)
}

// UpdateEntryInput patches a draft entry. A nil Lines slice keeps the current lines.
type UpdateEntryInput struct {
	Date            *time.Time
	Description     *string
	ReferenceNumber *string
	Lines           []LineInput
}

// ReverseInput carries the optional overrides for a reversing entry.
type ReverseInput struct {
	ActorID     int64
	Date        *time.Time
	Description string
}

// Totals is the pair of sums of an entry.
type Totals struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// ValidateLines enforces the line rules shared by create, update and post:
// at least two lines, positive amounts, a direction on every line and
// exactly equal debit and credit sums.
func ValidateLines(lines []LineInput) (Totals, error) {
	if len(lines) < 2 {
		return Totals{}, shared.ErrTooFewLines
	}
	totals := Totals{Debit: decimal.Zero, Credit: decimal.Zero}
	for idx, line := range lines {
		if line.AccountID == 0 {
			return Totals{}, fmt.Errorf("line %d: %w", idx+1, shared.ErrAccountNotFound)
		}
		if !line.Type.Valid() {
			return Totals{}, fmt.Errorf("line %d: %w", idx+1, shared.ErrInvalidTransactionType)
		}
		if !line.Amount.IsPositive() {
			return Totals{}, fmt.Errorf("line %d: %w", idx+1, shared.ErrInvalidAmount)
		}
		if line.Type == shared.Debit {
			totals.Debit = totals.Debit.Add(line.Amount)
		} else {
			totals.Credit = totals.Credit.Add(line.Amount)
		}
	}
	if !totals.Debit.Equal(totals.Credit) {
		return Totals{}, &shared.UnbalancedError{Debit: totals.Debit, Credit: totals.Credit}
	}
	return totals, nil
}

func linesToInput(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineInput{
			AccountID:   l.AccountID,
			Description: l.Description,
			Type:        l.Type,
			Amount:      l.Amount,
			DocumentRef: l.DocumentRef,
		})
	}
	return out
}

// buildLines assigns positions and fills the default document reference.
func buildLines(in []LineInput, refType, refID string) []JournalLine {
	fallback := ""
	if refType != "" && refID != "" {
		fallback = refType + ":" + refID
	}
	out := make([]JournalLine, 0, len(in))
	for idx, l := range in {
		ref := strings.TrimSpace(l.DocumentRef)
		if ref == "" {
			ref = fallback
		}
		out = append(out, JournalLine{
			AccountID:   l.AccountID,
			Description: strings.TrimSpace(l.Description),
			Type:        l.Type,
			Amount:      l.Amount,
			DocumentRef: ref,
			Position:    idx + 1,
		})
	}
	return out
}

// reverseLines flips every line direction, keeping amounts and accounts.
func reverseLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineInput{
			AccountID:   l.AccountID,
			Description: l.Description,
			Type:        l.Type.Opposite(),
			Amount:      l.Amount,
			DocumentRef: l.DocumentRef,
		})
	}
	return out
}
