package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies ledger errors for callers that need to report them.
type Kind string

const (
	KindValidation          Kind = "VALIDATION"
	KindNotFound            Kind = "NOT_FOUND"
	KindConflict            Kind = "CONFLICT"
	KindInvalidState        Kind = "INVALID_STATE"
	KindInsufficientBalance Kind = "INSUFFICIENT_BALANCE"
)

// ledgerError is a sentinel carrying its kind.
type ledgerError struct {
	kind Kind
	msg  string
}

func (e *ledgerError) Error() string { return e.msg }

func newError(kind Kind, msg string) error {
	return &ledgerError{kind: kind, msg: msg}
}

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = newError(KindValidation, "accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = newError(KindValidation, "accounting: journal requires at least two lines")
	// ErrInvalidAmount indicates a non-positive line amount.
	ErrInvalidAmount = newError(KindValidation, "accounting: line amount must be positive")
	// ErrInvalidAccountType indicates an unknown account type.
	ErrInvalidAccountType = newError(KindValidation, "accounting: invalid account type")
	// ErrInvalidTransactionType indicates a line that is neither debit nor credit.
	ErrInvalidTransactionType = newError(KindValidation, "accounting: invalid transaction type")
	// ErrAccountInactive indicates a line posted against a disabled account.
	ErrAccountInactive = newError(KindValidation, "accounting: account is inactive")
	// ErrCompanyMismatch indicates an account from another company.
	ErrCompanyMismatch = newError(KindValidation, "accounting: account belongs to another company")
	// ErrParentTypeMismatch indicates a child whose type differs from its parent.
	ErrParentTypeMismatch = newError(KindValidation, "accounting: parent account type mismatch")
	// ErrCircularReference indicates a parent chain that loops.
	ErrCircularReference = newError(KindValidation, "accounting: circular account hierarchy")
	// ErrInvalidAccountNumber indicates a number outside the type range.
	ErrInvalidAccountNumber = newError(KindValidation, "accounting: account number outside type range")
	// ErrInvalidDateRange indicates from > to.
	ErrInvalidDateRange = newError(KindValidation, "accounting: invalid date range")
	// ErrInvalidAgingKind indicates an aging report other than AR or AP.
	ErrInvalidAgingKind = newError(KindValidation, "accounting: aging kind must be AR or AP")
	// ErrNameRequired indicates a blank account name.
	ErrNameRequired = newError(KindValidation, "accounting: account name required")
	// ErrCompanyRequired indicates a missing company id.
	ErrCompanyRequired = newError(KindValidation, "accounting: company required")
	// ErrInvalidClassification indicates an unknown reporting classification.
	ErrInvalidClassification = newError(KindValidation, "accounting: invalid account classification")
	// ErrInvalidEntryType indicates an unknown or reserved entry type.
	ErrInvalidEntryType = newError(KindValidation, "accounting: invalid entry type")
	// ErrDateRequired indicates an entry without a date.
	ErrDateRequired = newError(KindValidation, "accounting: entry date required")
	// ErrIncompleteReference indicates a reference type without an id or the reverse.
	ErrIncompleteReference = newError(KindValidation, "accounting: reference type and id must be supplied together")
	// ErrInvalidReversalMode indicates an unknown reversal mode.
	ErrInvalidReversalMode = newError(KindValidation, "accounting: invalid reversal mode")
	// ErrTypeChangeNotAllowed indicates a type change on a linked account.
	ErrTypeChangeNotAllowed = newError(KindValidation, "accounting: account type cannot change")
	// ErrInvalidMappingKey indicates an override for an unknown posting role.
	ErrInvalidMappingKey = newError(KindValidation, "accounting: unknown account mapping key")

	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = newError(KindNotFound, "accounting: account not found")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = newError(KindNotFound, "accounting: journal entry not found")
	// ErrReferenceNotFound indicates no entry is linked to the source document.
	ErrReferenceNotFound = newError(KindNotFound, "accounting: no journal entry for reference")
	// ErrMappingNotFound indicates no account mapping override for the key.
	ErrMappingNotFound = newError(KindNotFound, "accounting: account mapping not found")

	// ErrDuplicateAccountNumber indicates a number already used by the company.
	ErrDuplicateAccountNumber = newError(KindConflict, "accounting: account number already exists")
	// ErrRangeExhausted indicates no free numbers left in the type range.
	ErrRangeExhausted = newError(KindConflict, "accounting: account number range exhausted")
	// ErrDuplicateEntryNumber indicates an entry number collision.
	ErrDuplicateEntryNumber = newError(KindConflict, "accounting: entry number already exists")
	// ErrIdempotencyConflict indicates a request key already in flight or
	// already used.
	ErrIdempotencyConflict = newError(KindConflict, "accounting: idempotency key already used")
	// ErrHasTransactions indicates an account referenced by journal lines.
	ErrHasTransactions = newError(KindConflict, "accounting: account has transactions")
	// ErrHasChildren indicates an account with child accounts.
	ErrHasChildren = newError(KindConflict, "accounting: account has child accounts")

	// ErrAlreadyPosted indicates a mutation of a posted entry.
	ErrAlreadyPosted = newError(KindInvalidState, "accounting: journal entry already posted")
	// ErrNotPosted indicates a reversal of a draft entry.
	ErrNotPosted = newError(KindInvalidState, "accounting: journal entry not posted")
	// ErrAlreadyReversed indicates a second reversal attempt.
	ErrAlreadyReversed = newError(KindInvalidState, "accounting: journal entry already reversed")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = newError(KindInvalidState, "accounting: invalid status transition")

	// ErrInsufficientBalance indicates a document workflow overdraw.
	ErrInsufficientBalance = newError(KindInsufficientBalance, "accounting: insufficient balance")
)

// UnbalancedError reports both sides of a rejected entry.
type UnbalancedError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("%s: debit %s, credit %s", ErrUnbalanced.Error(), e.Debit.String(), e.Credit.String())
}

// Unwrap lets errors.Is match ErrUnbalanced.
func (e *UnbalancedError) Unwrap() error { return ErrUnbalanced }

// KindOf resolves the kind of the first ledger error in the chain.
func KindOf(err error) (Kind, bool) {
	var le *ledgerError
	if errors.As(err, &le) {
		return le.kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
