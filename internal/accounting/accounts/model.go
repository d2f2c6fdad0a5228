package accounts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Classification is an optional reporting hint that overrides name heuristics.
type Classification string

const (
	ClassificationNone       Classification = ""
	ClassificationCurrent    Classification = "CURRENT"
	ClassificationNonCurrent Classification = "NON_CURRENT"
	ClassificationCOGS       Classification = "COGS"
	ClassificationOperating  Classification = "OPERATING"
	ClassificationOther      Classification = "OTHER"
)

// Valid reports whether c is a known classification.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationNone, ClassificationCurrent, ClassificationNonCurrent,
		ClassificationCOGS, ClassificationOperating, ClassificationOther:
		return true
	}
	return false
}

// Account models a chart of accounts node.
type Account struct {
	ID             int64
	CompanyID      int64
	Number         string
	Name           string
	Type           shared.AccountType
	ParentID       *int64
	OpeningBalance decimal.Decimal
	OpeningSide    shared.TransactionType
	CurrentBalance decimal.Decimal
	Classification Classification
	Description    string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateAccountInput carries the fields accepted when opening an account.
// OpeningSide is accepted for compatibility and always normalised.
type CreateAccountInput struct {
	CompanyID      int64
	Number         string
	Name           string
	Type           shared.AccountType
	ParentID       *int64
	OpeningBalance decimal.Decimal
	OpeningSide    shared.TransactionType
	Classification Classification
	Description    string
}

// UpdateAccountInput is a patch; nil fields are left untouched.
type UpdateAccountInput struct {
	Number         *string
	Name           *string
	Type           *shared.AccountType
	ParentID       *int64
	ClearParent    bool
	OpeningBalance *decimal.Decimal
	Classification *Classification
	Description    *string
	IsActive       *bool
}

// ListAccountsFilter narrows List.
type ListAccountsFilter struct {
	CompanyID int64
	Type      shared.AccountType
	IsActive  *bool
	Search    string
}

// Node is an account with its children, as returned by Tree.
type Node struct {
	Account  Account
	Children []*Node
}
