package shared

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// AccountTypes lists every type in chart order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeExpense,
}

// ParseAccountType normalises user input into an AccountType.
func ParseAccountType(raw string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", ErrInvalidAccountType
	}
	return t, nil
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalSide returns the side that increases the account balance.
func (t AccountType) NormalSide() TransactionType {
	if t.DebitNormal() {
		return Debit
	}
	return Credit
}

// DebitNormal is true for ASSET and EXPENSE accounts.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// TransactionType is the direction of a journal line.
type TransactionType string

const (
	Debit  TransactionType = "DEBIT"
	Credit TransactionType = "CREDIT"
)

// Valid reports whether tt is DEBIT or CREDIT.
func (tt TransactionType) Valid() bool {
	return tt == Debit || tt == Credit
}

// Opposite flips the direction.
func (tt TransactionType) Opposite() TransactionType {
	if tt == Debit {
		return Credit
	}
	return Debit
}

// SignedEffect is the change a line of amount applies to a balance of an account
// of type t. Debits increase debit-normal accounts and decrease credit-normal ones.
func SignedEffect(t AccountType, tt TransactionType, amount decimal.Decimal) decimal.Decimal {
	if (tt == Debit) == t.DebitNormal() {
		return amount
	}
	return amount.Neg()
}

// InverseEffect undoes SignedEffect for the same line.
func InverseEffect(t AccountType, tt TransactionType, amount decimal.Decimal) decimal.Decimal {
	return SignedEffect(t, tt, amount).Neg()
}
