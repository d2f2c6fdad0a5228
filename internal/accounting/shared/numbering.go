package shared

import (
	"fmt"
	"strconv"
	"strings"
)

// NumberRange is the inclusive account number block reserved for a type.
type NumberRange struct {
	Min int
	Max int
}

var numberRanges = map[AccountType]NumberRange{
	AccountTypeAsset:     {Min: 1000, Max: 1999},
	AccountTypeLiability: {Min: 2000, Max: 2999},
	AccountTypeEquity:    {Min: 3000, Max: 3999},
	AccountTypeRevenue:   {Min: 4000, Max: 4999},
	AccountTypeExpense:   {Min: 5000, Max: 5999},
}

// RangeFor returns the number block of t.
func RangeFor(t AccountType) (NumberRange, error) {
	r, ok := numberRanges[t]
	if !ok {
		return NumberRange{}, ErrInvalidAccountType
	}
	return r, nil
}

// Contains reports whether n falls inside the range.
func (r NumberRange) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// NextAccountNumber picks highest+1 inside the range, or Min when the range is unused.
// highest is nil when no account of the type exists yet.
func NextAccountNumber(t AccountType, highest *int) (string, error) {
	r, err := RangeFor(t)
	if err != nil {
		return "", err
	}
	next := r.Min
	if highest != nil && *highest >= r.Min {
		next = *highest + 1
	}
	if next > r.Max {
		return "", ErrRangeExhausted
	}
	return strconv.Itoa(next), nil
}

// ValidateAccountNumber checks a caller supplied number against the type range.
func ValidateAccountNumber(t AccountType, number string) error {
	r, err := RangeFor(t)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(number))
	if err != nil || !r.Contains(n) {
		return fmt.Errorf("%w: %q not in %d-%d", ErrInvalidAccountNumber, number, r.Min, r.Max)
	}
	return nil
}

// AccountNumberValue parses a stored account number; non numeric values yield 0.
func AccountNumberValue(number string) int {
	n, err := strconv.Atoi(strings.TrimSpace(number))
	if err != nil {
		return 0
	}
	return n
}

// FormatEntryNumber renders a journal sequence value.
func FormatEntryNumber(seq int64) string {
	return fmt.Sprintf("JE-%04d", seq)
}
