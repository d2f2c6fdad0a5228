package shared

import "time"

// DateRange bounds ledger queries; a zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Validate rejects ranges that end before they start.
func (r DateRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return ErrInvalidDateRange
	}
	return nil
}

// Contains reports whether d falls inside the range, both ends inclusive.
func (r DateRange) Contains(d time.Time) bool {
	day := DateOnly(d)
	if !r.From.IsZero() && day.Before(DateOnly(r.From)) {
		return false
	}
	if !r.To.IsZero() && day.After(DateOnly(r.To)) {
		return false
	}
	return true
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
