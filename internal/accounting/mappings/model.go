package mappings

import "time"

// AccountMapping points a posting role of a company at an account number.
type AccountMapping struct {
	CompanyID     int64     `json:"company_id"`
	Key           string    `json:"key"`
	AccountNumber string    `json:"account_number"`
	UpdatedAt     time.Time `json:"updated_at"`
}
