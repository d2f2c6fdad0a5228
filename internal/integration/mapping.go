package integration

import (
	"context"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
)

// Role names the part an account plays in document postings.
type Role string

const (
	RoleCash         Role = "CASH"
	RoleBank         Role = "BANK"
	RoleReceivable   Role = "RECEIVABLE"
	RoleInventory    Role = "INVENTORY"
	RolePayable      Role = "PAYABLE"
	RoleRevenue      Role = "REVENUE"
	RoleSalesReturns Role = "SALES_RETURNS"
	RoleExpense      Role = "EXPENSE"
)

// Roles lists every posting role.
var Roles = []Role{RoleCash, RoleBank, RoleReceivable, RoleInventory, RolePayable, RoleRevenue, RoleSalesReturns, RoleExpense}

// ValidRole reports whether key names a posting role, ignoring case.
func ValidRole(key string) bool {
	role := Role(strings.ToUpper(strings.TrimSpace(key)))
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AccountMap holds the account numbers used for each role.
type AccountMap struct {
	Cash         string `envconfig:"CASH" default:"1010"`
	Bank         string `envconfig:"BANK" default:"1020"`
	Receivable   string `envconfig:"RECEIVABLE" default:"1200"`
	Inventory    string `envconfig:"INVENTORY" default:"1300"`
	Payable      string `envconfig:"PAYABLE" default:"2010"`
	Revenue      string `envconfig:"REVENUE" default:"4010"`
	SalesReturns string `envconfig:"SALES_RETURNS" default:"4100"`
	Expense      string `envconfig:"EXPENSE" default:"5100"`
}

// Number returns the account number mapped to role.
func (m AccountMap) Number(role Role) string {
	switch role {
	case RoleCash:
		return m.Cash
	case RoleBank:
		return m.Bank
	case RoleReceivable:
		return m.Receivable
	case RoleInventory:
		return m.Inventory
	case RolePayable:
		return m.Payable
	case RoleRevenue:
		return m.Revenue
	case RoleSalesReturns:
		return m.SalesReturns
	case RoleExpense:
		return m.Expense
	}
	return ""
}

// With returns a copy of m with the override rows applied. Rows for unknown
// keys are ignored.
func (m AccountMap) With(rows []mappings.AccountMapping) AccountMap {
	for _, row := range rows {
		number := strings.TrimSpace(row.AccountNumber)
		if number == "" {
			continue
		}
		switch Role(strings.ToUpper(row.Key)) {
		case RoleCash:
			m.Cash = number
		case RoleBank:
			m.Bank = number
		case RoleReceivable:
			m.Receivable = number
		case RoleInventory:
			m.Inventory = number
		case RolePayable:
			m.Payable = number
		case RoleRevenue:
			m.Revenue = number
		case RoleSalesReturns:
			m.SalesReturns = number
		case RoleExpense:
			m.Expense = number
		}
	}
	return m
}

// OverrideSource supplies per-company mapping overrides.
type OverrideSource interface {
	ForCompany(ctx context.Context, companyID int64) ([]mappings.AccountMapping, error)
}
