package accounts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// createRequest is the JSON body of POST /accounts.
type createRequest struct {
	CompanyID      int64            `json:"company_id" validate:"required,gt=0"`
	Number         string           `json:"number" validate:"omitempty,numeric,len=4"`
	Name           string           `json:"name" validate:"required,max=200"`
	Type           string           `json:"type" validate:"required"`
	ParentID       *int64           `json:"parent_id" validate:"omitempty,gt=0"`
	OpeningBalance *decimal.Decimal `json:"opening_balance"`
	OpeningSide    string           `json:"opening_side"`
	Classification string           `json:"classification"`
	Description    string           `json:"description" validate:"max=1000"`
}

func (r createRequest) input() CreateAccountInput {
	in := CreateAccountInput{
		CompanyID:      r.CompanyID,
		Number:         r.Number,
		Name:           r.Name,
		Type:           shared.AccountType(r.Type),
		ParentID:       r.ParentID,
		OpeningSide:    shared.TransactionType(r.OpeningSide),
		Classification: Classification(r.Classification),
		Description:    r.Description,
	}
	if r.OpeningBalance != nil {
		in.OpeningBalance = *r.OpeningBalance
	}
	return in
}

// updateRequest is the JSON body of PATCH /accounts/{id}.
type updateRequest struct {
	Number         *string          `json:"number" validate:"omitempty,numeric,len=4"`
	Name           *string          `json:"name" validate:"omitempty,max=200"`
	Type           *string          `json:"type"`
	ParentID       *int64           `json:"parent_id" validate:"omitempty,gt=0"`
	ClearParent    bool             `json:"clear_parent"`
	OpeningBalance *decimal.Decimal `json:"opening_balance"`
	Classification *string          `json:"classification"`
	Description    *string          `json:"description" validate:"omitempty,max=1000"`
	IsActive       *bool            `json:"is_active"`
}

func (r updateRequest) input() UpdateAccountInput {
	in := UpdateAccountInput{
		Number:         r.Number,
		Name:           r.Name,
		ParentID:       r.ParentID,
		ClearParent:    r.ClearParent,
		OpeningBalance: r.OpeningBalance,
		Description:    r.Description,
		IsActive:       r.IsActive,
	}
	if r.Type != nil {
		t := shared.AccountType(*r.Type)
		in.Type = &t
	}
	if r.Classification != nil {
		c := Classification(*r.Classification)
		in.Classification = &c
	}
	return in
}

// AccountView is the JSON shape of an account.
type AccountView struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	Number         string          `json:"number"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	ParentID       *int64          `json:"parent_id,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	OpeningSide    string          `json:"opening_side"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Classification string          `json:"classification,omitempty"`
	Description    string          `json:"description,omitempty"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// View converts an account to its JSON shape.
func View(a Account) AccountView {
	return AccountView{
		ID:             a.ID,
		CompanyID:      a.CompanyID,
		Number:         a.Number,
		Name:           a.Name,
		Type:           string(a.Type),
		ParentID:       a.ParentID,
		OpeningBalance: a.OpeningBalance,
		OpeningSide:    string(a.OpeningSide),
		CurrentBalance: a.CurrentBalance,
		Classification: string(a.Classification),
		Description:    a.Description,
		IsActive:       a.IsActive,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// NodeView is the JSON shape of a tree node.
type NodeView struct {
	AccountView
	Children []NodeView `json:"children,omitempty"`
}

func treeView(nodes []*Node) []NodeView {
	out := make([]NodeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, NodeView{AccountView: View(n.Account), Children: treeView(n.Children)})
	}
	return out
}
