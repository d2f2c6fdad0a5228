package journals

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type lineRequest struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Description string          `json:"description" validate:"max=500"`
	Type        string          `json:"transaction_type" validate:"required,oneof=DEBIT CREDIT"`
	Amount      decimal.Decimal `json:"amount"`
	DocumentRef string          `json:"document_ref" validate:"max=120"`
}

func toLineInputs(req []lineRequest) []LineInput {
	if req == nil {
		return nil
	}
	out := make([]LineInput, 0, len(req))
	for _, l := range req {
		out = append(out, LineInput{
			AccountID:   l.AccountID,
			Description: l.Description,
			Type:        shared.TransactionType(l.Type),
			Amount:      l.Amount,
			DocumentRef: l.DocumentRef,
		})
	}
	return out
}

// createRequest is the body of POST /journals. Post=true posts in the same transaction.
type createRequest struct {
	CompanyID       int64         `json:"company_id" validate:"required,gt=0"`
	Date            string        `json:"date" validate:"required,datetime=2006-01-02"`
	Type            string        `json:"entry_type"`
	ReferenceType   string        `json:"reference_type" validate:"max=50"`
	ReferenceID     string        `json:"reference_id" validate:"max=120"`
	ReferenceNumber string        `json:"reference_number" validate:"max=120"`
	Description     string        `json:"description" validate:"max=1000"`
	Post            bool          `json:"post"`
	Lines           []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (r createRequest) input(actorID int64) CreateEntryInput {
	date, _ := time.Parse(time.DateOnly, r.Date)
	return CreateEntryInput{
		CompanyID:       r.CompanyID,
		Date:            date,
		Type:            EntryType(r.Type),
		ReferenceType:   r.ReferenceType,
		ReferenceID:     r.ReferenceID,
		ReferenceNumber: r.ReferenceNumber,
		Description:     r.Description,
		CreatedBy:       actorID,
		Lines:           toLineInputs(r.Lines),
	}
}

type updateRequest struct {
	Date            *string       `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description     *string       `json:"description" validate:"omitempty,max=1000"`
	ReferenceNumber *string       `json:"reference_number" validate:"omitempty,max=120"`
	Lines           []lineRequest `json:"lines" validate:"omitempty,min=2,dive"`
}

func (r updateRequest) input() UpdateEntryInput {
	in := UpdateEntryInput{
		Description:     r.Description,
		ReferenceNumber: r.ReferenceNumber,
		Lines:           toLineInputs(r.Lines),
	}
	if r.Date != nil {
		d, _ := time.Parse(time.DateOnly, *r.Date)
		in.Date = &d
	}
	return in
}

type reverseRequest struct {
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description string  `json:"description" validate:"max=1000"`
}

type reverseByReferenceRequest struct {
	CompanyID     int64  `json:"company_id" validate:"required,gt=0"`
	ReferenceType string `json:"reference_type" validate:"required,max=50"`
	ReferenceID   string `json:"reference_id" validate:"required,max=120"`
}

// LineView is the JSON shape of a journal line.
type LineView struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"transaction_type"`
	Amount      decimal.Decimal `json:"amount"`
	DocumentRef string          `json:"document_ref,omitempty"`
	Position    int             `json:"position"`
}

// EntryView is the JSON shape of a journal entry.
type EntryView struct {
	ID              int64           `json:"id"`
	CompanyID       int64           `json:"company_id"`
	Number          string          `json:"entry_number"`
	Date            string          `json:"entry_date"`
	Type            string          `json:"entry_type"`
	ReferenceType   string          `json:"reference_type,omitempty"`
	ReferenceID     string          `json:"reference_id,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Description     string          `json:"description,omitempty"`
	TotalDebit      decimal.Decimal `json:"total_debit"`
	TotalCredit     decimal.Decimal `json:"total_credit"`
	IsPosted        bool            `json:"is_posted"`
	PostedAt        *time.Time      `json:"posted_at,omitempty"`
	ReversalOfID    *int64          `json:"reversal_of_id,omitempty"`
	ReversedByID    *int64          `json:"reversed_by_id,omitempty"`
	CreatedBy       int64           `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Lines           []LineView      `json:"lines,omitempty"`
}

// View converts an entry to its JSON shape.
func View(e JournalEntry) EntryView {
	v := EntryView{
		ID:              e.ID,
		CompanyID:       e.CompanyID,
		Number:          e.Number,
		Date:            e.Date.Format(time.DateOnly),
		Type:            string(e.Type),
		ReferenceType:   e.ReferenceType,
		ReferenceID:     e.ReferenceID,
		ReferenceNumber: e.ReferenceNumber,
		Description:     e.Description,
		TotalDebit:      e.TotalDebit,
		TotalCredit:     e.TotalCredit,
		IsPosted:        e.IsPosted,
		PostedAt:        e.PostedAt,
		ReversalOfID:    e.ReversalOfID,
		ReversedByID:    e.ReversedByID,
		CreatedBy:       e.CreatedBy,
		CreatedAt:       e.CreatedAt,
	}
	for _, l := range e.Lines {
		v.Lines = append(v.Lines, LineView{
			ID:          l.ID,
			AccountID:   l.AccountID,
			Description: l.Description,
			Type:        string(l.Type),
			Amount:      l.Amount,
			DocumentRef: l.DocumentRef,
			Position:    l.Position,
		})
	}
	return v
}

type reversalView struct {
	Mode     string     `json:"mode"`
	Deleted  bool       `json:"deleted"`
	Original EntryView  `json:"original"`
	Reversal *EntryView `json:"reversal,omitempty"`
}

func viewReversal(res ReversalResult) reversalView {
	out := reversalView{Mode: string(res.Mode), Deleted: res.Deleted, Original: View(res.Original)}
	if res.Reversal != nil {
		rv := View(*res.Reversal)
		out.Reversal = &rv
	}
	return out
}
