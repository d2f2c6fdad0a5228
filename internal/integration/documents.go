package integration

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// BillStatus is the lifecycle of a supplier bill.
type BillStatus string

const (
	BillDraft     BillStatus = "DRAFT"
	BillApproved  BillStatus = "APPROVED"
	BillPaid      BillStatus = "PAID"
	BillCancelled BillStatus = "CANCELLED"
)

// InvoiceStatus is the lifecycle of a sales invoice.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoiceIssued    InvoiceStatus = "ISSUED"
	InvoicePaid      InvoiceStatus = "PAID"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// PaymentStatus is the lifecycle of an outgoing payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentVoided    PaymentStatus = "VOIDED"
)

// ReceiptStatus is the lifecycle of an incoming receipt.
type ReceiptStatus string

const (
	ReceiptPending  ReceiptStatus = "PENDING"
	ReceiptReceived ReceiptStatus = "RECEIVED"
	ReceiptVoided   ReceiptStatus = "VOIDED"
)

// ReturnStatus is the lifecycle of a purchase or sales return.
type ReturnStatus string

const (
	ReturnDraft     ReturnStatus = "DRAFT"
	ReturnCompleted ReturnStatus = "COMPLETED"
	ReturnCancelled ReturnStatus = "CANCELLED"
)

// PaymentMethod picks the money account of a payment or receipt.
type PaymentMethod string

const (
	MethodCash PaymentMethod = "CASH"
	MethodBank PaymentMethod = "BANK"
)

// DocumentLine is a priced line of a bill, invoice or return.
type DocumentLine struct {
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// Total sums the rounded line amounts.
func Total(lines []DocumentLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(monetary(l.Qty, l.UnitCost))
	}
	return total
}

// Bill is a supplier bill. Inventory bills debit inventory instead of expense.
type Bill struct {
	ID        int64          `json:"id"`
	CompanyID int64          `json:"company_id"`
	Number    string         `json:"number"`
	Date      time.Time      `json:"date"`
	Status    BillStatus     `json:"status"`
	Inventory bool           `json:"inventory"`
	Lines     []DocumentLine `json:"lines"`
}

// Invoice is a sales invoice.
type Invoice struct {
	ID        int64          `json:"id"`
	CompanyID int64          `json:"company_id"`
	Number    string         `json:"number"`
	Date      time.Time      `json:"date"`
	Status    InvoiceStatus  `json:"status"`
	Lines     []DocumentLine `json:"lines"`
}

// Payment settles a bill.
type Payment struct {
	ID        int64           `json:"id"`
	CompanyID int64           `json:"company_id"`
	BillID    int64           `json:"bill_id"`
	Number    string          `json:"number"`
	Date      time.Time       `json:"date"`
	Status    PaymentStatus   `json:"status"`
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
}

// Receipt settles an invoice.
type Receipt struct {
	ID        int64           `json:"id"`
	CompanyID int64           `json:"company_id"`
	InvoiceID int64           `json:"invoice_id"`
	Number    string          `json:"number"`
	Date      time.Time       `json:"date"`
	Status    ReceiptStatus   `json:"status"`
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
}

// PurchaseReturn sends goods back against a bill.
type PurchaseReturn struct {
	ID        int64          `json:"id"`
	CompanyID int64          `json:"company_id"`
	BillID    int64          `json:"bill_id"`
	Number    string         `json:"number"`
	Date      time.Time      `json:"date"`
	Status    ReturnStatus   `json:"status"`
	Inventory bool           `json:"inventory"`
	Lines     []DocumentLine `json:"lines"`
}

// SalesReturn takes goods back against an invoice.
type SalesReturn struct {
	ID        int64          `json:"id"`
	CompanyID int64          `json:"company_id"`
	InvoiceID int64          `json:"invoice_id"`
	Number    string         `json:"number"`
	Date      time.Time      `json:"date"`
	Status    ReturnStatus   `json:"status"`
	Lines     []DocumentLine `json:"lines"`
}

// Reference types recorded on journal entries.
const (
	RefBill           = "BILL"
	RefInvoice        = "INVOICE"
	RefPayment        = "PAYMENT"
	RefReceipt        = "RECEIPT"
	RefPurchaseReturn = "PURCHASE_RETURN"
	RefSalesReturn    = "SALES_RETURN"
)

// documentRef is the sub-ledger key that aging nets lines by.
func documentRef(refType string, id int64) string {
	return fmt.Sprintf("%s:%d", refType, id)
}

var (
	billFlow = map[BillStatus][]BillStatus{
		BillDraft:    {BillApproved, BillCancelled},
		BillApproved: {BillPaid, BillCancelled},
	}
	invoiceFlow = map[InvoiceStatus][]InvoiceStatus{
		InvoiceDraft:  {InvoiceIssued, InvoiceCancelled},
		InvoiceIssued: {InvoicePaid, InvoiceCancelled},
	}
	paymentFlow = map[PaymentStatus][]PaymentStatus{
		PaymentPending:   {PaymentCompleted, PaymentVoided},
		PaymentCompleted: {PaymentVoided},
	}
	receiptFlow = map[ReceiptStatus][]ReceiptStatus{
		ReceiptPending:  {ReceiptReceived, ReceiptVoided},
		ReceiptReceived: {ReceiptVoided},
	}
	returnFlow = map[ReturnStatus][]ReturnStatus{
		ReturnDraft:     {ReturnCompleted, ReturnCancelled},
		ReturnCompleted: {ReturnCancelled},
	}
)

func transition[S ~string](flow map[S][]S, from, to S) error {
	if !slices.Contains(flow[from], to) {
		return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidStatus, from, to)
	}
	return nil
}
