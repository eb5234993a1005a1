package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptHeader holds the school identity printed at the top of a receipt.
type ReceiptHeader struct {
	SchoolName string `json:"school_name"`
	Address    string `json:"address,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// ReceiptLine is one fee line on a receipt.
type ReceiptLine struct {
	JournalEntryID string          `json:"journal_entry_id"`
	FeeMonth       string          `json:"fee_month,omitempty"`
	AmountDue      decimal.Decimal `json:"amount_due"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	Balance        decimal.Decimal `json:"balance"`
}

// Receipt is a value object composed from a payment at read time. It is
// not persisted; rendering and printing belong to the consumer.
type Receipt struct {
	Header           ReceiptHeader   `json:"header"`
	ReceiptNumber    string          `json:"receipt_number"`
	StudentID        string          `json:"student_id"`
	PaymentDate      time.Time       `json:"payment_date"`
	PaymentMethod    string          `json:"payment_method"`
	Reference        string          `json:"reference,omitempty"`
	Lines            []ReceiptLine   `json:"lines"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	PreviousBalance  decimal.Decimal `json:"previous_balance"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// BuildReceipt assembles the printable receipt for a payment.
func BuildReceipt(header ReceiptHeader, p *Payment) *Receipt {
	lines := make([]ReceiptLine, 0, len(p.Items))
	for _, item := range p.Items {
		lines = append(lines, ReceiptLine{
			JournalEntryID: item.JournalEntryID.String(),
			AmountDue:      item.AmountDue,
			AmountPaid:     item.AmountPaid,
			Balance:        item.RemainingBalance,
		})
	}

	ref := ""
	if p.TransactionReference != nil {
		ref = *p.TransactionReference
	}

	return &Receipt{
		Header:           header,
		ReceiptNumber:    p.ReceiptNumber,
		StudentID:        p.StudentID,
		PaymentDate:      p.PaymentDate,
		PaymentMethod:    p.PaymentMethod,
		Reference:        ref,
		Lines:            lines,
		TotalPaid:        p.TotalAmount,
		PreviousBalance:  p.PreviousBalance,
		RemainingBalance: p.RemainingBalance,
	}
}
