package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents one bank statement entry.
//
// The source fields (dates, bank description, stan id, amounts, balance)
// are set once at extraction and treated as immutable facts from the
// statement. The annotation fields (Description, Category, OriginatorName,
// GroupName, IsTaxes) are editable after the fact, by the user or by the
// annotation collaborator.
type Transaction struct {
	ID int64 `json:"id"`

	BookingDateTime time.Time `json:"booking_date_time"`
	ValueDateTime   time.Time `json:"value_date_time"`

	// DayOrderID is the 1-based position among entries sharing the same
	// booking calendar day, assigned in statement file order.
	// (BookingDateTime, DayOrderID) is the deduplication key.
	DayOrderID int `json:"day_order_id"`

	BankStatementDescription string              `json:"bank_statement_description"`
	StanID                   *string             `json:"stan_id"`
	Debit                    decimal.NullDecimal `json:"debit"`
	Credit                   decimal.NullDecimal `json:"credit"`
	AvailableBalance         decimal.Decimal     `json:"available_balance"`

	Description    *string `json:"description"`
	Category       *string `json:"category"`
	OriginatorName *string `json:"originator_name"`
	GroupName      *string `json:"group_name"`
	IsTaxes        bool    `json:"is_taxes"`

	// RelatedTaxes holds tax-flagged entries sharing this entry's StanID.
	// Populated only by ledger reads with tax nesting enabled.
	RelatedTaxes []Transaction `json:"related_taxes,omitempty"`
}

// Annotated reports whether both editable description and category are set.
func (t *Transaction) Annotated() bool {
	return t.Description != nil && t.Category != nil
}
