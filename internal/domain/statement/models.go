// Package statement defines the core entities produced by the ingestion
// pipeline: parsed bank statements, their transactions, and analyses.
package statement

import (
	"time"

	"github.com/shopspring/decimal"
)

// FileType identifies how an uploaded document is parsed.
type FileType string

const (
	FileTypeCSV FileType = "csv"
	FileTypePDF FileType = "pdf"
)

// Amount is an optional decimal value. The zero value is absent, which is
// distinct from zero: an empty debit column stays absent, a "0,00" column
// parses to a present zero. Absent amounts marshal as JSON null.
type Amount struct {
	dec   decimal.Decimal
	valid bool
}

// AmountFrom wraps a decimal into a present Amount.
func AmountFrom(d decimal.Decimal) Amount {
	return Amount{dec: d, valid: true}
}

// AmountFromString parses a canonical dot-decimal string. Intended for
// fixtures and tests; the parser goes through the locale rules instead.
func AmountFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return AmountFrom(d), nil
}

// Valid reports whether the amount is present.
func (a Amount) Valid() bool {
	return a.valid
}

// Decimal returns the underlying value; zero when absent.
func (a Amount) Decimal() decimal.Decimal {
	return a.dec
}

// Equal treats two absent amounts as equal and compares values otherwise.
func (a Amount) Equal(b Amount) bool {
	if a.valid != b.valid {
		return false
	}
	if !a.valid {
		return true
	}
	return a.dec.Equal(b.dec)
}

func (a Amount) String() string {
	if !a.valid {
		return ""
	}
	return a.dec.String()
}

// MarshalJSON renders a raw JSON number, or null when absent.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.valid {
		return []byte("null"), nil
	}
	return []byte(a.dec.String()), nil
}

// UnmarshalJSON accepts a JSON number or null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Amount{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = Amount{dec: d, valid: true}
	return nil
}

// Transaction is one ledger entry from a statement's transaction table.
// ID is 1-based within the parent statement and omitted when the row was
// persisted before identifiers were introduced.
type Transaction struct {
	ID          int    `json:"id,omitempty"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Debit       Amount `json:"debit"`
	Credit      Amount `json:"credit"`
}

// Metadata holds the optional free-text fields extracted from a statement
// header. Every field is independently optional; absence is valid.
type Metadata struct {
	AccountHolder string `json:"account_holder,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	Balance       string `json:"balance,omitempty"`
	BalanceDate   string `json:"balance_date,omitempty"`
	PeriodStart   string `json:"period_start,omitempty"`
	PeriodEnd     string `json:"period_end,omitempty"`
}

// IsZero reports whether no metadata field was extracted.
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}

// Statement is the durable entity produced by a successful parse. A
// persisted statement always carries at least one transaction (tabular) or
// a non-empty raw text (paginated).
type Statement struct {
	ID           int64         `json:"id"`
	Filename     string        `json:"filename"`
	FileType     FileType      `json:"file_type"`
	RawText      string        `json:"raw_text"`
	Metadata     Metadata      `json:"metadata"`
	Transactions []Transaction `json:"transactions"`
	UploadedAt   time.Time     `json:"uploaded_at"`
}

// Summary is the list-view projection of a statement.
type Summary struct {
	ID               int64     `json:"id"`
	Filename         string    `json:"filename"`
	FileType         FileType  `json:"file_type"`
	TransactionCount int       `json:"transaction_count"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// Analysis is one generated report over a statement.
type Analysis struct {
	ID          int64     `json:"id"`
	StatementID int64     `json:"statement_id"`
	Prompt      string    `json:"prompt"`
	Response    string    `json:"response"`
	CreatedAt   time.Time `json:"created_at"`
}
