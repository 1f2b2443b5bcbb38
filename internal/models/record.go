// Package models defines core data structures for records, queries, and search results.
package models

import "time"

// Kind identifies the record variant a search hit or embedding refers to.
type Kind string

const (
	KindExpense  Kind = "expense"
	KindTaxClaim Kind = "tax_claim"
)

// Valid reports whether k is a known record kind.
func (k Kind) Valid() bool {
	return k == KindExpense || k == KindTaxClaim
}

// Record is implemented by every searchable record variant. New kinds only
// need to implement this interface; the ranking engine's core loop does not
// change.
type Record interface {
	RecordKind() Kind
	RecordID() int64
	Owner() int64
	// SearchText returns the canonical string the record is embedded under.
	SearchText() string
	// MatchText returns the lowercased text lexical signals are matched against.
	MatchText() string
	// ItemText returns the lowercased label/item text used for strict item filtering.
	ItemText() string
	// OccurredAt returns the date used for strict month/year filtering.
	OccurredAt() time.Time
	// TaxEligible reports whether the record participates in tax-intent queries.
	TaxEligible() bool
}

// Expense is a single expense entry.
type Expense struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	UserName    string    `json:"user_name,omitempty" db:"-"`
	Date        time.Time `json:"date" db:"date"`
	Amount      float64   `json:"amount" db:"amount"`
	Label       string    `json:"label" db:"label"`
	Item        string    `json:"item" db:"item"`
	Category    string    `json:"category" db:"category"`
	Description string    `json:"description,omitempty" db:"description"`
	Status      string    `json:"status" db:"status"`
	GSTEligible bool      `json:"gst_eligible" db:"gst_eligible"`
	GSTAmount   float64   `json:"gst_amount" db:"gst_amount"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// RecordKind returns KindExpense.
func (e *Expense) RecordKind() Kind { return KindExpense }

// RecordID returns the expense ID.
func (e *Expense) RecordID() int64 { return e.ID }

// Owner returns the owning user ID.
func (e *Expense) Owner() int64 { return e.UserID }

// OccurredAt returns the expense date.
func (e *Expense) OccurredAt() time.Time { return e.Date }

// TaxEligible reports whether the expense is GST-eligible or carries a GST amount.
func (e *Expense) TaxEligible() bool { return e.GSTEligible || e.GSTAmount > 0 }

// TaxClaim is a GST claim filed against a vendor invoice.
type TaxClaim struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	UserName  string    `json:"user_name,omitempty" db:"-"`
	Vendor    string    `json:"vendor" db:"vendor"`
	Amount    float64   `json:"amount" db:"amount"`
	Category  string    `json:"category" db:"category"`
	GSTRate   float64   `json:"gst_rate" db:"gst_rate"`
	GSTAmount float64   `json:"gst_amount" db:"gst_amount"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RecordKind returns KindTaxClaim.
func (c *TaxClaim) RecordKind() Kind { return KindTaxClaim }

// RecordID returns the claim ID.
func (c *TaxClaim) RecordID() int64 { return c.ID }

// Owner returns the owning user ID.
func (c *TaxClaim) Owner() int64 { return c.UserID }

// OccurredAt returns the claim creation time; claims carry no separate expense date.
func (c *TaxClaim) OccurredAt() time.Time { return c.CreatedAt }

// TaxEligible always reports true; a GST claim is tax-relevant by definition.
func (c *TaxClaim) TaxEligible() bool { return true }

// User is a record owner. Only the fields search needs are kept here.
type User struct {
	ID       int64  `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Email    string `json:"email" db:"email"`
	FullName string `json:"full_name" db:"full_name"`
}
