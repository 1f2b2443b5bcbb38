package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateVariants renders a date in several redundant formats so that queries
// phrased as "November", "Nov 2025", "11 2025" or "15 November" all land near
// the record in embedding space.
func dateVariants(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	parts := []string{
		t.Format("January 2006"),
		t.Format("Jan 2006"),
		t.Format("01 2006"),
		t.Format("02 January"),
	}
	return strings.Join(parts, " ")
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SearchText returns the canonical embedding text for an expense: label, item,
// category, redundant date renderings, amount with a currency word, optional
// description, and literal tax markers when the expense is GST-eligible.
func (e *Expense) SearchText() string {
	var b strings.Builder
	b.WriteString(e.Label)
	b.WriteString(" ")
	b.WriteString(e.Item)
	b.WriteString(" ")
	b.WriteString(e.Category)
	if ds := dateVariants(e.Date); ds != "" {
		b.WriteString(" ")
		b.WriteString(ds)
	}
	b.WriteString(" ")
	b.WriteString(formatAmount(e.Amount))
	b.WriteString(" rupees")
	if e.Description != "" {
		b.WriteString(" ")
		b.WriteString(e.Description)
	}
	if e.TaxEligible() {
		b.WriteString(" gst tax gst-eligible")
	}
	return b.String()
}

// MatchText returns the lowercased text lexical signals are checked against.
// It includes the owner's display name so person-directed queries can match.
func (e *Expense) MatchText() string {
	parts := []string{strings.ToLower(e.Label), strings.ToLower(e.Item), strings.ToLower(e.Category)}
	if e.Description != "" {
		parts = append(parts, strings.ToLower(e.Description))
	}
	if e.UserName != "" {
		parts = append(parts, strings.ToLower(e.UserName))
	}
	text := strings.Join(parts, " ")
	if e.TaxEligible() {
		text += " gst tax gst-eligible"
	}
	return text
}

// ItemText returns the label and item fields, lowercased, for strict item filtering.
func (e *Expense) ItemText() string {
	return strings.ToLower(e.Label) + " " + strings.ToLower(e.Item)
}

// SearchText returns the canonical embedding text for a tax claim: vendor,
// category, redundant date renderings, amounts, tax marker words, and the
// owner's display name so person-directed queries can match via the
// embedding channel.
func (c *TaxClaim) SearchText() string {
	var b strings.Builder
	b.WriteString(c.Vendor)
	b.WriteString(" ")
	b.WriteString(c.Category)
	if ds := dateVariants(c.CreatedAt); ds != "" {
		b.WriteString(" ")
		b.WriteString(ds)
	}
	b.WriteString(" ")
	b.WriteString(formatAmount(c.Amount))
	b.WriteString(" rupees gst tax vat")
	fmt.Fprintf(&b, " gst amount %s gst rate %s%%", formatAmount(c.GSTAmount), formatAmount(c.GSTRate))
	if c.UserName != "" {
		b.WriteString(" ")
		b.WriteString(c.UserName)
	}
	return b.String()
}

// MatchText returns the lowercased text lexical signals are checked against.
func (c *TaxClaim) MatchText() string {
	text := strings.ToLower(c.Vendor) + " " + strings.ToLower(c.Category) + " gst tax vat gst-eligible gst-claim"
	if c.UserName != "" {
		text += " " + strings.ToLower(c.UserName)
	}
	return text
}

// ItemText returns the vendor field, lowercased, for strict item filtering.
func (c *TaxClaim) ItemText() string {
	return strings.ToLower(c.Vendor)
}
