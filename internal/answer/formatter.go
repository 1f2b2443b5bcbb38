// Package answer turns ranked search results into a short natural language
// summary.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/opexhub/ledgerfind/internal/models"
)

// Formatter produces a human readable answer for a search response.
type Formatter interface {
	Format(ctx context.Context, resp *models.SearchResponse) (string, error)
}

// PlainFormatter builds an answer from the results alone, with no external
// calls. It is the fallback when no chat model is configured or the model
// call fails.
type PlainFormatter struct{}

// NewPlainFormatter creates a PlainFormatter.
func NewPlainFormatter() *PlainFormatter {
	return &PlainFormatter{}
}

// Format summarizes the top results as plain text.
func (f *PlainFormatter) Format(_ context.Context, resp *models.SearchResponse) (string, error) {
	if resp == nil || len(resp.Results) == 0 {
		return fmt.Sprintf("No records matched %q.", queryOf(resp)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d record(s) for %q:\n", resp.Total, resp.Query)
	max := len(resp.Results)
	if max > 5 {
		max = 5
	}
	for _, r := range resp.Results[:max] {
		label := r.Label
		if r.Item != "" && r.Item != label {
			label = label + " (" + r.Item + ")"
		}
		fmt.Fprintf(&b, "- %s: %.2f rupees", label, r.Amount)
		if r.GSTAmount > 0 {
			fmt.Fprintf(&b, " incl. %.2f GST", r.GSTAmount)
		}
		if r.Category != "" {
			fmt.Fprintf(&b, ", %s", r.Category)
		}
		b.WriteString("\n")
	}
	if resp.Total > max {
		fmt.Fprintf(&b, "...and %d more.", resp.Total-max)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func queryOf(resp *models.SearchResponse) string {
	if resp == nil {
		return ""
	}
	return resp.Query
}
