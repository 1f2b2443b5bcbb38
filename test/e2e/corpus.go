// Package e2e runs the full search pipeline over a realistic record corpus.
package e2e

import (
	"fmt"
	"time"

	"github.com/opexhub/ledgerfind/internal/models"
)

// Ref identifies a corpus record in test expectations.
type Ref struct {
	Kind models.Kind
	ID   int64
}

// QueryCase is one natural language query with the records it must surface.
type QueryCase struct {
	Description string
	Query       string
	Expected    []string
	// Exact requires the result set to contain nothing but Expected.
	Exact bool
}

// Corpus is a set of records plus query test cases keyed by fixture name.
type Corpus struct {
	Users    map[string]*models.User
	Expenses map[string]*models.Expense
	Claims   map[string]*models.TaxClaim
	Cases    []QueryCase
}

// RefKey renders a kind/id pair the way test expectations name records.
func RefKey(kind models.Kind, id int64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

// BuildCorpus returns the fixture corpus. Dates use the current year because
// month queries without an explicit year resolve to it.
func BuildCorpus() *Corpus {
	year := time.Now().Year()
	date := func(month time.Month, day int) time.Time {
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}

	c := &Corpus{
		Users: map[string]*models.User{
			"gaurav": {Username: "gaurav", Email: "gaurav@example.com", FullName: "Gaurav Sharma"},
			"priya":  {Username: "priya", Email: "priya@example.com", FullName: "Priya Patel"},
		},
		Expenses: map[string]*models.Expense{
			"petrol-dec": {
				Date: date(time.December, 5), Amount: 1500,
				Label: "Petrol", Item: "Fuel", Category: "Travel",
			},
			"petrol-nov": {
				Date: date(time.November, 18), Amount: 1200,
				Label: "Petrol", Item: "Fuel", Category: "Travel",
			},
			"cake": {
				Date: date(time.November, 12), Amount: 450,
				Label: "Chocolate Cake", Item: "Dessert", Category: "Food",
			},
			"software": {
				Date: date(time.October, 1), Amount: 5000,
				Label: "Software License", Item: "Subscription", Category: "Office",
				GSTEligible: true, GSTAmount: 762,
			},
			"lunch": {
				Date: date(time.September, 20), Amount: 250,
				Label: "Team Lunch", Item: "Thali", Category: "Food",
			},
			"taxi": {
				Date: date(time.December, 9), Amount: 320,
				Label: "Taxi", Item: "Cab Ride", Category: "Travel",
			},
			"birthday": {
				Date: date(time.September, 3), Amount: 2200,
				Label: "Birthday Party", Item: "Celebration", Category: "Events",
				Description: "Birthday for Gaurav",
			},
		},
		Claims: map[string]*models.TaxClaim{
			"dominos": {
				Vendor: "Dominos", Amount: 1180, Category: "Food",
				GSTRate: 18, GSTAmount: 180,
			},
		},
	}

	c.Cases = []QueryCase{
		{
			Description: "specific item returns every matching record and nothing else",
			Query:       "petrol expenses",
			Expected:    []string{"petrol-dec", "petrol-nov"},
			Exact:       true,
		},
		{
			Description: "month filter keeps only the matching month",
			Query:       "petrol in december",
			Expected:    []string{"petrol-dec"},
			Exact:       true,
		},
		{
			Description: "typo in the item still resolves",
			Query:       "pertol in november",
			Expected:    []string{"petrol-nov"},
			Exact:       true,
		},
		{
			Description: "tax query surfaces only eligible records",
			Query:       "gst claims",
			Expected:    []string{"software", "dominos"},
			Exact:       true,
		},
		{
			Description: "item learned from storage vocabulary",
			Query:       "cake",
			Expected:    []string{"cake"},
			Exact:       true,
		},
		{
			Description: "taxi must not trip the tax classifier",
			Query:       "taxi in december",
			Expected:    []string{"taxi"},
			Exact:       true,
		},
		{
			Description: "person directed query pins one record",
			Query:       "birthday for gaurav",
			Expected:    []string{"birthday"},
			Exact:       true,
		},
	}
	return c
}
