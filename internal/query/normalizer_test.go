package query

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNormalizeSpellingCorrection(t *testing.T) {
	n := NewNormalizer()
	ctx := context.Background()

	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		// Explicit typo table
		{"pertol typo", "pertol expenses", "petrol expenses"},
		{"petrole typo", "petrole bill", "petrol bill"},
		{"expence typo", "food expence", "food expense"},

		// Exact vocabulary matches are kept as-is
		{"already correct", "petrol expenses", "petrol expenses"},
		{"gst kept", "gst claims", "gst claims"},

		// Fuzzy correction against the vocabulary
		{"petrool fuzzy", "petrool expenses", "petrol expenses"},
		{"restarant fuzzy", "restarant bill", "restaurant bill"},

		// Short tokens never go through fuzzy matching
		{"short token kept", "ola ride", "ola ride"},
		{"gsr not corrected to gas", "gsr", "gsr"},

		// Unknown long words with no close match are kept
		{"unknown word kept", "zxqwvutsr expenses", "zxqwvutsr expenses"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qc := n.Normalize(ctx, tt.raw)
			if qc.Normalized != tt.expected {
				t.Errorf("Normalize(%q).Normalized = %q, want %q", tt.raw, qc.Normalized, tt.expected)
			}
		})
	}
}

func TestNormalizeExtraction(t *testing.T) {
	// A vocabulary source mirrors production: item and name words observed
	// in storage keep domain words like "cake" from drifting to near
	// neighbours like "cafe".
	n := NewNormalizer(WithVocabSource(&stubVocabSource{
		terms: []string{"Chocolate Cake", "Petrol"},
		names: []string{"Gaurav Sharma"},
	}))
	ctx := context.Background()

	containsFold := func(names []string, want string) bool {
		for _, p := range names {
			if strings.EqualFold(p, want) {
				return true
			}
		}
		return false
	}

	t.Run("person name from for-clause", func(t *testing.T) {
		qc := n.Normalize(ctx, "chocolate cake for Gaurav")
		if !containsFold(qc.PersonNames, "gaurav") {
			t.Errorf("PersonNames = %v, want to contain Gaurav", qc.PersonNames)
		}
	})

	t.Run("lowercase name after for", func(t *testing.T) {
		qc := n.Normalize(ctx, "cake for gaurav")
		if !containsFold(qc.PersonNames, "gaurav") {
			t.Errorf("PersonNames = %v, want to contain Gaurav", qc.PersonNames)
		}
	})

	t.Run("month from name", func(t *testing.T) {
		qc := n.Normalize(ctx, "petrol in december")
		if qc.Month != 12 {
			t.Errorf("Month = %d, want 12", qc.Month)
		}
	})

	t.Run("month from abbreviation", func(t *testing.T) {
		qc := n.Normalize(ctx, "expenses in nov")
		if qc.Month != 11 {
			t.Errorf("Month = %d, want 11", qc.Month)
		}
	})

	t.Run("month from bare number", func(t *testing.T) {
		qc := n.Normalize(ctx, "expenses in 3")
		if qc.Month != 3 {
			t.Errorf("Month = %d, want 3", qc.Month)
		}
	})

	t.Run("no month", func(t *testing.T) {
		qc := n.Normalize(ctx, "petrol expenses")
		if qc.Month != 0 {
			t.Errorf("Month = %d, want 0", qc.Month)
		}
	})

	t.Run("explicit year", func(t *testing.T) {
		qc := n.Normalize(ctx, "petrol in december 2024")
		if qc.Year != 2024 {
			t.Errorf("Year = %d, want 2024", qc.Year)
		}
	})

	t.Run("year defaults to current", func(t *testing.T) {
		qc := n.Normalize(ctx, "petrol in december")
		if qc.Year != time.Now().Year() {
			t.Errorf("Year = %d, want %d", qc.Year, time.Now().Year())
		}
	})

	t.Run("keywords drop stopwords and date words", func(t *testing.T) {
		qc := n.Normalize(ctx, "how much did I spend on petrol in december")
		if len(qc.Keywords) != 1 || qc.Keywords[0] != "petrol" {
			t.Errorf("Keywords = %v, want [petrol]", qc.Keywords)
		}
	})

	t.Run("phrase before expense", func(t *testing.T) {
		qc := n.Normalize(ctx, "chocolate cake expenses")
		found := false
		for _, p := range qc.Phrases {
			if strings.Contains(p, "cake") {
				found = true
			}
		}
		if !found {
			t.Errorf("Phrases = %v, want a cake phrase", qc.Phrases)
		}
	})

	t.Run("quoted phrase", func(t *testing.T) {
		qc := n.Normalize(ctx, `find "office supplies" receipts`)
		found := false
		for _, p := range qc.Phrases {
			if p == "office supplies" {
				found = true
			}
		}
		if !found {
			t.Errorf("Phrases = %v, want to contain office supplies", qc.Phrases)
		}
	})
}

func TestNormalizeTaxClassification(t *testing.T) {
	n := NewNormalizer()
	ctx := context.Background()

	tests := []struct {
		raw  string
		want bool
	}{
		{"gst claims", true},
		{"tax eligible expenses", true},
		{"vat on invoices", true},
		{"taxi fare", false},
		{"gstn portal", false},
		{"petrol expenses", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			qc := n.Normalize(ctx, tt.raw)
			if qc.TaxQuery != tt.want {
				t.Errorf("Normalize(%q).TaxQuery = %t, want %t", tt.raw, qc.TaxQuery, tt.want)
			}
		})
	}
}

func TestNormalizeItemKeywords(t *testing.T) {
	n := NewNormalizer(WithVocabSource(&stubVocabSource{
		terms: []string{"Chocolate Cake"},
	}))
	ctx := context.Background()

	t.Run("concrete item detected", func(t *testing.T) {
		qc := n.Normalize(ctx, "cake expenses")
		if !qc.HasSpecificItem() {
			t.Fatal("expected a specific item query")
		}
		if len(qc.ItemKeywords) != 1 || qc.ItemKeywords[0] != "cake" {
			t.Errorf("ItemKeywords = %v, want [cake]", qc.ItemKeywords)
		}
	})

	t.Run("common words are not items", func(t *testing.T) {
		qc := n.Normalize(ctx, "show me all expenses")
		if qc.HasSpecificItem() {
			t.Errorf("ItemKeywords = %v, want none", qc.ItemKeywords)
		}
	})

	t.Run("tax terms are not items", func(t *testing.T) {
		qc := n.Normalize(ctx, "gst claims")
		if qc.HasSpecificItem() {
			t.Errorf("ItemKeywords = %v, want none for a tax query", qc.ItemKeywords)
		}
		if !qc.TaxQuery {
			t.Error("expected TaxQuery")
		}
	})
}

func TestNormalizeHasHints(t *testing.T) {
	n := NewNormalizer()
	ctx := context.Background()

	if !n.Normalize(ctx, "petrol expenses").HasHints() {
		t.Error("keyword query should have hints")
	}
	if n.Normalize(ctx, "what did the").HasHints() {
		t.Error("pure stopword query should have no hints")
	}
}

// stubVocabSource feeds controlled storage terms into vocabulary building.
type stubVocabSource struct {
	terms []string
	names []string
	err   error
}

func (s *stubVocabSource) DistinctTerms(context.Context) ([]string, error) {
	return s.terms, s.err
}

func (s *stubVocabSource) UserNames(context.Context) ([]string, error) {
	return s.names, s.err
}

func TestNormalizeVocabularyAugmentation(t *testing.T) {
	ctx := context.Background()

	t.Run("storage terms join the vocabulary", func(t *testing.T) {
		n := NewNormalizer(WithVocabSource(&stubVocabSource{terms: []string{"Biryani House"}}))
		qc := n.Normalize(ctx, "biryani expenses")
		if qc.Normalized != "biryani expenses" {
			t.Errorf("Normalized = %q, want biryani corrected via storage vocabulary", qc.Normalized)
		}
	})

	t.Run("source failure degrades to static vocabulary", func(t *testing.T) {
		n := NewNormalizer(WithVocabSource(&stubVocabSource{err: fmt.Errorf("db closed")}))
		qc := n.Normalize(ctx, "pertol expenses")
		if qc.Normalized != "petrol expenses" {
			t.Errorf("Normalized = %q, want petrol expenses", qc.Normalized)
		}
	})

	t.Run("term dictionary terms are corrected to", func(t *testing.T) {
		dict, err := NewBleveDictionary()
		if err != nil {
			t.Fatal(err)
		}
		defer dict.Close()
		if err := dict.IndexText("expense:1", "dominos pizza dinner"); err != nil {
			t.Fatal(err)
		}
		n := NewNormalizer(WithTermDictionary(dict))
		qc := n.Normalize(ctx, "dominoes bill")
		if qc.Normalized != "dominos bill" {
			t.Errorf("Normalized = %q, want dominos bill", qc.Normalized)
		}
	})
}
