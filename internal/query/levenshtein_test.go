package query

import (
	"math"
	"testing"
)

func TestDamerauLevenshteinDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected int
	}{
		// Identical strings
		{"identical empty", "", "", 0},
		{"identical word", "petrol", "petrol", 0},

		// Empty string cases
		{"empty a", "", "food", 4},
		{"empty b", "food", "", 4},

		// Single edits
		{"one substitution", "cat", "bat", 1},
		{"one insertion", "cat", "cart", 1},
		{"one deletion", "cart", "cat", 1},

		// Transpositions count as a single edit
		{"transposition ab-ba", "ab", "ba", 1},
		{"pertol to petrol", "pertol", "petrol", 1},
		{"desel to diesel", "desel", "diesel", 1},

		// Domain typos
		{"expence to expense", "expence", "expense", 1},
		{"recipt to receipt", "recipt", "receipt", 1},
		{"dinner to diner", "dinner", "diner", 1},

		// Multiple differences
		{"kitten to sitting", "kitten", "sitting", 3},
		{"unrelated words", "petrol", "cinema", 6},

		// Unicode
		{"unicode substitution", "café", "cafe", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DamerauLevenshteinDistance(tt.a, tt.b)
			if result != tt.expected {
				t.Errorf("DamerauLevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, result, tt.expected)
			}
			reverse := DamerauLevenshteinDistance(tt.b, tt.a)
			if result != reverse {
				t.Errorf("DamerauLevenshteinDistance is not symmetric: (%q,%q)=%d, (%q,%q)=%d",
					tt.a, tt.b, result, tt.b, tt.a, reverse)
			}
		})
	}
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{"identical", "petrol", "petrol", 1.0},
		{"both empty", "", "", 1.0},
		{"pertol petrol", "pertol", "petrol", 1.0 - 1.0/6.0},
		{"completely different", "ab", "xy", 0.0},
		{"one empty", "", "food", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SimilarityRatio(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("SimilarityRatio(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestSimilarityRatioAboveCorrectionThreshold(t *testing.T) {
	// The fuzzy correction threshold is 0.70; the canonical transposition
	// typo must clear it.
	if got := SimilarityRatio("pertol", "petrol"); got < 0.70 {
		t.Errorf("SimilarityRatio(pertol, petrol) = %f, want >= 0.70", got)
	}
}
