package query

// staticVocabulary is the fixed domain vocabulary used for spelling
// correction. The per-query augmented vocabulary extends it with terms
// observed in storage; when augmentation fails, correction degrades to this
// list alone.
var staticVocabulary = []string{
	"petrol", "diesel", "food", "lunch", "dinner", "breakfast", "travel",
	"taxi", "cab", "uber", "ola", "hotel", "transport", "fuel", "gas",
	"restaurant", "cafe", "coffee", "snacks", "groceries", "stationery",
	"office", "supplies", "equipment", "maintenance", "repair", "service",
	"internet", "phone", "mobile", "utility", "electricity", "water",
	"rent", "salary", "medical", "medicine", "doctor", "hospital",
	"insurance", "premium", "subscription", "software", "license",
	"training", "workshop", "seminar", "conference", "meeting",
	"entertainment", "movie", "cinema", "parking", "toll", "ticket",
	"flight", "train", "bus", "metro", "shopping", "gift", "donation",
	"gst", "tax", "vat", "rate", "amount", "cost", "price", "bill",
	"invoice", "receipt", "total", "sum", "expense", "expenses", "claim",
	"vendor", "eligible",
}

// typoCorrections maps known domain misspellings directly to their
// correction. The explicit table is consulted before any fuzzy matching, so
// short or ambiguous tokens never depend on a similarity ratio.
var typoCorrections = map[string]string{
	"pertol":  "petrol",
	"petrole": "petrol",
	"desel":   "diesel",
	"expence": "expense",
	"recipt":  "receipt",
}

// stopwords are interrogative/filler words dropped from the keyword set.
// "for" and "in" are kept because they signal relationships ("for Gaurav",
// "in nov").
var stopwords = map[string]struct{}{
	"what": {}, "is": {}, "are": {}, "was": {}, "were": {}, "the": {},
	"a": {}, "an": {}, "of": {}, "to": {}, "on": {}, "at": {}, "with": {},
	"by": {}, "from": {}, "about": {}, "how": {}, "much": {}, "did": {},
	"i": {}, "spend": {}, "show": {}, "me": {}, "find": {}, "search": {},
	"list": {},
}

// monthNames maps month name tokens (full and abbreviated) to month numbers.
var monthNames = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

// taxTerms classify a query as tax-related when any of them appears as a
// token of the normalized query. Token equality is deliberate: "taxi" must
// not trip the tax classifier.
var taxTerms = map[string]struct{}{
	"gst": {}, "tax": {}, "vat": {},
}

// commonWords are keywords that never count as a specific item: surviving
// keywords outside this set switch several downstream filters to strict.
var commonWords = map[string]struct{}{
	"expense": {}, "expenses": {}, "claim": {}, "claims": {}, "in": {},
	"for": {}, "the": {}, "a": {}, "an": {}, "at": {}, "of": {}, "on": {},
	"with": {}, "from": {},
}

func isStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

func isDateWord(w string) bool {
	_, ok := monthNames[w]
	return ok
}

func isCommonWord(w string) bool {
	if _, ok := commonWords[w]; ok {
		return true
	}
	return isDateWord(w)
}
