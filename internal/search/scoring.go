package search

import (
	"strings"

	"github.com/opexhub/ledgerfind/internal/models"
	"github.com/opexhub/ledgerfind/internal/query"
)

// Boost factors applied on top of vector similarity. When several signals
// fire, the strongest one wins rather than compounding.
const (
	boostExactItem = 2.0
	boostPerson    = 1.5
	boostPhrase    = 1.4
	boostKeyword   = 1.3
	boostTax       = 1.3
	boostDate      = 1.2
)

// Score floors for candidates carried by similarity alone. Queries with
// extracted hints demand a higher floor because weak matches would otherwise
// crowd out the hinted results.
const (
	floorPlain  = 0.3
	floorHinted = 0.4
)

// Result buckets in presentation order. A date match combined with another
// signal outranks any signal alone, which outranks pure similarity; records
// admitted only through the tax filter trail everything else.
const (
	bucketDateSignal = iota
	bucketSignal
	bucketSimilarity
	bucketTax
	bucketCount
)

type candidate struct {
	rec        models.Record
	score      float64
	bucket     int
	matchPath  string
	exactItem  bool
	similarity float64
}

// scoreCandidate applies strict filters and boosts to a single record. The
// second return is false when the record is filtered out.
func scoreCandidate(qc *query.Context, rec models.Record, similarity float64, req *models.SearchRequest) (*candidate, bool) {
	if req.UserID != 0 && rec.Owner() != req.UserID {
		return nil, false
	}
	amount := recordAmount(rec)
	if req.MinAmount != nil && amount < *req.MinAmount {
		return nil, false
	}
	if req.MaxAmount != nil && amount > *req.MaxAmount {
		return nil, false
	}

	// Tax queries are strict: ineligible records never surface, no matter
	// how similar their text is.
	if qc.TaxQuery && !rec.TaxEligible() {
		return nil, false
	}

	exactItem := false
	if qc.HasSpecificItem() {
		itemText := rec.ItemText()
		for _, kw := range qc.ItemKeywords {
			if strings.Contains(itemText, kw) {
				exactItem = true
				break
			}
		}
		if !exactItem {
			return nil, false
		}
	}

	dateMatched := false
	if qc.Month != 0 {
		at := rec.OccurredAt()
		if int(at.Month()) != qc.Month || at.Year() != qc.Year {
			return nil, false
		}
		dateMatched = true
	}

	matchText := rec.MatchText()

	personMatched := false
	for _, name := range qc.PersonNames {
		if strings.Contains(matchText, strings.ToLower(name)) {
			personMatched = true
			break
		}
	}

	phraseMatched := false
	for _, phrase := range qc.Phrases {
		if strings.Contains(matchText, phrase) {
			phraseMatched = true
			break
		}
	}

	keywordMatched := false
	for _, kw := range qc.Keywords {
		if strings.Contains(matchText, kw) {
			keywordMatched = true
			break
		}
	}

	taxMatched := qc.TaxQuery && rec.TaxEligible()

	boost := 1.0
	if exactItem {
		boost = boostExactItem
	}
	if personMatched && boostPerson > boost {
		boost = boostPerson
	}
	if phraseMatched && boostPhrase > boost {
		boost = boostPhrase
	}
	if keywordMatched && boostKeyword > boost {
		boost = boostKeyword
	}
	if taxMatched && boostTax > boost {
		boost = boostTax
	}
	if dateMatched && boostDate > boost {
		boost = boostDate
	}

	score := similarity * boost
	if score > 1.0 {
		score = 1.0
	}

	// Exact item matches always survive; everything else must clear the
	// similarity floor.
	if !exactItem {
		floor := floorPlain
		if qc.HasHints() {
			floor = floorHinted
		}
		if score < floor {
			return nil, false
		}
	}

	signal := exactItem || personMatched || phraseMatched || keywordMatched

	c := &candidate{
		rec:        rec,
		score:      score,
		similarity: similarity,
		exactItem:  exactItem,
	}
	switch {
	case dateMatched && signal:
		c.bucket = bucketDateSignal
		c.matchPath = models.MatchDateSignal
	case signal || dateMatched:
		c.bucket = bucketSignal
		c.matchPath = models.MatchSignal
	case taxMatched:
		c.bucket = bucketTax
		c.matchPath = models.MatchTax
	default:
		c.bucket = bucketSimilarity
		c.matchPath = models.MatchSimilarity
	}
	return c, true
}

func recordAmount(rec models.Record) float64 {
	switch r := rec.(type) {
	case *models.Expense:
		return r.Amount
	case *models.TaxClaim:
		return r.Amount
	}
	return 0
}

func resultFromCandidate(c *candidate) models.SearchResult {
	res := models.SearchResult{
		Kind:      c.rec.RecordKind(),
		ID:        c.rec.RecordID(),
		Score:     c.score,
		MatchPath: c.matchPath,
	}
	switch r := c.rec.(type) {
	case *models.Expense:
		res.Label = r.Label
		res.Item = r.Item
		res.Amount = r.Amount
		res.GSTAmount = r.GSTAmount
		res.Category = r.Category
		res.Status = r.Status
	case *models.TaxClaim:
		res.Label = r.Vendor
		res.Amount = r.Amount
		res.GSTAmount = r.GSTAmount
		res.Category = r.Category
		res.Status = r.Status
	}
	return res
}
