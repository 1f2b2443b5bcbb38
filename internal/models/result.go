package models

// Match path tags. They name how a result was admitted and order merge
// buckets; a date+signal match always ranks before a similarity-only match.
const (
	MatchDateSignal = "date+signal"
	MatchSignal     = "signal"
	MatchSimilarity = "similarity"
	MatchTax        = "tax"
)

// SearchResult is a single ranked hit. Score is the raw embedding similarity
// multiplied by the largest fired signal boost.
type SearchResult struct {
	Kind      Kind    `json:"type"`
	ID        int64   `json:"id"`
	Label     string  `json:"label"`
	Item      string  `json:"item"`
	Amount    float64 `json:"amount"`
	GSTAmount float64 `json:"gst_amount,omitempty"`
	Category  string  `json:"category"`
	Status    string  `json:"status"`
	Score     float64 `json:"similarity_score"`
	MatchPath string  `json:"match_path"`
}

// SearchResponse is the ordered result list for one query.
type SearchResponse struct {
	Query     string          `json:"query"`
	Results   []SearchResult  `json:"results"`
	Total     int             `json:"total_results"`
	ElapsedMS float64         `json:"execution_time_ms"`
}
