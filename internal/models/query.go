package models

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks caller-contract violations in a search request.
var ErrInvalidRequest = errors.New("invalid search request")

// SearchRequest is a search call with optional hard filters.
type SearchRequest struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit,omitempty"`
	UserID    int64    `json:"user_id,omitempty"`
	MinAmount *float64 `json:"min_amount,omitempty"`
	MaxAmount *float64 `json:"max_amount,omitempty"`
}

// Validate checks caller-contract fields and resolves the limit against the
// engine's configured default and maximum. A negative limit is a contract
// violation; an empty query is not an error (the engine answers it with zero
// results).
func (r *SearchRequest) Validate(defaultLimit, maxLimit int) error {
	if r.Limit < 0 {
		return fmt.Errorf("%w: limit cannot be negative: %d", ErrInvalidRequest, r.Limit)
	}
	if r.Limit == 0 {
		r.Limit = defaultLimit
	}
	if r.Limit > maxLimit {
		r.Limit = maxLimit
	}
	if r.MinAmount != nil && r.MaxAmount != nil && *r.MinAmount > *r.MaxAmount {
		return fmt.Errorf("%w: min_amount %v exceeds max_amount %v", ErrInvalidRequest, *r.MinAmount, *r.MaxAmount)
	}
	return nil
}
