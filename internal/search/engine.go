// Package search implements hybrid ranked retrieval over expenses and tax
// claims. Candidates come from the vector index, then strict filters and
// lexical boosts shape the final ordering.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opexhub/ledgerfind/internal/embedding"
	"github.com/opexhub/ledgerfind/internal/models"
	"github.com/opexhub/ledgerfind/internal/query"
	"github.com/opexhub/ledgerfind/internal/storage"
	"github.com/opexhub/ledgerfind/internal/vector"
)

// Candidate pool multipliers. Specific item queries cast a wider net because
// the strict item filter discards most of the pool.
const (
	poolFactor         = 5
	poolFactorSpecific = 10
)

// Result limits used when no config is wired in.
const (
	defaultLimit    = 10
	defaultMaxLimit = 100
)

// ErrNotReady is returned when the vector index has not been built yet.
var ErrNotReady = vector.ErrNotReady

// Engine answers search requests.
type Engine struct {
	store      storage.Store
	embedder   embedding.Embedder
	index      *vector.SlotIndex
	normalizer *query.Normalizer
	logger     *zap.Logger

	defaultLimit int
	maxLimit     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLimits overrides the default and maximum result counts. Non-positive
// values keep the built-in limits.
func WithLimits(def, max int) Option {
	return func(e *Engine) {
		if def > 0 {
			e.defaultLimit = def
		}
		if max > 0 {
			e.maxLimit = max
		}
	}
}

// NewEngine creates a search engine over the given store, embedder, vector
// index and query normalizer.
func NewEngine(store storage.Store, embedder embedding.Embedder, index *vector.SlotIndex, normalizer *query.Normalizer, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		embedder:   embedder,
		index:      index,
		normalizer: normalizer,
		logger:     zap.NewNop(),

		defaultLimit: defaultLimit,
		maxLimit:     defaultMaxLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs the full pipeline: normalize, embed, retrieve candidates,
// filter, boost, bucket and deduplicate.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()

	if err := req.Validate(e.defaultLimit, e.maxLimit); err != nil {
		return nil, err
	}

	resp := &models.SearchResponse{Query: req.Query, Results: []models.SearchResult{}}
	if strings.TrimSpace(req.Query) == "" {
		resp.ElapsedMS = float64(time.Since(start).Microseconds()) / 1000
		return resp, nil
	}

	qc := e.normalizer.Normalize(ctx, req.Query)
	e.logger.Debug("normalized query",
		zap.String("raw", qc.Raw),
		zap.String("normalized", qc.Normalized),
		zap.Strings("keywords", qc.Keywords),
		zap.Strings("persons", qc.PersonNames),
		zap.Bool("tax", qc.TaxQuery),
		zap.Int("month", qc.Month))

	vec, err := e.embedder.Embed(ctx, qc.Normalized)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	k := req.Limit * poolFactor
	if qc.HasSpecificItem() {
		k = req.Limit * poolFactorSpecific
	}
	hits, err := e.index.Search(vec, k)
	if err != nil {
		if errors.Is(err, vector.ErrNotReady) {
			return nil, ErrNotReady
		}
		return nil, fmt.Errorf("searching vector index: %w", err)
	}

	buckets := make([][]*candidate, bucketCount)
	for _, hit := range hits {
		rec, err := e.store.GetRecord(ctx, hit.Kind, hit.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Stale embedding for a deleted record.
				continue
			}
			e.logger.Warn("loading candidate record failed",
				zap.String("kind", string(hit.Kind)),
				zap.Int64("id", hit.ID),
				zap.Error(err))
			continue
		}
		c, ok := scoreCandidate(qc, rec, hit.Similarity, req)
		if !ok {
			continue
		}
		buckets[c.bucket] = append(buckets[c.bucket], c)
	}

	for _, bucket := range buckets {
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].score > bucket[j].score
		})
	}

	seen := make(map[vector.Ref]bool)
	var ordered []*candidate
	for _, bucket := range buckets {
		for _, c := range bucket {
			ref := vector.Ref{Kind: c.rec.RecordKind(), ID: c.rec.RecordID()}
			if seen[ref] {
				continue
			}
			seen[ref] = true
			ordered = append(ordered, c)
		}
	}

	// Specific item queries return every match; the caller asked for a
	// thing, not a page of things.
	if !qc.HasSpecificItem() && len(ordered) > req.Limit {
		ordered = ordered[:req.Limit]
	}

	for _, c := range ordered {
		resp.Results = append(resp.Results, resultFromCandidate(c))
	}
	resp.Total = len(resp.Results)
	resp.ElapsedMS = float64(time.Since(start).Microseconds()) / 1000
	return resp, nil
}
