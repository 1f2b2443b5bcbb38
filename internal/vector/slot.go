package vector

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/opexhub/ledgerfind/internal/models"
)

// SlotIndex is an append-only in-memory vector index. Each inserted vector is
// assigned the next monotonically increasing slot, mapped to a record Ref.
// Slots are never removed or reused within a process lifetime; the whole index
// is rebuilt from durable embedding rows at startup.
//
// Appends are serialized by a single writer lock so slot assignment is
// race-free; searches proceed in parallel and may miss vectors inserted after
// the search began.
type SlotIndex struct {
	dimensions int

	mu      sync.RWMutex
	vectors [][]float32
	refs    []Ref
	ready   bool
}

// NewSlotIndex creates a slot index for vectors of the given dimension.
func NewSlotIndex(dimensions int) (*SlotIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &SlotIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
		refs:       make([]Ref, 0),
	}, nil
}

// Dimensions returns the configured vector dimension.
func (s *SlotIndex) Dimensions() int {
	return s.dimensions
}

// Add appends vec to the index under the next slot and records its record
// reference. A dimension mismatch means the embedding generator and the index
// were configured inconsistently and is reported as an error.
func (s *SlotIndex) Add(kind models.Kind, id int64, vec []float32) error {
	if len(vec) != s.dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), s.dimensions)
	}
	cp := make([]float32, s.dimensions)
	copy(cp, vec)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = append(s.vectors, cp)
	s.refs = append(s.refs, Ref{Kind: kind, ID: id})
	return nil
}

// Search returns up to k nearest neighbors of query ordered by decreasing
// similarity. Similarity is 1/(1+d) where d is the L2 distance.
func (s *SlotIndex) Search(query []float32, k int) ([]*Hit, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), s.dimensions)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, ErrNotReady
	}
	if k <= 0 || len(s.vectors) == 0 {
		return nil, nil
	}

	type scored struct {
		slot int
		sim  float64
	}
	scores := make([]scored, len(s.vectors))
	for i, vec := range s.vectors {
		var sum float64
		for j := 0; j < s.dimensions; j++ {
			d := float64(query[j] - vec[j])
			sum += d * d
		}
		scores[i] = scored{slot: i, sim: 1.0 / (1.0 + math.Sqrt(sum))}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].sim > scores[j].sim })

	if k > len(scores) {
		k = len(scores)
	}
	hits := make([]*Hit, 0, k)
	for _, sc := range scores[:k] {
		ref := s.refs[sc.slot]
		hits = append(hits, &Hit{Kind: ref.Kind, ID: ref.ID, Similarity: sc.sim})
	}
	return hits, nil
}

// Rebuild clears the index and replays every durable embedding row through
// Add, in stored order. It is the sole way slots are populated at process
// start. A second call is a no-op: the readiness flag guards against double
// rebuild, and searches are rejected until the first Rebuild completes.
// Rows whose vector does not match the configured dimension are skipped and
// counted; the caller decides whether to log them.
func (s *SlotIndex) Rebuild(rows []*models.EmbeddingRow) (skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return 0, nil
	}

	s.vectors = make([][]float32, 0, len(rows))
	s.refs = make([]Ref, 0, len(rows))
	for _, row := range rows {
		if len(row.Vector) != s.dimensions {
			skipped++
			continue
		}
		cp := make([]float32, s.dimensions)
		copy(cp, row.Vector)
		s.vectors = append(s.vectors, cp)
		s.refs = append(s.refs, Ref{Kind: row.Kind, ID: row.RecordID})
	}
	s.ready = true
	return skipped, nil
}

// Ready reports whether Rebuild has completed.
func (s *SlotIndex) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Size returns the number of populated slots.
func (s *SlotIndex) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}
