// Package vector provides the process-wide slot-based vector similarity index.
package vector

import (
	"errors"

	"github.com/opexhub/ledgerfind/internal/models"
)

// ErrNotReady is returned by Search before the index has been rebuilt from
// durable storage. Serving a search before rebuild is a startup-contract
// violation, not a transient condition.
var ErrNotReady = errors.New("vector index not rebuilt yet")

// Ref maps a vector slot back to the record it was computed from.
type Ref struct {
	Kind models.Kind
	ID   int64
}

// Hit is a single nearest-neighbor result. Similarity is 1/(1+distance) and
// decreases monotonically with L2 distance.
type Hit struct {
	Kind       models.Kind
	ID         int64
	Similarity float64
}
