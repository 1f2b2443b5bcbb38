// Package storage defines the persistence interface for records and embeddings.
package storage

import (
	"context"
	"errors"

	"github.com/opexhub/ledgerfind/internal/models"
)

// ErrNotFound is returned when a record does not exist. The search engine
// treats it as a stale-index signal and skips the candidate.
var ErrNotFound = errors.New("record not found")

// Store defines record and embedding persistence operations.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, u *models.User) error
	UserNames(ctx context.Context) ([]string, error)

	// Record operations
	CreateExpense(ctx context.Context, e *models.Expense) error
	UpdateExpense(ctx context.Context, e *models.Expense) error
	GetExpense(ctx context.Context, id int64) (*models.Expense, error)
	ListExpenses(ctx context.Context) ([]*models.Expense, error)
	CreateTaxClaim(ctx context.Context, c *models.TaxClaim) error
	GetTaxClaim(ctx context.Context, id int64) (*models.TaxClaim, error)
	ListTaxClaims(ctx context.Context) ([]*models.TaxClaim, error)
	// GetRecord loads the record behind a (kind, id) pair, owner name included.
	GetRecord(ctx context.Context, kind models.Kind, id int64) (models.Record, error)
	CountRecords(ctx context.Context) (int64, error)

	// DistinctTerms returns distinct category/label/item/vendor values for
	// vocabulary augmentation.
	DistinctTerms(ctx context.Context) ([]string, error)

	// Embedding operations. EnsureSchema must have completed before any of
	// them touch the embeddings table; implementations guard this lazily.
	EnsureSchema(ctx context.Context) error
	UpsertEmbedding(ctx context.Context, row *models.EmbeddingRow) error
	ListEmbeddings(ctx context.Context) ([]*models.EmbeddingRow, error)
	CountEmbeddings(ctx context.Context) (int64, error)

	Close() error
}
