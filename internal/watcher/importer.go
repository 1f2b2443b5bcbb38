package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/opexhub/ledgerfind/internal/indexer"
	"github.com/opexhub/ledgerfind/internal/models"
	"github.com/opexhub/ledgerfind/internal/storage"
)

// Batch is the on-disk format accepted by the import directory.
type Batch struct {
	Expenses  []*models.Expense  `json:"expenses"`
	TaxClaims []*models.TaxClaim `json:"tax_claims"`
}

// Importer loads record batches from JSON files into the store and indexes
// them.
type Importer struct {
	store   storage.Store
	indexer *indexer.Indexer
	logger  *zap.Logger
}

// NewImporter creates an Importer. logger may be nil.
func NewImporter(store storage.Store, ix *indexer.Indexer, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: store, indexer: ix, logger: logger}
}

// ImportFile reads a batch file and stores and indexes every record in it.
// Individual record failures are logged and skipped so one bad record does
// not abort the batch. The file is removed after a fully successful import.
func (im *Importer) ImportFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading batch file: %w", err)
	}

	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("parsing batch file: %w", err)
	}

	var stored, failed int
	for _, e := range batch.Expenses {
		if err := im.store.CreateExpense(ctx, e); err != nil {
			im.logger.Warn("importing expense failed", zap.String("label", e.Label), zap.Error(err))
			failed++
			continue
		}
		im.indexer.RecordCreated(ctx, e)
		stored++
	}
	for _, c := range batch.TaxClaims {
		if err := im.store.CreateTaxClaim(ctx, c); err != nil {
			im.logger.Warn("importing tax claim failed", zap.String("vendor", c.Vendor), zap.Error(err))
			failed++
			continue
		}
		im.indexer.RecordCreated(ctx, c)
		stored++
	}

	im.logger.Info("imported batch",
		zap.String("path", path),
		zap.Int("stored", stored),
		zap.Int("failed", failed))

	if failed == 0 {
		if err := os.Remove(path); err != nil {
			im.logger.Warn("removing imported batch file failed", zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}
