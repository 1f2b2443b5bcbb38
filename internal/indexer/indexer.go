// Package indexer keeps the embedding store and the in-memory vector index
// consistent with the record tables.
package indexer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/opexhub/ledgerfind/internal/embedding"
	"github.com/opexhub/ledgerfind/internal/models"
	"github.com/opexhub/ledgerfind/internal/notify"
	"github.com/opexhub/ledgerfind/internal/query"
	"github.com/opexhub/ledgerfind/internal/storage"
	"github.com/opexhub/ledgerfind/internal/vector"
)

// Indexer coordinates schema migration, embedding backfill, index rebuild and
// incremental per-record indexing.
type Indexer struct {
	store    storage.Store
	embedder embedding.Embedder
	index    *vector.SlotIndex
	notifier notify.Notifier
	dict     *query.BleveDictionary
	logger   *zap.Logger

	rebuildOnce sync.Once
	rebuildErr  error
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(ix *Indexer) {
		ix.logger = logger
	}
}

// WithNotifier sets the notifier used after successful indexing.
func WithNotifier(n notify.Notifier) Option {
	return func(ix *Indexer) {
		ix.notifier = n
	}
}

// WithDictionary sets the term dictionary that indexed record text feeds, so
// spelling correction learns new vendor and item names as they arrive.
func WithDictionary(d *query.BleveDictionary) Option {
	return func(ix *Indexer) {
		ix.dict = d
	}
}

// New creates an Indexer over the given store, embedder and index.
func New(store storage.Store, embedder embedding.Embedder, index *vector.SlotIndex, opts ...Option) *Indexer {
	ix := &Indexer{
		store:    store,
		embedder: embedder,
		index:    index,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Rebuild migrates the embedding schema, backfills missing embeddings and
// loads everything into the vector index. It runs at most once per process;
// later calls return the first result.
func (ix *Indexer) Rebuild(ctx context.Context) error {
	ix.rebuildOnce.Do(func() {
		ix.rebuildErr = ix.rebuild(ctx)
	})
	return ix.rebuildErr
}

func (ix *Indexer) rebuild(ctx context.Context) error {
	if err := ix.store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring embedding schema: %w", err)
	}

	if err := ix.Backfill(ctx); err != nil {
		return fmt.Errorf("backfilling embeddings: %w", err)
	}

	rows, err := ix.store.ListEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("loading embeddings: %w", err)
	}

	// Seed the dictionary from the same match text incremental indexing
	// feeds, so correction vocabulary does not depend on how a record
	// entered the index.
	if ix.dict != nil {
		records, err := ix.listRecords(ctx)
		if err != nil {
			return fmt.Errorf("loading records for term dictionary: %w", err)
		}
		for _, rec := range records {
			docID := fmt.Sprintf("%s:%d", rec.RecordKind(), rec.RecordID())
			if err := ix.dict.IndexText(docID, rec.MatchText()); err != nil {
				ix.logger.Debug("seeding term dictionary failed",
					zap.String("doc", docID), zap.Error(err))
			}
		}
	}

	skipped, err := ix.index.Rebuild(rows)
	if err != nil {
		return fmt.Errorf("rebuilding vector index: %w", err)
	}
	if skipped > 0 {
		ix.logger.Warn("skipped malformed embedding rows during rebuild",
			zap.Int("skipped", skipped))
	}

	ix.logger.Info("vector index ready",
		zap.Int("vectors", ix.index.Size()),
		zap.Int("dimensions", ix.index.Dimensions()))
	return nil
}

// Backfill embeds every record that has no stored embedding yet. Individual
// record failures are logged and skipped; the pass keeps going so one bad
// record cannot block the rest of the corpus.
func (ix *Indexer) Backfill(ctx context.Context) error {
	existing, err := ix.store.ListEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("listing embeddings: %w", err)
	}
	have := make(map[vector.Ref]bool, len(existing))
	for _, row := range existing {
		have[vector.Ref{Kind: row.Kind, ID: row.RecordID}] = true
	}

	records, err := ix.listRecords(ctx)
	if err != nil {
		return err
	}

	var added int
	for _, rec := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ref := vector.Ref{Kind: rec.RecordKind(), ID: rec.RecordID()}
		if have[ref] {
			continue
		}
		if err := ix.embedAndStore(ctx, rec); err != nil {
			ix.logger.Warn("backfill failed for record",
				zap.String("kind", string(ref.Kind)),
				zap.Int64("id", ref.ID),
				zap.Error(err))
			continue
		}
		added++
	}

	if added > 0 {
		ix.logger.Info("backfilled embeddings", zap.Int("added", added))
	}
	return nil
}

func (ix *Indexer) listRecords(ctx context.Context) ([]models.Record, error) {
	expenses, err := ix.store.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	claims, err := ix.store.ListTaxClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tax claims: %w", err)
	}

	records := make([]models.Record, 0, len(expenses)+len(claims))
	for _, e := range expenses {
		records = append(records, e)
	}
	for _, c := range claims {
		records = append(records, c)
	}
	return records, nil
}

// RecordCreated indexes a new record. Indexing errors are logged, never
// returned: the record write has already committed and must not appear to
// fail because of a degraded embedder.
func (ix *Indexer) RecordCreated(ctx context.Context, rec models.Record) {
	ix.indexRecord(ctx, rec, notify.EventRecordIndexed)
}

// RecordUpdated re-embeds an updated record and replaces its stored vector.
// The in-memory index gains a fresh slot for the record; the stale slot stays
// until the next rebuild and is absorbed by result deduplication.
func (ix *Indexer) RecordUpdated(ctx context.Context, rec models.Record) {
	ix.indexRecord(ctx, rec, notify.EventRecordReindexed)
}

func (ix *Indexer) indexRecord(ctx context.Context, rec models.Record, event string) {
	kind, id := rec.RecordKind(), rec.RecordID()

	if err := ix.embedAndStore(ctx, rec); err != nil {
		ix.logger.Error("indexing record failed",
			zap.String("kind", string(kind)),
			zap.Int64("id", id),
			zap.Error(err))
		return
	}

	if ix.notifier != nil {
		ix.notifier.Publish(notify.Event{
			Type:     event,
			Kind:     kind,
			RecordID: id,
		})
	}
}

func (ix *Indexer) embedAndStore(ctx context.Context, rec models.Record) error {
	text := rec.SearchText()
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding text: %w", err)
	}

	row := &models.EmbeddingRow{
		Kind:     rec.RecordKind(),
		RecordID: rec.RecordID(),
		Text:     text,
		Vector:   vec,
	}
	if err := ix.store.UpsertEmbedding(ctx, row); err != nil {
		return fmt.Errorf("storing embedding: %w", err)
	}

	if ix.dict != nil {
		docID := fmt.Sprintf("%s:%d", rec.RecordKind(), rec.RecordID())
		if err := ix.dict.IndexText(docID, rec.MatchText()); err != nil {
			ix.logger.Debug("feeding term dictionary failed",
				zap.String("doc", docID), zap.Error(err))
		}
	}

	if ix.index.Ready() {
		if err := ix.index.Add(rec.RecordKind(), rec.RecordID(), vec); err != nil {
			return fmt.Errorf("adding vector to index: %w", err)
		}
	}
	return nil
}
