package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/opexhub/ledgerfind/internal/embedding"
	"github.com/opexhub/ledgerfind/internal/models"
	"github.com/opexhub/ledgerfind/internal/notify"
	"github.com/opexhub/ledgerfind/internal/query"
	"github.com/opexhub/ledgerfind/internal/storage"
	"github.com/opexhub/ledgerfind/internal/vector"
)

const testDims = 8

func newTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestIndex(t *testing.T) *vector.SlotIndex {
	t.Helper()
	index, err := vector.NewSlotIndex(testDims)
	if err != nil {
		t.Fatal(err)
	}
	return index
}

func seedRecords(t *testing.T, store *storage.SQLiteStore, expenses int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < expenses; i++ {
		e := &models.Expense{
			UserID:   1,
			Date:     time.Now(),
			Amount:   float64(100 * (i + 1)),
			Label:    "Petrol",
			Item:     "Fuel",
			Category: "Travel",
		}
		if err := store.CreateExpense(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	claim := &models.TaxClaim{UserID: 1, Vendor: "Dominos", Amount: 1180, Category: "Food", GSTRate: 18, GSTAmount: 180}
	if err := store.CreateTaxClaim(ctx, claim); err != nil {
		t.Fatal(err)
	}
}

func TestRebuildBackfillsAllRecords(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedRecords(t, store, 3)

	index := newTestIndex(t)
	ix := New(store, embedding.NewMockEmbedder(testDims), index)

	if err := ix.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	if !index.Ready() {
		t.Fatal("index not ready after rebuild")
	}
	if index.Size() != 4 {
		t.Errorf("index size = %d, want 4", index.Size())
	}
	n, err := store.CountEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("CountEmbeddings = %d, want 4", n)
	}
}

func TestRebuildRunsOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedRecords(t, store, 1)

	index := newTestIndex(t)
	ix := New(store, embedding.NewMockEmbedder(testDims), index)

	if err := ix.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	size := index.Size()

	// A record created behind the indexer's back is not picked up by a second
	// Rebuild call; only the first run does work.
	e := &models.Expense{UserID: 1, Date: time.Now(), Amount: 50, Label: "Chai", Item: "Tea", Category: "Food"}
	if err := store.CreateExpense(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := ix.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	if index.Size() != size {
		t.Errorf("second rebuild changed index size from %d to %d", size, index.Size())
	}
}

func TestRebuildSeedsDictionaryFromMatchText(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedRecords(t, store, 1)

	dict, err := query.NewBleveDictionary()
	if err != nil {
		t.Fatal(err)
	}
	defer dict.Close()

	index := newTestIndex(t)
	ix := New(store, embedding.NewMockEmbedder(testDims), index, WithDictionary(dict))
	if err := ix.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}

	terms, err := dict.Terms()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"petrol", "fuel", "dominos"} {
		if terms[want] == 0 {
			t.Errorf("term %q missing from dictionary, terms %v", want, terms)
		}
	}
	// Embedding text carries currency and date renderings that must not
	// become correction targets; only match text feeds the dictionary.
	if terms["rupees"] != 0 {
		t.Errorf("embedding-only term leaked into the dictionary, terms %v", terms)
	}
}

func TestRecordCreatedIndexesAndNotifies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	index := newTestIndex(t)
	events := notify.NewBroadcaster(nil)
	ix := New(store, embedding.NewMockEmbedder(testDims), index, WithNotifier(events))

	if err := ix.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}

	_, ch := events.Subscribe(4)

	e := &models.Expense{UserID: 1, Date: time.Now(), Amount: 300, Label: "Chocolate Cake", Item: "Cake", Category: "Food"}
	if err := store.CreateExpense(ctx, e); err != nil {
		t.Fatal(err)
	}
	ix.RecordCreated(ctx, e)

	if index.Size() != 1 {
		t.Errorf("index size = %d, want 1", index.Size())
	}
	select {
	case ev := <-ch:
		if ev.Type != notify.EventRecordIndexed {
			t.Errorf("event type = %q, want %q", ev.Type, notify.EventRecordIndexed)
		}
		if ev.Kind != models.KindExpense || ev.RecordID != e.ID {
			t.Errorf("event identifies %s:%d, want expense:%d", ev.Kind, ev.RecordID, e.ID)
		}
	default:
		t.Fatal("no event published")
	}
}

func TestRecordUpdatedKeepsOneEmbeddingRow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	index := newTestIndex(t)
	ix := New(store, embedding.NewMockEmbedder(testDims), index)
	if err := ix.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}

	e := &models.Expense{UserID: 1, Date: time.Now(), Amount: 300, Label: "Lunch", Item: "Thali", Category: "Food"}
	if err := store.CreateExpense(ctx, e); err != nil {
		t.Fatal(err)
	}
	ix.RecordCreated(ctx, e)

	e.Label = "Team Lunch"
	if err := store.UpdateExpense(ctx, e); err != nil {
		t.Fatal(err)
	}
	ix.RecordUpdated(ctx, e)

	n, err := store.CountEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountEmbeddings = %d, want 1 after update", n)
	}
	rows, err := store.ListEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Text != e.SearchText() {
		t.Error("stored embedding text not refreshed on update")
	}
}

// flakyEmbedder fails for one specific text and succeeds for everything else.
type flakyEmbedder struct {
	inner    embedding.Embedder
	failText string
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == f.failText {
		return nil, errors.New("embedder unavailable")
	}
	return f.inner.Embed(ctx, text)
}

func (f *flakyEmbedder) Dimensions() int { return f.inner.Dimensions() }
func (f *flakyEmbedder) Close() error    { return f.inner.Close() }

func TestBackfillSkipsFailingRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	bad := &models.Expense{UserID: 1, Date: time.Now(), Amount: 10, Label: "Broken", Item: "Broken", Category: "Misc"}
	if err := store.CreateExpense(ctx, bad); err != nil {
		t.Fatal(err)
	}
	good := &models.Expense{UserID: 1, Date: time.Now(), Amount: 20, Label: "Petrol", Item: "Fuel", Category: "Travel"}
	if err := store.CreateExpense(ctx, good); err != nil {
		t.Fatal(err)
	}

	embedder := &flakyEmbedder{
		inner:    embedding.NewMockEmbedder(testDims),
		failText: bad.SearchText(),
	}
	index := newTestIndex(t)
	ix := New(store, embedder, index)

	if err := ix.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	if index.Size() != 1 {
		t.Errorf("index size = %d, want only the healthy record", index.Size())
	}
	n, err := store.CountEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountEmbeddings = %d, want 1", n)
	}
}
