package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opexhub/ledgerfind/internal/embedding"
	"github.com/opexhub/ledgerfind/internal/indexer"
	"github.com/opexhub/ledgerfind/internal/storage"
	"github.com/opexhub/ledgerfind/internal/vector"
)

func newTestImporter(t *testing.T) (*Importer, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	index, err := vector.NewSlotIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	ix := indexer.New(store, embedding.NewMockEmbedder(8), index)
	if err := ix.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	return NewImporter(store, ix, nil), store
}

func TestImportFile(t *testing.T) {
	ctx := context.Background()
	im, store := newTestImporter(t)

	batch := `{
		"expenses": [
			{"user_id": 1, "date": "` + time.Now().UTC().Format(time.RFC3339) + `", "amount": 1500, "label": "Petrol", "item": "Fuel", "category": "Travel"}
		],
		"tax_claims": [
			{"user_id": 1, "vendor": "Dominos", "amount": 1180, "category": "Food", "gst_rate": 18, "gst_amount": 180}
		]
	}`
	path := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(path, []byte(batch), 0644); err != nil {
		t.Fatal(err)
	}

	if err := im.ImportFile(ctx, path); err != nil {
		t.Fatal(err)
	}

	n, err := store.CountRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountRecords = %d, want 2", n)
	}
	embeddings, err := store.CountEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if embeddings != 2 {
		t.Errorf("CountEmbeddings = %d, want 2", embeddings)
	}

	// A fully successful import consumes the batch file.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("batch file not removed after import")
	}
}

func TestImportFileBadJSON(t *testing.T) {
	im, _ := newTestImporter(t)

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := im.ImportFile(context.Background(), path); err == nil {
		t.Error("expected parse error")
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("unparseable file should be left in place")
	}
}

func TestImportFileMissing(t *testing.T) {
	im, _ := newTestImporter(t)
	if err := im.ImportFile(context.Background(), filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected read error")
	}
}

func TestImportFileEmptyBatch(t *testing.T) {
	ctx := context.Background()
	im, store := newTestImporter(t)

	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := im.ImportFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	n, err := store.CountRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("CountRecords = %d, want 0", n)
	}
}
