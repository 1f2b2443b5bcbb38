package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/opexhub/ledgerfind/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestExpenseRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	user := &models.User{Username: "gaurav", Email: "gaurav@example.com", FullName: "Gaurav Sharma"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	if user.ID == 0 {
		t.Fatal("user ID not assigned")
	}

	expense := &models.Expense{
		UserID:      user.ID,
		Date:        time.Date(2025, time.December, 5, 0, 0, 0, 0, time.UTC),
		Amount:      1500,
		Label:       "Petrol",
		Item:        "Fuel",
		Category:    "Travel",
		GSTEligible: true,
		GSTAmount:   120,
	}
	if err := store.CreateExpense(ctx, expense); err != nil {
		t.Fatal(err)
	}
	if expense.ID == 0 {
		t.Fatal("expense ID not assigned")
	}

	got, err := store.GetExpense(ctx, expense.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != "Petrol" || got.Amount != 1500 || !got.GSTEligible {
		t.Errorf("unexpected expense: %+v", got)
	}
	if got.UserName != "Gaurav Sharma" {
		t.Errorf("UserName = %q, want owner name joined in", got.UserName)
	}
	if got.Status != "pending" {
		t.Errorf("Status = %q, want pending default", got.Status)
	}

	if _, err := store.GetExpense(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing expense returned %v, want ErrNotFound", err)
	}
}

func TestUpdateExpense(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	expense := &models.Expense{UserID: 1, Date: time.Now(), Amount: 100, Label: "Lunch", Item: "Thali", Category: "Food"}
	if err := store.CreateExpense(ctx, expense); err != nil {
		t.Fatal(err)
	}

	expense.Amount = 250
	expense.Status = "approved"
	if err := store.UpdateExpense(ctx, expense); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetExpense(ctx, expense.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != 250 || got.Status != "approved" {
		t.Errorf("update not applied: %+v", got)
	}

	missing := &models.Expense{ID: 9999, Label: "x"}
	if err := store.UpdateExpense(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("updating missing expense returned %v, want ErrNotFound", err)
	}
}

func TestTaxClaimRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	claim := &models.TaxClaim{
		UserID:    1,
		Vendor:    "Dominos",
		Amount:    1180,
		Category:  "Food",
		GSTRate:   18,
		GSTAmount: 180,
	}
	if err := store.CreateTaxClaim(ctx, claim); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetTaxClaim(ctx, claim.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Vendor != "Dominos" || got.GSTRate != 18 {
		t.Errorf("unexpected claim: %+v", got)
	}
	if _, err := store.GetTaxClaim(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing claim returned %v, want ErrNotFound", err)
	}
}

func TestGetRecord(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	expense := &models.Expense{UserID: 1, Date: time.Now(), Amount: 10, Label: "Tea", Item: "Chai", Category: "Food"}
	if err := store.CreateExpense(ctx, expense); err != nil {
		t.Fatal(err)
	}
	claim := &models.TaxClaim{UserID: 1, Vendor: "Cafe", Amount: 100, Category: "Food", GSTRate: 5, GSTAmount: 5}
	if err := store.CreateTaxClaim(ctx, claim); err != nil {
		t.Fatal(err)
	}

	rec, err := store.GetRecord(ctx, models.KindExpense, expense.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.RecordKind() != models.KindExpense || rec.RecordID() != expense.ID {
		t.Error("expense record identity mismatch")
	}
	rec, err = store.GetRecord(ctx, models.KindTaxClaim, claim.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.RecordKind() != models.KindTaxClaim {
		t.Error("claim record identity mismatch")
	}
	if _, err := store.GetRecord(ctx, models.Kind("receipt"), 1); err == nil {
		t.Error("unknown kind should error")
	}

	n, err := store.CountRecords(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountRecords = %d, want 2", n)
	}
}

func TestDistinctTermsAndUserNames(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	user := &models.User{Username: "priya", Email: "priya@example.com", FullName: "Priya Patel"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	expense := &models.Expense{UserID: user.ID, Date: time.Now(), Amount: 400, Label: "Chocolate Cake", Item: "Cake", Category: "Food"}
	if err := store.CreateExpense(ctx, expense); err != nil {
		t.Fatal(err)
	}

	terms, err := store.DistinctTerms(ctx)
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, term := range terms {
		found[term] = true
	}
	if !found["Chocolate Cake"] || !found["Food"] {
		t.Errorf("DistinctTerms = %v, want label and category values", terms)
	}

	names, err := store.UserNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "Priya Patel" {
		t.Errorf("UserNames = %v", names)
	}
}

func TestUpsertEmbeddingIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	row := &models.EmbeddingRow{
		Kind:     models.KindExpense,
		RecordID: 42,
		Text:     "petrol fuel travel",
		Vector:   []float32{0.1, 0.2},
	}
	if err := store.UpsertEmbedding(ctx, row); err != nil {
		t.Fatal(err)
	}
	firstID := row.ID

	row.Text = "petrol fuel travel december"
	row.Vector = []float32{0.3, 0.4}
	if err := store.UpsertEmbedding(ctx, row); err != nil {
		t.Fatal(err)
	}
	if row.ID != firstID {
		t.Errorf("upsert changed row ID from %d to %d", firstID, row.ID)
	}

	n, err := store.CountEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountEmbeddings = %d, want 1", n)
	}

	rows, err := store.ListEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].Text != "petrol fuel travel december" {
		t.Errorf("Text = %q, want updated text", rows[0].Text)
	}
	if len(rows[0].Vector) != 2 || rows[0].Vector[0] != 0.3 {
		t.Errorf("Vector = %v, want updated vector", rows[0].Vector)
	}
}

func TestUpsertEmbeddingSeparateKinds(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// Same numeric ID under different kinds must produce two rows.
	for _, kind := range []models.Kind{models.KindExpense, models.KindTaxClaim} {
		row := &models.EmbeddingRow{Kind: kind, RecordID: 7, Text: "x", Vector: []float32{1}}
		if err := store.UpsertEmbedding(ctx, row); err != nil {
			t.Fatal(err)
		}
	}
	n, err := store.CountEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountEmbeddings = %d, want 2", n)
	}
}

func TestListEmbeddingsMalformedVector(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	good := &models.EmbeddingRow{Kind: models.KindExpense, RecordID: 1, Text: "ok", Vector: []float32{1, 2}}
	if err := store.UpsertEmbedding(ctx, good); err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO embeddings (item_type, item_id, text, embedding_vector, created_at) VALUES (?, ?, ?, ?, ?)`,
		"expense", int64(2), "broken", "not-json", time.Now(),
	); err != nil {
		t.Fatal(err)
	}

	rows, err := store.ListEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Vector == nil {
		t.Error("good row lost its vector")
	}
	if rows[1].Vector != nil {
		t.Error("malformed row should carry a nil vector")
	}
}

func TestEnsureSchemaMigratesLegacyTable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// A database written by an earlier release: embeddings keyed by a bare
	// expense_id with a unique index on that column.
	legacy := `
	CREATE TABLE embeddings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		expense_id INTEGER,
		text TEXT,
		embedding_vector TEXT,
		created_at TIMESTAMP
	);
	CREATE UNIQUE INDEX uq_embeddings_expense ON embeddings(expense_id);
	`
	if _, err := store.db.ExecContext(ctx, legacy); err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.ExecContext(ctx,
		`INSERT INTO embeddings (expense_id, text, embedding_vector, created_at) VALUES (?, ?, ?, ?)`,
		int64(5), "legacy row", `[0.5,0.5]`, time.Now(),
	); err != nil {
		t.Fatal(err)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	rows, err := store.ListEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Kind != models.KindExpense || rows[0].RecordID != 5 {
		t.Errorf("legacy row migrated to %s:%d, want expense:5", rows[0].Kind, rows[0].RecordID)
	}

	// Upserting the migrated record updates in place.
	row := &models.EmbeddingRow{Kind: models.KindExpense, RecordID: 5, Text: "fresh", Vector: []float32{1, 0}}
	if err := store.UpsertEmbedding(ctx, row); err != nil {
		t.Fatal(err)
	}
	n, err := store.CountEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountEmbeddings = %d, want 1 after upsert of migrated row", n)
	}

	// A tax claim with the same numeric ID is a distinct row; the legacy
	// unique index must not block it.
	claimRow := &models.EmbeddingRow{Kind: models.KindTaxClaim, RecordID: 5, Text: "claim", Vector: []float32{0, 1}}
	if err := store.UpsertEmbedding(ctx, claimRow); err != nil {
		t.Fatal(err)
	}
	n, err = store.CountEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("CountEmbeddings = %d, want 2", n)
	}

	// Running the migration again is harmless.
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}
}
