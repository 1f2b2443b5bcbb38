package storage

import (
	"context"
	"fmt"
)

// EnsureSchema brings the embeddings table to the current shape: a
// (item_type, item_id) discriminated key with a uniqueness constraint,
// migrated from the legacy expense-only layout where needed. It runs once per
// process, lazily, before any durable embedding read or write; repeated calls
// are no-ops.
//
// Legacy rows carry only an expense_id: an absent item_type is treated as
// "expense" and an absent item_id takes the legacy expense_id. Dropping the
// legacy unique index is optional; its failure does not abort the rest of
// the migration.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS embeddings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		expense_id INTEGER,
		item_type TEXT NOT NULL DEFAULT 'expense',
		item_id INTEGER,
		text TEXT NOT NULL,
		embedding_vector TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create embeddings table: %w", err)
	}

	columns, err := s.tableColumns(ctx, "embeddings")
	if err != nil {
		return fmt.Errorf("failed to inspect embeddings table: %w", err)
	}

	if _, ok := columns["item_type"]; !ok {
		if _, err := s.db.ExecContext(ctx,
			`ALTER TABLE embeddings ADD COLUMN item_type TEXT NOT NULL DEFAULT 'expense'`); err != nil {
			return fmt.Errorf("failed to add item_type column: %w", err)
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE embeddings SET item_type = 'expense' WHERE item_type IS NULL OR item_type = ''`); err != nil {
			return fmt.Errorf("failed to backfill item_type: %w", err)
		}
	}

	if _, ok := columns["item_id"]; !ok {
		if _, err := s.db.ExecContext(ctx,
			`ALTER TABLE embeddings ADD COLUMN item_id INTEGER`); err != nil {
			return fmt.Errorf("failed to add item_id column: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE embeddings SET item_id = expense_id WHERE item_id IS NULL AND expense_id IS NOT NULL`); err != nil {
		return fmt.Errorf("failed to backfill item_id: %w", err)
	}

	// Dropping the legacy unique index on expense_id is best-effort; the
	// index may be named differently or already gone.
	if name, ok := s.legacyUniqueIndex(ctx); ok {
		_, _ = s.db.ExecContext(ctx, fmt.Sprintf(`DROP INDEX IF EXISTS %q`, name))
	}

	if _, err := s.db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_embeddings_item ON embeddings(item_type, item_id)`); err != nil {
		return fmt.Errorf("failed to create unique embedding index: %w", err)
	}

	s.schemaReady = true
	return nil
}

// tableColumns returns the column names of a table.
func (s *SQLiteStore) tableColumns(ctx context.Context, table string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]struct{})
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		columns[name] = struct{}{}
	}
	return columns, rows.Err()
}

// legacyUniqueIndex finds a unique index covering exactly the expense_id
// column, left behind by the single-kind schema.
func (s *SQLiteStore) legacyUniqueIndex(ctx context.Context) (string, bool) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA index_list(embeddings)`)
	if err != nil {
		return "", false
	}
	defer rows.Close()

	type indexInfo struct {
		name   string
		unique bool
	}
	var indexes []indexInfo
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return "", false
		}
		indexes = append(indexes, indexInfo{name: name, unique: unique == 1})
	}

	for _, idx := range indexes {
		if !idx.unique || idx.name == "uq_embeddings_item" {
			continue
		}
		cols, err := s.indexColumns(ctx, idx.name)
		if err != nil {
			continue
		}
		if len(cols) == 1 && cols[0] == "expense_id" {
			return idx.name, true
		}
	}
	return "", false
}

func (s *SQLiteStore) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA index_info(%q)`, index))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno, cid int
			name       string
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}
