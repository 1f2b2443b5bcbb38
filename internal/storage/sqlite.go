// Package storage provides the SQLite implementation of the Store interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/opexhub/ledgerfind/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the record schema. Parent directories are created if they do not exist.
// The embeddings schema is handled separately by EnsureSchema so that legacy
// tables can be migrated lazily.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initRecordSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initRecordSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS expenses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		date TIMESTAMP NOT NULL,
		amount REAL NOT NULL,
		label TEXT NOT NULL,
		item TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT,
		status TEXT DEFAULT 'pending',
		gst_eligible INTEGER DEFAULT 0,
		gst_amount REAL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_user_id ON expenses(user_id);
	CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date);
	CREATE INDEX IF NOT EXISTS idx_expenses_category ON expenses(category);

	CREATE TABLE IF NOT EXISTS tax_claims (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		vendor TEXT NOT NULL,
		amount REAL NOT NULL,
		category TEXT NOT NULL,
		gst_rate REAL NOT NULL,
		gst_amount REAL NOT NULL,
		status TEXT DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_tax_claims_user_id ON tax_claims(user_id);
	CREATE INDEX IF NOT EXISTS idx_tax_claims_category ON tax_claims(category);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateUser inserts a user and sets the assigned ID.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, full_name) VALUES (?, ?, ?)`,
		u.Username, u.Email, u.FullName,
	)
	if err != nil {
		return err
	}
	u.ID, err = res.LastInsertId()
	return err
}

// UserNames returns every non-empty user display name.
func (s *SQLiteStore) UserNames(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT full_name FROM users WHERE full_name IS NOT NULL AND full_name != ''`)
}

// CreateExpense inserts an expense and sets the assigned ID and timestamps.
func (s *SQLiteStore) CreateExpense(ctx context.Context, e *models.Expense) error {
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = "pending"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, date, amount, label, item, category, description, status, gst_eligible, gst_amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Date, e.Amount, e.Label, e.Item, e.Category, e.Description, e.Status, e.GSTEligible, e.GSTAmount, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

// UpdateExpense updates the mutable fields of an expense.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, e *models.Expense) error {
	e.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE expenses SET date = ?, amount = ?, label = ?, item = ?, category = ?, description = ?, status = ?, gst_eligible = ?, gst_amount = ?, updated_at = ?
		 WHERE id = ?`,
		e.Date, e.Amount, e.Label, e.Item, e.Category, e.Description, e.Status, e.GSTEligible, e.GSTAmount, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const expenseColumns = `e.id, e.user_id, e.date, e.amount, e.label, e.item, e.category,
	COALESCE(e.description, ''), e.status, e.gst_eligible, e.gst_amount, e.created_at, e.updated_at,
	COALESCE(u.full_name, '')`

func scanExpense(row interface{ Scan(...any) error }) (*models.Expense, error) {
	var e models.Expense
	err := row.Scan(&e.ID, &e.UserID, &e.Date, &e.Amount, &e.Label, &e.Item, &e.Category,
		&e.Description, &e.Status, &e.GSTEligible, &e.GSTAmount, &e.CreatedAt, &e.UpdatedAt,
		&e.UserName)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetExpense returns an expense by ID with the owner's display name joined in.
func (s *SQLiteStore) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses e LEFT JOIN users u ON u.id = e.user_id WHERE e.id = ?`, id)
	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListExpenses returns every expense with owner names joined in.
func (s *SQLiteStore) ListExpenses(ctx context.Context) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses e LEFT JOIN users u ON u.id = e.user_id ORDER BY e.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateTaxClaim inserts a tax claim and sets the assigned ID and timestamps.
func (s *SQLiteStore) CreateTaxClaim(ctx context.Context, c *models.TaxClaim) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = "pending"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tax_claims (user_id, vendor, amount, category, gst_rate, gst_amount, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.Vendor, c.Amount, c.Category, c.GSTRate, c.GSTAmount, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

const claimColumns = `c.id, c.user_id, c.vendor, c.amount, c.category, c.gst_rate, c.gst_amount,
	c.status, c.created_at, c.updated_at, COALESCE(u.full_name, '')`

func scanClaim(row interface{ Scan(...any) error }) (*models.TaxClaim, error) {
	var c models.TaxClaim
	err := row.Scan(&c.ID, &c.UserID, &c.Vendor, &c.Amount, &c.Category, &c.GSTRate, &c.GSTAmount,
		&c.Status, &c.CreatedAt, &c.UpdatedAt, &c.UserName)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetTaxClaim returns a tax claim by ID with the owner's display name joined in.
func (s *SQLiteStore) GetTaxClaim(ctx context.Context, id int64) (*models.TaxClaim, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM tax_claims c LEFT JOIN users u ON u.id = c.user_id WHERE c.id = ?`, id)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListTaxClaims returns every tax claim with owner names joined in.
func (s *SQLiteStore) ListTaxClaims(ctx context.Context) ([]*models.TaxClaim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+claimColumns+` FROM tax_claims c LEFT JOIN users u ON u.id = c.user_id ORDER BY c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.TaxClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetRecord loads the record behind a (kind, id) pair.
func (s *SQLiteStore) GetRecord(ctx context.Context, kind models.Kind, id int64) (models.Record, error) {
	switch kind {
	case models.KindExpense:
		return s.GetExpense(ctx, id)
	case models.KindTaxClaim:
		return s.GetTaxClaim(ctx, id)
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
}

// CountRecords returns the total number of searchable records.
func (s *SQLiteStore) CountRecords(ctx context.Context) (int64, error) {
	var expenses, claims int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&expenses); err != nil {
		return 0, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tax_claims`).Scan(&claims); err != nil {
		return 0, err
	}
	return expenses + claims, nil
}

// DistinctTerms returns distinct category, label, item, and vendor values
// observed in storage, capped per column to keep vocabulary building cheap.
func (s *SQLiteStore) DistinctTerms(ctx context.Context) ([]string, error) {
	queries := []string{
		`SELECT DISTINCT category FROM expenses`,
		`SELECT DISTINCT label FROM expenses LIMIT 200`,
		`SELECT DISTINCT item FROM expenses LIMIT 200`,
		`SELECT DISTINCT category FROM tax_claims`,
		`SELECT DISTINCT vendor FROM tax_claims LIMIT 200`,
	}
	var out []string
	for _, q := range queries {
		values, err := s.queryStrings(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, values...)
	}
	return out, nil
}

func (s *SQLiteStore) queryStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out, rows.Err()
}

// UpsertEmbedding updates the row for (kind, id) if present, else inserts.
// The uniqueness constraint on (item_type, item_id) backs the idempotency
// invariant; the existence check keeps the common path free of constraint
// errors.
func (s *SQLiteStore) UpsertEmbedding(ctx context.Context, row *models.EmbeddingRow) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	vectorJSON, err := json.Marshal(row.Vector)
	if err != nil {
		return fmt.Errorf("failed to serialize vector: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM embeddings WHERE item_type = ? AND item_id = ?`,
		string(row.Kind), row.RecordID,
	).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		row.CreatedAt = time.Now()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO embeddings (item_type, item_id, text, embedding_vector, created_at) VALUES (?, ?, ?, ?, ?)`,
			string(row.Kind), row.RecordID, row.Text, string(vectorJSON), row.CreatedAt,
		)
		if err != nil {
			return err
		}
		row.ID, _ = res.LastInsertId()
	case err != nil:
		return err
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE embeddings SET text = ?, embedding_vector = ? WHERE id = ?`,
			row.Text, string(vectorJSON), existingID,
		); err != nil {
			return err
		}
		row.ID = existingID
	}

	return tx.Commit()
}

// ListEmbeddings returns every embedding row in stored order. Rows whose
// stored vector cannot be decoded are returned with a nil Vector so the
// caller can log and skip them without failing the whole load.
func (s *SQLiteStore) ListEmbeddings(ctx context.Context) ([]*models.EmbeddingRow, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_type, item_id, text, embedding_vector, created_at FROM embeddings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.EmbeddingRow
	for rows.Next() {
		var row models.EmbeddingRow
		var kind, vectorJSON string
		if err := rows.Scan(&row.ID, &kind, &row.RecordID, &row.Text, &vectorJSON, &row.CreatedAt); err != nil {
			return nil, err
		}
		row.Kind = models.Kind(kind)
		if err := json.Unmarshal([]byte(vectorJSON), &row.Vector); err != nil {
			row.Vector = nil
		}
		out = append(out, &row)
	}
	return out, rows.Err()
}

// CountEmbeddings returns the number of embedding rows.
func (s *SQLiteStore) CountEmbeddings(ctx context.Context) (int64, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
