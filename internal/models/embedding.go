package models

import "time"

// EmbeddingRow is the durable (searchable text, vector) pair for exactly one
// record. At most one row exists per (Kind, RecordID); the vector is stored
// JSON-serialized in the database and decoded on index rebuild.
type EmbeddingRow struct {
	ID        int64     `json:"id" db:"id"`
	Kind      Kind      `json:"item_type" db:"item_type"`
	RecordID  int64     `json:"item_id" db:"item_id"`
	Text      string    `json:"text" db:"text"`
	Vector    []float32 `json:"-" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
