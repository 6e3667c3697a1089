package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/go-sql-driver/mysql"
)

// DurableWriter is the sole write path into durable storage: one stored
// procedure call per batch.
type DurableWriter interface {
	UpsertBatch(ctx context.Context, batch []UserSnapshot) error
}

// MySQLDurable calls `sp_upsert_user_state_batch` with a JSON-encoded
// batch, matching the original's single stored-procedure write path.
type MySQLDurable struct {
	db *sql.DB
}

// NewMySQLDurable wraps an already-configured *sql.DB, opened with the
// go-sql-driver/mysql `user:pass@tcp(host:port)/dbname` DSN form.
func NewMySQLDurable(db *sql.DB) *MySQLDurable {
	return &MySQLDurable{db: db}
}

type batchRow struct {
	UID uint64  `json:"uid"`
	X   float64 `json:"x"`
	Z   float64 `json:"z"`
	HP  int     `json:"hp"`
	SP  int     `json:"sp"`
}

// UpsertBatch marshals batch to JSON and invokes the stored procedure in
// a single call, so a partial failure can only affect the whole batch,
// never a subset of it silently.
func (d *MySQLDurable) UpsertBatch(ctx context.Context, batch []UserSnapshot) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([]batchRow, 0, len(batch))
	for _, u := range batch {
		rows = append(rows, batchRow{UID: u.UID, X: u.X, Z: u.Z, HP: u.HP, SP: u.SP})
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, "CALL sp_upsert_user_state_batch(?)", string(payload))
	return err
}
