package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Writer serializes all mutating operations against one database file.
// Concurrent callers queue behind the mutex instead of racing the
// storage engine, which does not support concurrent writers. Readers go
// straight to the connection and see the last committed snapshot.
//
// Every mutation runs inside a single transaction: either the whole
// batch and its index entries commit, or none do. The queue bound is
// implicit: one pending call per concurrent caller.
type Writer struct {
	db     *DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewWriter creates the single logical writer for db.
func NewWriter(db *DB, logger zerolog.Logger) *Writer {
	return &Writer{
		db:     db,
		logger: logger.With().Str("component", "writer").Logger(),
	}
}

// Do runs fn inside a write transaction, serialized against all other
// mutations. If fn fails or ctx is cancelled before commit, the
// transaction rolls back in full: a partially applied batch is never
// visible, and already committed batches are never undone.
func (w *Writer) Do(ctx context.Context, fn func(tx *sql.Tx) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// A caller that gave up while queued should not start new work.
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := w.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			w.logger.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write tx: %w", err)
	}
	return nil
}

// Conn returns the read connection. Reads may run concurrently with an
// in-progress write and never observe a partial batch.
func (w *Writer) Conn() *sql.DB {
	return w.db.Conn()
}
