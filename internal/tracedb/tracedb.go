// Package tracedb is the optional SQLite-backed trace archive.
//
// Rows are keyed by trace hash, so writes are naturally idempotent:
// archiving the same sealed trace twice is a no-op. The canonical
// encoding is the source of truth; reads decode it and the decoder's
// hash recomputation guards against silent corruption.
package tracedb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/trace"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// DB is an open trace archive.
type DB struct {
	db *sql.DB
}

// NotFoundError is returned when no trace exists under a hash.
type NotFoundError struct {
	Hash content.Hash
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tracedb: no trace %s", e.Hash)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// Open creates or opens the archive at path.
//
// The database is configured with WAL mode for concurrent reads, NORMAL
// synchronous mode, and a 5-second busy timeout. SQLite supports one
// writer at a time, so the pool is capped at a single connection.
// Idempotent: safe to call on an existing archive.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("tracedb: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracedb: connect %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("tracedb: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracedb: apply schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		db.Close()
		return nil, fmt.Errorf("tracedb: set user_version: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the archive.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// WriteTrace archives a sealed trace.
// ON CONFLICT DO NOTHING keyed on the trace hash makes duplicate writes
// silent no-ops. Unsealed traces are rejected.
func (d *DB) WriteTrace(ctx context.Context, t *trace.ExecutionTrace) error {
	if t.TraceHash.IsZero() {
		return fmt.Errorf("tracedb: write: trace is not sealed")
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO traces (hash, program_hash, terminus, effect_count, gas_remaining, encoding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		t.TraceHash.String(),
		t.ProgramHash.String(),
		t.Terminus.String(),
		len(t.ExecutedEffects),
		int64(t.GasRemaining),
		trace.Encode(t),
	)
	if err != nil {
		return fmt.Errorf("tracedb: write %s: %w", t.TraceHash.Short(), err)
	}
	return nil
}

// ReadTrace loads and decodes the trace under hash.
// The decoder recomputes the hash from the stored bytes; a mismatch with
// the requested hash means the row is corrupt.
func (d *DB) ReadTrace(ctx context.Context, hash content.Hash) (*trace.ExecutionTrace, error) {
	var encoding []byte
	err := d.db.QueryRowContext(ctx,
		`SELECT encoding FROM traces WHERE hash = ?`, hash.String(),
	).Scan(&encoding)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Hash: hash}
	}
	if err != nil {
		return nil, fmt.Errorf("tracedb: read %s: %w", hash.Short(), err)
	}

	t, err := trace.Decode(encoding)
	if err != nil {
		return nil, fmt.Errorf("tracedb: read %s: %w", hash.Short(), err)
	}
	if t.TraceHash != hash {
		return nil, fmt.Errorf("tracedb: read %s: stored bytes hash to %s", hash.Short(), t.TraceHash.Short())
	}
	return t, nil
}

// Info is one row of the archive listing.
type Info struct {
	Hash         content.Hash
	ProgramHash  content.Hash
	Terminus     string
	EffectCount  int
	GasRemaining uint64
	CreatedAt    string
}

// ListTraces returns archive rows, newest first, hash-ordered within the
// same timestamp for determinism.
func (d *DB) ListTraces(ctx context.Context) ([]Info, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT hash, program_hash, terminus, effect_count, gas_remaining, created_at
		FROM traces
		ORDER BY created_at DESC, hash ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("tracedb: list: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		var hash, program string
		var gas int64
		if err := rows.Scan(&hash, &program, &info.Terminus, &info.EffectCount, &gas, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("tracedb: list: scan: %w", err)
		}
		if info.Hash, err = content.ParseHash(hash); err != nil {
			return nil, fmt.Errorf("tracedb: list: hash column: %w", err)
		}
		if info.ProgramHash, err = content.ParseHash(program); err != nil {
			return nil, fmt.Errorf("tracedb: list: program_hash column: %w", err)
		}
		info.GasRemaining = uint64(gas)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracedb: list: %w", err)
	}
	return out, nil
}
