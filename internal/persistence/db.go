// Package persistence provides SQLite-based snapshot storage.
package persistence

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/substrate/internal/engine"
	"github.com/talgya/substrate/internal/persistence/snapshot"
)

// DB wraps a SQLite connection for simulation snapshots.
type DB struct {
	conn *sqlx.DB
	keep int
}

// Open opens or creates a SQLite database at the given path. keep is how
// many snapshots to retain; older ones are pruned on save.
func Open(path string, keep int) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if keep <= 0 {
		keep = 1
	}
	db := &DB{conn: conn, keep: keep}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		taken_at TEXT NOT NULL,
		body BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Save writes a snapshot in one transaction and prunes old ones. Either
// the whole snapshot lands or nothing does.
func (db *DB) Save(ctx context.Context, snap snapshot.V1) error {
	var body bytes.Buffer
	if err := snapshot.Encode(&body, snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO snapshots (version, tick, taken_at, body) VALUES (?, ?, ?, ?)",
		snap.Header.Version, snap.Header.Tick, snap.Header.TakenAt.UTC().Format(time.RFC3339Nano), body.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"DELETE FROM snapshots WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)",
		db.keep,
	)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES ('last_tick', ?)",
		strconv.FormatUint(snap.Header.Tick, 10),
	)
	if err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("snapshot saved", "tick", snap.Header.Tick, "bytes", body.Len())
	return nil
}

// Load returns the newest snapshot. ok is false when none has been saved.
func (db *DB) Load(ctx context.Context) (snap snapshot.V1, ok bool, err error) {
	var body []byte
	err = db.conn.GetContext(ctx, &body, "SELECT body FROM snapshots ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, fmt.Errorf("select snapshot: %w", err)
	}
	snap, err = snapshot.Decode(bytes.NewReader(body))
	if err != nil {
		return snap, false, err
	}
	return snap, true, nil
}

// SnapshotCount reports how many snapshots are retained.
func (db *DB) SnapshotCount(ctx context.Context) (int, error) {
	var n int
	err := db.conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM snapshots")
	return n, err
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(ctx context.Context, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO events (at, tick, description, category) VALUES (?, ?, ?, ?)",
			e.At.UTC().Format(time.RFC3339Nano), e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

type eventRow struct {
	At          string `db:"at"`
	Tick        uint64 `db:"tick"`
	Description string `db:"description"`
	Category    string `db:"category"`
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT at, tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	events := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		at, err := time.Parse(time.RFC3339Nano, r.At)
		if err != nil {
			return nil, fmt.Errorf("event time %q: %w", r.At, err)
		}
		events = append(events, engine.Event{At: at, Tick: r.Tick, Description: r.Description, Category: r.Category})
	}
	return events, nil
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}
