package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/decred/slog"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/feltcraft/dealerd/pkg/poker"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store wraps the SQL connection plus the per-table write locks. All state
// mutations for one table happen inside a Tx obtained from Begin, which
// holds that table's lock for the duration of the transaction.
type Store struct {
	db     *sql.DB
	driver string
	log    slog.Logger

	mu     sync.Mutex
	tables map[string]*sync.Mutex
}

// Open connects to the database named by dsn and applies the schema. A dsn
// starting with "postgres://" or containing "host=" selects the Postgres
// driver; anything else is treated as a SQLite file path.
func Open(dsn string, log slog.Logger) (*Store, error) {
	driver := DriverSQLite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		driver = DriverPostgres
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	if driver == DriverSQLite {
		// A single writer keeps SQLITE_BUSY out of the happy path; the
		// per-table locks already serialize writes above this layer.
		sqlDB.SetMaxOpenConns(1)
	}

	s := &Store{
		db:     sqlDB,
		driver: driver,
		log:    log,
		tables: make(map[string]*sync.Mutex),
	}
	if err := s.createTables(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver reports which SQL driver the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) tableLock(tableID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.tables[tableID]
	if !ok {
		l = &sync.Mutex{}
		s.tables[tableID] = l
	}
	return l
}

// Begin opens a transaction scoped to one table, taking that table's write
// lock first. Commit or Rollback releases the lock; exactly one of them
// must be called.
func (s *Store) Begin(ctx context.Context, tableID string) (*Tx, error) {
	lock := s.tableLock(tableID)
	lock.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		lock.Unlock()
		return nil, mapError(err, "failed to begin transaction")
	}
	return &Tx{tx: tx, store: s, lock: lock}, nil
}

// BeginGlobal opens a transaction not tied to any table, for cross-table
// reads and user account updates.
func (s *Store) BeginGlobal(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err, "failed to begin transaction")
	}
	return &Tx{tx: tx, store: s}, nil
}

// Tx is a single table-scoped transaction. Every read inside it sees the
// committed state as of Begin; every mutation is atomic with the rest.
type Tx struct {
	tx    *sql.Tx
	store *Store
	lock  *sync.Mutex
	done  bool
}

// Commit commits and releases the table lock.
func (t *Tx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.tx.Commit()
	if t.lock != nil {
		t.lock.Unlock()
	}
	if err != nil {
		return mapError(err, "failed to commit transaction")
	}
	return nil
}

// Rollback aborts and releases the table lock. Safe to defer after Begin;
// it is a no-op once Commit ran.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.tx.Rollback()
	if t.lock != nil {
		t.lock.Unlock()
	}
	return err
}

// rebind rewrites "?" placeholders to "$N" for Postgres. Queries are
// written in SQLite form throughout this package.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (t *Tx) exec(query string, args ...interface{}) (sql.Result, error) {
	return t.tx.Exec(t.store.rebind(query), args...)
}

func (t *Tx) queryRow(query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRow(t.store.rebind(query), args...)
}

func (t *Tx) query(query string, args ...interface{}) (*sql.Rows, error) {
	return t.tx.Query(t.store.rebind(query), args...)
}

// mapError classifies driver errors. Serialization and lock contention
// failures become KindStoreConflict so callers can retry the whole
// transaction; everything else is wrapped as-is.
func mapError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)

	if sqliteErr, ok := err.(sqlite3.Error); ok {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return poker.Wrap(poker.KindStoreConflict, err, "%s", msg)
		}
	}
	if pqErr, ok := err.(*pq.Error); ok {
		// 40001 serialization_failure, 40P01 deadlock_detected.
		if pqErr.Code == "40001" || pqErr.Code == "40P01" {
			return poker.Wrap(poker.KindStoreConflict, err, "%s", msg)
		}
	}
	return fmt.Errorf("%s: %v", msg, err)
}

// isCheckViolation reports whether the error is a CHECK constraint failure.
func isCheckViolation(err error) bool {
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck
	}
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23514"
	}
	return false
}

func (s *Store) createTables() error {
	eventPK := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		eventPK = "BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'player',
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS poker_tables (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			dealer_id TEXT NOT NULL REFERENCES users(id),
			small_blind BIGINT NOT NULL,
			big_blind BIGINT NOT NULL,
			min_buy_in BIGINT NOT NULL,
			max_buy_in BIGINT NOT NULL,
			max_seats INTEGER NOT NULL,
			blind_step_seconds BIGINT NOT NULL DEFAULT 0,
			blind_started_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS seats (
			id TEXT PRIMARY KEY,
			table_id TEXT NOT NULL REFERENCES poker_tables(id),
			seat_number INTEGER NOT NULL,
			player_id TEXT NOT NULL UNIQUE REFERENCES users(id),
			buy_in BIGINT NOT NULL CHECK (buy_in >= 0),
			starting_balance BIGINT NOT NULL DEFAULT 0,
			current_bet BIGINT NOT NULL DEFAULT 0,
			cards TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'active',
			last_action TEXT NOT NULL DEFAULT '',
			hand_type TEXT NOT NULL DEFAULT '',
			hand_description TEXT NOT NULL DEFAULT '',
			win_amount BIGINT NOT NULL DEFAULT 0,
			winning_cards TEXT NOT NULL DEFAULT '[]',
			UNIQUE (table_id, seat_number)
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			table_id TEXT NOT NULL REFERENCES poker_tables(id),
			state TEXT NOT NULL,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			dealer_button_seat_id TEXT NOT NULL DEFAULT '',
			assigned_seat_id TEXT NOT NULL DEFAULT '',
			community_cards TEXT NOT NULL DEFAULT '[]',
			pot_total BIGINT NOT NULL DEFAULT 0,
			bet_count INTEGER NOT NULL DEFAULT 0,
			required_bet_count INTEGER NOT NULL DEFAULT 0,
			effective_small_blind BIGINT NOT NULL DEFAULT 0,
			effective_big_blind BIGINT NOT NULL DEFAULT 0,
			turn_start_time TIMESTAMP,
			side_pots TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS game_events (
			id ` + eventPK + `,
			table_id TEXT NOT NULL,
			game_id TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			details TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_game_events_table ON game_events(table_id, id)`,
		`CREATE TABLE IF NOT EXISTS pi_devices (
			id TEXT PRIMARY KEY,
			serial TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			table_id TEXT NOT NULL REFERENCES poker_tables(id),
			last_seen_at TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %v", err)
		}
	}
	return nil
}
