// Package server coordinates the poker engine against the store: every
// operation loads fresh rows inside a per-table transaction, runs the pure
// engine on them, persists what changed and pokes the notifier after
// commit.
package server

import (
	"context"

	"github.com/coder/quartz"
	"github.com/decred/slog"

	"github.com/feltcraft/dealerd/pkg/notify"
	"github.com/feltcraft/dealerd/pkg/poker"
	"github.com/feltcraft/dealerd/pkg/server/internal/db"
)

// Store is the persistence layer, re-exported so callers outside this
// package tree can open one.
type Store = db.Store

// OpenStore opens the database behind dsn.
func OpenStore(dsn string, log slog.Logger) (*Store, error) {
	return db.Open(dsn, log)
}

// Config collects the server's dependencies.
type Config struct {
	Store    *db.Store
	Notifier notify.Notifier
	Log      slog.Logger
	Metrics  *Metrics

	// Clock is injectable for tests; nil means the real clock.
	Clock quartz.Clock

	// MaxRetries bounds how often a table operation is re-run after a
	// store conflict. Zero means the default of 3.
	MaxRetries int
}

// Server is the table coordinator.
type Server struct {
	store      *db.Store
	notifier   notify.Notifier
	log        slog.Logger
	clock      quartz.Clock
	metrics    *Metrics
	maxRetries int
}

// New builds a Server from its config.
func New(cfg Config) *Server {
	clock := cfg.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = &notify.LogNotifier{Log: cfg.Log}
	}
	return &Server{
		store:      cfg.Store,
		notifier:   notifier,
		log:        cfg.Log,
		clock:      clock,
		metrics:    metrics,
		maxRetries: retries,
	}
}

// withTableTx runs fn inside a table-scoped transaction, committing on nil
// and rolling back on error. A StoreConflict rolls back and re-runs fn on a
// fresh transaction, up to the retry bound; fn must therefore be free of
// side effects outside the transaction.
func (s *Server) withTableTx(ctx context.Context, tableID string, fn func(tx *db.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.StoreRetries.Inc()
			s.log.Debugf("Retrying operation on table %s after conflict (attempt %d)", tableID, attempt)
		}
		tx, err := s.store.Begin(ctx, tableID)
		if err != nil {
			lastErr = err
			if poker.Retryable(err) {
				continue
			}
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			lastErr = err
			if poker.Retryable(err) {
				continue
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			lastErr = err
			if poker.Retryable(err) {
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

// notifyTable pokes listeners after a successful commit.
func (s *Server) notifyTable(tableID string) {
	s.notifier.TableUpdated(tableID)
}

// requireDealer loads the table and checks the caller owns it.
func requireDealer(tx *db.Tx, tableID, callerID string) (*poker.Table, error) {
	tbl, err := tx.GetTable(tableID)
	if err != nil {
		return nil, err
	}
	if tbl.DealerID != callerID {
		return nil, poker.E(poker.KindForbidden, "user %s is not the dealer of table %s", callerID, tableID)
	}
	return tbl, nil
}
