// Package repository is the MySQL implementation of store.Store and of
// the service's Catalog.  Row locks are InnoDB's: every Lock* method is a
// SELECT ... FOR UPDATE inside the surrounding transaction.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cinema-booking-core/internal/database"
	"github.com/iliyamo/cinema-booking-core/internal/store"
)

// Store runs the reservation core against MySQL.
type Store struct {
	db *sqlx.DB
}

// NewStore returns a Store bound to db.
func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

var _ store.Store = (*Store)(nil)

// WithinTx runs fn inside a READ COMMITTED transaction.  Locking reads see
// the latest committed row regardless, and READ COMMITTED avoids gap
// locks on the range scans.  Lock wait timeouts and deadlocks surface as
// store.ErrLockTimeout.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return database.Classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
		return database.Classify(err)
	}
	if err := tx.Commit(); err != nil {
		return database.Classify(err)
	}
	committed = true
	return nil
}

// sqlTx implements store.Tx on one *sqlx.Tx.
type sqlTx struct {
	tx *sqlx.Tx
}

var _ store.Tx = (*sqlTx)(nil)

// notFound turns sql.ErrNoRows into the given sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
