package database

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-booking-core/internal/store"
)

// MySQL server error numbers the store cares about.
const (
	errDupEntry        = 1062
	errNoReferencedRow = 1452
	errLockWaitTimeout = 1205
	errLockDeadlock    = 1213
)

// Classify maps duplicate keys to store.ErrDuplicate, foreign keys with
// no parent row to store.ErrMissingReference, and lock wait timeouts or
// deadlocks to store.ErrLockTimeout.  The driver error stays
// in the chain for logging.  Other errors are returned unchanged.
func Classify(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case errDupEntry:
		return errors.Join(store.ErrDuplicate, err)
	case errNoReferencedRow:
		return errors.Join(store.ErrMissingReference, err)
	case errLockWaitTimeout, errLockDeadlock:
		return errors.Join(store.ErrLockTimeout, err)
	}
	return err
}
