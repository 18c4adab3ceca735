package database

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Postgres error code for lock_not_available, returned by NOWAIT lock
// attempts when another session already holds a conflicting lock.
const pqLockNotAvailable = "55P03"

// ErrLockBusy is returned by TryLockExclusive when another session holds the
// table lock. Callers treat it as an informational outcome, not a failure.
var ErrLockBusy = errors.New("table lock is held by another session")

// TryLockExclusive takes an EXCLUSIVE table lock inside the transaction
// without waiting. The lock is released when the transaction commits or
// rolls back. Returns ErrLockBusy when another session holds a conflicting
// lock, so callers can fail fast instead of queueing behind a long scan.
func TryLockExclusive(ctx context.Context, tx Tx, table string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("LOCK TABLE %s IN EXCLUSIVE MODE NOWAIT", table))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqLockNotAvailable {
			return ErrLockBusy
		}
		return errors.Wrapf(err, "failed to lock table %s", table)
	}
	return nil
}

// LockShare takes a SHARE table lock inside the transaction, blocking until
// it is granted. Interactive mutators take it briefly so their writes cannot
// interleave with a scan's EXCLUSIVE lock.
func LockShare(ctx context.Context, tx Tx, table string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("LOCK TABLE %s IN SHARE MODE", table))
	if err != nil {
		return errors.Wrapf(err, "failed to share lock table %s", table)
	}
	return nil
}

// IsLockBusy reports whether err came from a NOWAIT lock attempt that lost.
func IsLockBusy(err error) bool {
	return errors.Is(err, ErrLockBusy)
}
