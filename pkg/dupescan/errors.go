package dupescan

import (
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

// LockBusyError reports that another session already holds the match pair
// table lock, so the requested scan never started. It carries the last
// progress snapshot of the running scan when one is known. It is an
// informational outcome: nothing was written and nothing needs rolling back
// beyond the empty transaction.
type LockBusyError struct {
	Snapshot *models.ProgressEvent
}

func (e *LockBusyError) Error() string {
	if e.Snapshot != nil {
		return e.Snapshot.Message()
	}
	return "duplicate scan already in progress"
}

// Unwrap lets errors.Is(err, database.ErrLockBusy) see through the wrapper.
func (e *LockBusyError) Unwrap() error {
	return database.ErrLockBusy
}

// IsLockBusy reports whether a scan failed to start because the table lock
// was held.
func IsLockBusy(err error) bool {
	return database.IsLockBusy(err)
}
