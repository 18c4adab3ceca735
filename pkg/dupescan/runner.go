package dupescan

import (
	"context"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appcontext "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/progress"
)

// Runner launches detached scan workers. A worker outlives the request that
// started it and owns the scan transaction end to end: the exclusive table
// lock taken inside it is released by its final commit or rollback.
type Runner struct {
	logger       ectologger.Logger
	db           database.DB
	orchestrator *Orchestrator
	bus          *progress.Bus

	mu     sync.Mutex
	active bool
}

func NewRunner(logger ectologger.Logger, db database.DB, orchestrator *Orchestrator, bus *progress.Bus) *Runner {
	return &Runner{
		logger:       logger,
		db:           db,
		orchestrator: orchestrator,
		bus:          bus,
	}
}

// Start begins a scan in the background and returns its run id. When a scan
// is already running in this process it returns a LockBusyError immediately,
// without touching the database; scans running elsewhere are caught by the
// table lock inside the worker.
func (r *Runner) Start(ctx context.Context, opts Options) (string, error) {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return "", &LockBusyError{Snapshot: r.bus.Last()}
	}
	r.active = true
	r.mu.Unlock()

	runID := uuid.NewString()
	scanCtx := appcontext.SetScanRunID(context.WithoutCancel(ctx), runID)
	go r.run(scanCtx, runID, opts)
	return runID, nil
}

// Running reports whether this process currently has a scan in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Runner) run(ctx context.Context, runID string, opts Options) {
	defer func() {
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
	}()

	logger := r.logger.WithContext(ctx).WithField("run_id", runID)

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		logger.WithError(err).Error("Failed to open scan transaction")
		return
	}
	// Rollback with the pre-transaction context so it actually fires; it is
	// a no-op once the transaction committed.
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	summary, err := r.orchestrator.Run(txCtx, tx, runID, opts)
	if err != nil {
		if IsLockBusy(err) {
			logger.Info(err.Error())
			return
		}
		logger.WithError(err).WithField("state", string(summary.State)).Error("Duplicate scan failed")
		return
	}

	if err := tx.Commit(txCtx); err != nil {
		logger.WithError(err).Error("Failed to commit scan transaction")
		return
	}

	logger.WithFields(map[string]any{
		"mode":     string(summary.Mode),
		"people":   summary.People,
		"compared": summary.Compared,
		"pairs":    summary.Pairs,
	}).Info("Duplicate scan worker finished")
}
