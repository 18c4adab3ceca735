// Package dupescan runs batch duplicate-person scans: it loads the
// population, blocks likely pairs through the matching engine, scores them,
// and writes the bounded result set back under an exclusive table lock.
package dupescan

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/matchers"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/progress"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// State is the orchestrator's phase, reported in summaries and logs
type State string

const (
	StateInit         State = "INIT"
	StateLoad         State = "LOAD"
	StatePrescan      State = "PRESCAN"
	StateCrossCompare State = "CROSSCOMPARE"
	StateSave         State = "SAVE"
	StateDone         State = "DONE"
	StateLockBusy     State = "LOCK_BUSY" // terminal: another session held the lock
	StateFailed       State = "FAILED"
)

// Mode selects how much of the population a scan rescores
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// Options configure a single scan run
type Options struct {
	Mode Mode
	// AllPairs compares every pair instead of the blocked candidates.
	// Diagnostic only; quadratic in population size.
	AllPairs bool
	// Config overrides the default matcher configuration when set.
	Config *models.MatcherConfig
}

// Summary describes a finished (or refused) scan run
type Summary struct {
	RunID       string        `json:"run_id"`
	Mode        Mode          `json:"mode"`
	State       State         `json:"state"`
	People      int           `json:"people"`
	Compared    int           `json:"compared"`
	Pairs       int           `json:"pairs"`
	FinalCutoff float64       `json:"final_cutoff"`
	Duration    time.Duration `json:"duration"`
}

// PersonSource loads the population a scan compares.
type PersonSource interface {
	ListPeople(ctx context.Context, q database.Queryer) ([]models.Person, error)
}

// PairRepository is the persistence surface the orchestrator drives. Every
// call runs on the scan's own lock-holding transaction.
type PairRepository interface {
	TryLockExclusive(ctx context.Context, tx database.Tx) error
	ListAll(ctx context.Context, q database.Queryer) ([]models.MatchPair, error)
	LastRun(ctx context.Context, q database.Queryer) (*time.Time, error)
	DeleteNonConflict(ctx context.Context, q database.Queryer) error
	UpsertBatch(ctx context.Context, q database.Queryer, pairs []models.MatchPair) error
}

// Orchestrator runs one scan at a time through its phases. It holds no
// per-run state; everything scan-scoped lives in the run itself.
type Orchestrator struct {
	logger        ectologger.Logger
	people        PersonSource
	repo          PairRepository
	bus           *progress.Bus
	maxMatches    int
	progressFloor int
}

func NewOrchestrator(logger ectologger.Logger, people PersonSource, repo PairRepository, bus *progress.Bus, maxMatches, progressFloor int) *Orchestrator {
	return &Orchestrator{
		logger:        logger,
		people:        people,
		repo:          repo,
		bus:           bus,
		maxMatches:    maxMatches,
		progressFloor: progressFloor,
	}
}

// Run executes a scan inside the caller's transaction. The caller commits on
// success and rolls back on error; the exclusive table lock taken here lives
// exactly as long as that transaction. A LockBusyError means nothing ran.
func (o *Orchestrator) Run(ctx context.Context, tx database.Tx, runID string, opts Options) (*Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "dupescan.Orchestrator.Run")
	defer span.End()

	logger := o.logger.WithContext(ctx).WithField("run_id", runID)
	start := time.Now()
	summary := &Summary{RunID: runID, Mode: opts.Mode, State: StateInit}
	if summary.Mode == "" {
		summary.Mode = ModeFull
	}

	config := models.DefaultMatcherConfig()
	if opts.Config != nil {
		config = *opts.Config
	}

	if err := o.repo.TryLockExclusive(ctx, tx); err != nil {
		if database.IsLockBusy(err) {
			summary.State = StateLockBusy
			logger.Info("Duplicate scan refused, lock is busy")
			return summary, &LockBusyError{Snapshot: o.bus.Last()}
		}
		summary.State = StateFailed
		return summary, err
	}

	reporter := newReporter(o.bus, runID, o.progressFloor)

	// LOAD
	summary.State = StateLoad
	reporter.begin(models.ProgressPhaseLoad, 0)
	people, err := o.people.ListPeople(ctx, tx)
	if err != nil {
		summary.State = StateFailed
		return summary, errors.Wrap(err, "failed to load people")
	}
	stored, err := o.repo.ListAll(ctx, tx)
	if err != nil {
		summary.State = StateFailed
		return summary, errors.Wrap(err, "failed to load stored match pairs")
	}

	var lastRun *time.Time
	if summary.Mode == ModeIncremental {
		lastRun, err = o.repo.LastRun(ctx, tx)
		if err != nil {
			summary.State = StateFailed
			return summary, errors.Wrap(err, "failed to resolve last run time")
		}
	}

	// Only reviewed pairs carry over between scans. NEW rows are the previous
	// scan's output and are rescored from scratch.
	seed := make([]models.MatchPair, 0, len(stored))
	for _, pair := range stored {
		if pair.Status != models.MatchPairStatusNew {
			seed = append(seed, pair)
		}
	}

	store := NewStore(config.Cutoff, o.maxMatches)
	store.Seed(seed)

	engine, err := matchers.NewEngine(o.logger, config)
	if err != nil {
		summary.State = StateFailed
		return summary, err
	}
	for i := range people {
		engine.Add(&people[i])
	}
	summary.People = len(people)
	logger.WithFields(map[string]any{
		"people":       len(people),
		"stored_pairs": len(stored),
		"mode":         summary.Mode,
	}).Info("Duplicate scan loaded")

	// PRESCAN
	summary.State = StatePrescan
	reporter.begin(models.ProgressPhaseIndex, len(people))
	engine.Prescan(ctx, func(done, total int) {
		reporter.step(done)
	})

	// CROSSCOMPARE
	summary.State = StateCrossCompare
	total, generate := o.generator(engine, summary.Mode, opts.AllPairs, people, lastRun)
	reporter.begin(models.ProgressPhaseScan, total)

	compared := 0
	var runErr error
	generate(func(aID, bID string) bool {
		if compared%1024 == 0 && ctx.Err() != nil {
			runErr = ctx.Err()
			return false
		}
		store.Add(aID, bID, engine.Similarity(aID, bID))
		compared++
		reporter.step(compared)
		return true
	})
	if runErr != nil {
		summary.State = StateFailed
		return summary, errors.Wrap(runErr, "scan canceled")
	}
	summary.Compared = compared

	// SAVE
	summary.State = StateSave
	if summary.Mode == ModeIncremental {
		err = o.repo.UpsertBatch(ctx, tx, store.DirtyPairs())
	} else {
		if err = o.repo.DeleteNonConflict(ctx, tx); err == nil {
			err = o.repo.UpsertBatch(ctx, tx, store.NonConflictPairs())
		}
	}
	if err != nil {
		summary.State = StateFailed
		return summary, errors.Wrap(err, "failed to save match pairs")
	}

	summary.State = StateDone
	summary.Pairs = store.Len()
	summary.FinalCutoff = store.Cutoff()
	summary.Duration = time.Since(start)
	reporter.done()
	logger.WithFields(map[string]any{
		"compared":     summary.Compared,
		"pairs":        summary.Pairs,
		"final_cutoff": summary.FinalCutoff,
		"duration":     summary.Duration.String(),
	}).Info("Duplicate scan complete")
	return summary, nil
}

func (o *Orchestrator) generator(engine *matchers.Engine, mode Mode, allPairs bool, people []models.Person, lastRun *time.Time) (int, PairGenerator) {
	if allPairs {
		return AllPairs(engine.People())
	}
	if mode == ModeIncremental && lastRun != nil {
		updated := map[string]struct{}{}
		for i := range people {
			if people[i].UpdatedSince(*lastRun) {
				updated[people[i].ID] = struct{}{}
			}
		}
		return UpdatedPairs(engine, updated)
	}
	return LikelyPairs(engine)
}

// reporter publishes progress events at whole-percent steps. Small phases
// announce only their start; percent ticks begin once a phase's total work
// clears the floor, which keeps short scans quiet.
type reporter struct {
	bus         *progress.Bus
	runID       string
	floor       int
	phase       models.ProgressPhase
	total       int
	lastPercent int
	started     time.Time
}

func newReporter(bus *progress.Bus, runID string, floor int) *reporter {
	return &reporter{bus: bus, runID: runID, floor: floor}
}

func (r *reporter) begin(phase models.ProgressPhase, total int) {
	r.phase = phase
	r.total = total
	r.lastPercent = 0
	r.started = time.Now()
	r.publish(0, 0)
}

func (r *reporter) step(done int) {
	if r.total < r.floor || r.total == 0 {
		return
	}
	percent := done * 100 / r.total
	if percent <= r.lastPercent {
		return
	}
	r.lastPercent = percent

	eta := 0
	if done > 0 && done < r.total {
		perItem := time.Since(r.started) / time.Duration(done)
		eta = int((perItem * time.Duration(r.total-done)).Seconds())
	}
	r.publish(percent, eta)
}

func (r *reporter) done() {
	r.publish(100, 0)
}

func (r *reporter) publish(percent, eta int) {
	r.bus.Publish(models.ProgressEvent{
		RunID:      r.runID,
		Phase:      r.phase,
		Percent:    percent,
		ETASeconds: eta,
		At:         time.Now().UTC(),
	})
}
