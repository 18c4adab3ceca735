package dupescan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/progress"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

// fakeTx satisfies database.Tx without a database. The orchestrator only ever
// hands the transaction to the repositories, which are faked here too.
type fakeTx struct {
	database.Tx
}

type fakePeople struct {
	people []models.Person
}

func (f *fakePeople) ListPeople(ctx context.Context, q database.Queryer) ([]models.Person, error) {
	return f.people, nil
}

type fakePairRepo struct {
	lockBusy bool
	rows     map[string]models.MatchPair
	lastRun  *time.Time
	upserts  [][]models.MatchPair
	deletes  int
}

func newFakePairRepo() *fakePairRepo {
	return &fakePairRepo{rows: map[string]models.MatchPair{}}
}

func (f *fakePairRepo) TryLockExclusive(ctx context.Context, tx database.Tx) error {
	if f.lockBusy {
		return database.ErrLockBusy
	}
	return nil
}

func (f *fakePairRepo) ListAll(ctx context.Context, q database.Queryer) ([]models.MatchPair, error) {
	out := make([]models.MatchPair, 0, len(f.rows))
	for _, pair := range f.rows {
		out = append(out, pair)
	}
	return out, nil
}

func (f *fakePairRepo) LastRun(ctx context.Context, q database.Queryer) (*time.Time, error) {
	return f.lastRun, nil
}

func (f *fakePairRepo) DeleteNonConflict(ctx context.Context, q database.Queryer) error {
	f.deletes++
	for key, pair := range f.rows {
		if pair.Status != models.MatchPairStatusConflict {
			delete(f.rows, key)
		}
	}
	return nil
}

func (f *fakePairRepo) UpsertBatch(ctx context.Context, q database.Queryer, pairs []models.MatchPair) error {
	f.upserts = append(f.upserts, pairs)
	for _, pair := range pairs {
		f.rows[pair.Key()] = pair
	}
	return nil
}

func (f *fakePairRepo) seed(pairs ...models.MatchPair) {
	for _, pair := range pairs {
		f.rows[pair.Key()] = pair
	}
}

// scanPeople is a small population with two near-duplicate clusters: Smith
// John and Smithe John on name alone, and the Jane pairs that only clear the
// cutoff through a shared address and birthdate.
func scanPeople() []models.Person {
	dob := time.Date(1960, 5, 5, 0, 0, 0, 0, time.UTC)
	return []models.Person{
		{ID: "1", Data: map[string]any{"first_name": "John", "last_name": "Smith"}},
		{ID: "2", Data: map[string]any{"first_name": "John", "last_name": "Smithe"}},
		{ID: "3", Data: map[string]any{"first_name": "John", "last_name": "Jackson"}},
		{ID: "4", Data: map[string]any{"first_name": "Jackson", "last_name": "John"}},
		{ID: "5", Data: map[string]any{"first_name": "Jane", "last_name": "Doe"}},
		{ID: "6", DOB: &dob, Data: map[string]any{"first_name": "Jane", "last_name": "Doe", "address": "4/34 Smith St"}},
		{ID: "7", DOB: &dob, Data: map[string]any{"first_name": "Jane", "last_name": "Jones", "address": "4/34 Smith St"}},
	}
}

func newTestOrchestrator(repo *fakePairRepo, bus *progress.Bus) *Orchestrator {
	return NewOrchestrator(getTestLogger(), &fakePeople{people: scanPeople()}, repo, bus, 10000, 100000)
}

func TestOrchestratorFullScan(t *testing.T) {
	repo := newFakePairRepo()
	o := newTestOrchestrator(repo, progress.NewBus())

	summary, err := o.Run(context.Background(), fakeTx{}, "run-1", Options{Mode: ModeFull})
	require.NoError(t, err)

	assert.Equal(t, StateDone, summary.State)
	assert.Equal(t, 7, summary.People)
	assert.Equal(t, 4, summary.Compared)
	assert.Equal(t, 4, summary.Pairs)
	assert.Equal(t, 1, repo.deletes)

	require.Len(t, repo.upserts, 1)
	saved := repo.upserts[0]
	require.Len(t, saved, 4)

	// Strongest match first: the Jane pair carried by address and birthdate,
	// then the two name-identical pairs (tie broken by id), then Smith/Smithe.
	assert.Equal(t, [2]string{"6", "7"}, [2]string{saved[0].LowID, saved[0].HighID})
	assert.Equal(t, [2]string{"3", "4"}, [2]string{saved[1].LowID, saved[1].HighID})
	assert.Equal(t, [2]string{"5", "6"}, [2]string{saved[2].LowID, saved[2].HighID})
	assert.Equal(t, [2]string{"1", "2"}, [2]string{saved[3].LowID, saved[3].HighID})

	assert.InDelta(t, 0.7222, saved[0].ConfidenceValue(), 0.0005)
	assert.InDelta(t, 0.6111, saved[1].ConfidenceValue(), 0.0005)
	assert.InDelta(t, 0.6111, saved[2].ConfidenceValue(), 0.0005)
	assert.InDelta(t, 0.5760, saved[3].ConfidenceValue(), 0.0005)
}

func TestOrchestratorFullScanDropsStaleNewPairs(t *testing.T) {
	// Left over from an earlier scan; neither id is in the population anymore.
	stale := models.NewMatchPair("8", "9", 0.8)

	repo := newFakePairRepo()
	repo.seed(stale)
	o := newTestOrchestrator(repo, progress.NewBus())

	summary, err := o.Run(context.Background(), fakeTx{}, "run-1", Options{Mode: ModeFull})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Pairs)
	assert.Len(t, repo.rows, 4)
	_, ok := repo.rows[stale.Key()]
	assert.False(t, ok)
}

func TestOrchestratorFullScanIsStable(t *testing.T) {
	repo := newFakePairRepo()
	o := newTestOrchestrator(repo, progress.NewBus())

	first, err := o.Run(context.Background(), fakeTx{}, "run-1", Options{Mode: ModeFull})
	require.NoError(t, err)
	second, err := o.Run(context.Background(), fakeTx{}, "run-2", Options{Mode: ModeFull})
	require.NoError(t, err)

	assert.Equal(t, StateDone, second.State)
	assert.Equal(t, first.Pairs, second.Pairs)
	assert.Len(t, repo.rows, 4)
}

func TestOrchestratorLockBusy(t *testing.T) {
	repo := newFakePairRepo()
	repo.lockBusy = true
	bus := progress.NewBus()
	bus.Publish(models.ProgressEvent{RunID: "other", Phase: models.ProgressPhaseScan, Percent: 40})
	o := newTestOrchestrator(repo, bus)

	summary, err := o.Run(context.Background(), fakeTx{}, "run-1", Options{Mode: ModeFull})
	require.Error(t, err)

	assert.Equal(t, StateLockBusy, summary.State)
	assert.True(t, IsLockBusy(err))

	var lockErr *LockBusyError
	require.True(t, errors.As(err, &lockErr))
	require.NotNil(t, lockErr.Snapshot)
	assert.Equal(t, 40, lockErr.Snapshot.Percent)
	assert.Contains(t, err.Error(), "40%")

	// Nothing ran and nothing was written.
	assert.Empty(t, repo.upserts)
	assert.Equal(t, 0, repo.deletes)
}

func TestOrchestratorIncremental(t *testing.T) {
	lastRun := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	before := lastRun.Add(-time.Hour)
	after := lastRun.Add(time.Hour)

	withUpdates := func(updated ...string) []models.Person {
		people := scanPeople()
		for i := range people {
			at := before
			for _, id := range updated {
				if people[i].ID == id {
					at = after
				}
			}
			people[i].UpdatedAt = &at
		}
		return people
	}

	t.Run("nothing updated compares nothing", func(t *testing.T) {
		repo := newFakePairRepo()
		repo.lastRun = &lastRun
		repo.seed(
			models.NewMatchPair("1", "2", 0.576),
			models.NewMatchPair("3", "4", 0.611),
		)
		o := NewOrchestrator(getTestLogger(), &fakePeople{people: withUpdates()}, repo, progress.NewBus(), 10000, 100000)

		summary, err := o.Run(context.Background(), fakeTx{}, "run-1", Options{Mode: ModeIncremental})
		require.NoError(t, err)

		assert.Equal(t, StateDone, summary.State)
		assert.Equal(t, 0, summary.Compared)
		assert.Equal(t, 0, repo.deletes)
		assert.Len(t, repo.rows, 2)
	})

	t.Run("rescans only pairs touching updated people", func(t *testing.T) {
		repo := newFakePairRepo()
		repo.lastRun = &lastRun
		o := NewOrchestrator(getTestLogger(), &fakePeople{people: withUpdates("7")}, repo, progress.NewBus(), 10000, 100000)

		summary, err := o.Run(context.Background(), fakeTx{}, "run-1", Options{Mode: ModeIncremental})
		require.NoError(t, err)

		assert.Equal(t, 1, summary.Compared)
		require.Len(t, repo.upserts, 1)
		require.Len(t, repo.upserts[0], 1)
		assert.Equal(t, "6", repo.upserts[0][0].LowID)
		assert.Equal(t, "7", repo.upserts[0][0].HighID)
	})

	t.Run("first incremental run compares all candidates", func(t *testing.T) {
		repo := newFakePairRepo()
		o := NewOrchestrator(getTestLogger(), &fakePeople{people: withUpdates()}, repo, progress.NewBus(), 10000, 100000)

		summary, err := o.Run(context.Background(), fakeTx{}, "run-1", Options{Mode: ModeIncremental})
		require.NoError(t, err)

		assert.Equal(t, 4, summary.Compared)
		assert.Equal(t, 0, repo.deletes)
		assert.Len(t, repo.rows, 4)
	})
}

func TestOrchestratorExcludedPairSurvivesFullScan(t *testing.T) {
	excluded := models.NewMatchPair("1", "2", 0.58)
	excluded.MarkExcluded("twins, confirmed different people")

	repo := newFakePairRepo()
	repo.seed(excluded)
	o := newTestOrchestrator(repo, progress.NewBus())

	_, err := o.Run(context.Background(), fakeTx{}, "run-1", Options{Mode: ModeFull})
	require.NoError(t, err)

	pair, ok := repo.rows[excluded.Key()]
	require.True(t, ok)
	assert.Equal(t, models.MatchPairStatusExcluded, pair.Status)
	assert.Equal(t, 0.58, pair.ConfidenceValue())
	require.NotNil(t, pair.ExcludeReason)
	assert.Equal(t, "twins, confirmed different people", *pair.ExcludeReason)
}

func TestOrchestratorAllPairs(t *testing.T) {
	repo := newFakePairRepo()
	o := newTestOrchestrator(repo, progress.NewBus())

	summary, err := o.Run(context.Background(), fakeTx{}, "run-1", Options{Mode: ModeFull, AllPairs: true})
	require.NoError(t, err)

	// Every distinct pair of 7 people, though only the same 4 clear the cutoff.
	assert.Equal(t, 21, summary.Compared)
	assert.Equal(t, 4, summary.Pairs)
}

func TestOrchestratorCanceledContext(t *testing.T) {
	repo := newFakePairRepo()
	o := newTestOrchestrator(repo, progress.NewBus())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := o.Run(ctx, fakeTx{}, "run-1", Options{Mode: ModeFull})
	require.Error(t, err)
	assert.Equal(t, StateFailed, summary.State)
	assert.Empty(t, repo.upserts)
}
