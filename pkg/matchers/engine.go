package matchers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// uncertainScore stands in for a comparison that could not be made because
// one side is missing data. Halfway between "same" and "different", it keeps
// sparse records comparable without either rewarding or punishing the gap.
const uncertainScore = 0.5

type groupMatcher struct {
	group   models.FieldGroup
	matcher Matcher
}

// Engine holds the per-scan matching state: one matcher per enabled field
// group, the people ingested in load order, and the likely candidate sets
// produced by the blocking prescan.
type Engine struct {
	logger ectologger.Logger
	config models.MatcherConfig
	total  float64
	groups []groupMatcher
	order  []string
	likely map[string]map[string]struct{}
}

func NewEngine(logger ectologger.Logger, config models.MatcherConfig) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid matcher configuration")
	}

	engine := &Engine{
		logger: logger,
		config: config,
		total:  config.TotalWeight(),
		likely: map[string]map[string]struct{}{},
	}
	for _, group := range config.EnabledGroups() {
		engine.groups = append(engine.groups, groupMatcher{
			group:   group,
			matcher: newMatcher(group),
		})
	}
	return engine, nil
}

// Add ingests a person into every group matcher. People must be added before
// Prescan runs.
func (e *Engine) Add(p *models.Person) {
	for _, gm := range e.groups {
		gm.matcher.Prepare(p)
	}
	e.order = append(e.order, p.ID)
	e.likely[p.ID] = map[string]struct{}{}
}

// Prescan runs the blocking pass over every ingested person and then drops
// the blocking structures. A person's likely set ends up holding only ids
// that were ingested before it, so every candidate pair appears exactly once
// across all sets. onStep, when set, is called after each person.
func (e *Engine) Prescan(ctx context.Context, onStep func(done, total int)) {
	ctx, span := tracing.StartSpan(ctx, "matchers.Engine.Prescan")
	defer span.End()

	blockers := make([]Blocker, 0, len(e.groups))
	for _, gm := range e.groups {
		if b, ok := gm.matcher.(Blocker); ok {
			blockers = append(blockers, b)
		}
	}

	for i, id := range e.order {
		for _, b := range blockers {
			b.Block(id, e.likely[id])
		}
		if onStep != nil {
			onStep(i+1, len(e.order))
		}
	}
	for _, b := range blockers {
		b.FinishBlocking()
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"people":       len(e.order),
		"likely_pairs": e.LikelyPairCount(),
	}).Info("Prescan complete")
}

// People returns the ingested person ids in load order.
func (e *Engine) People() []string {
	return e.order
}

// Likely returns the ids blocked as candidates for the given person.
func (e *Engine) Likely(id string) map[string]struct{} {
	return e.likely[id]
}

// LikelyPairCount returns the number of candidate pairs the prescan found.
func (e *Engine) LikelyPairCount() int {
	count := 0
	for _, set := range e.likely {
		count += len(set)
	}
	return count
}

// Similarity computes the weighted composite score of two ingested people.
// Groups that cannot compare the pair contribute the uncertain score, so the
// result always lands in [0, 1].
func (e *Engine) Similarity(aID, bID string) float64 {
	score := 0.0
	for _, gm := range e.groups {
		sim := uncertainScore
		if v := gm.matcher.Similarity(aID, bID); v != nil {
			sim = *v
		}
		score += sim * (gm.group.Weight / e.total)
	}
	return score
}
