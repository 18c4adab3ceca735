// Package processor applies external match pair decisions arriving on the
// decision topic.
package processor

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/internal/repositories/matchpair"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Processor turns consumed decision messages into match pair status updates
type Processor struct {
	db     database.DB
	pairs  *matchpair.Repository
	logger ectologger.Logger
}

// New creates a new decision processor
func New(db database.DB, pairs *matchpair.Repository, logger ectologger.Logger) *Processor {
	return &Processor{
		db:     db,
		pairs:  pairs,
		logger: logger,
	}
}

// Handle applies one pair decision inside its own transaction. It takes a
// brief SHARE lock on the pair table first, so decisions serialize against a
// running scan instead of interleaving with its save.
func (p *Processor) Handle(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Handle")
	defer span.End()

	decision := msg.Decision
	if decision == nil {
		return nil
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"type":    decision.Type,
		"low_id":  decision.LowID,
		"high_id": decision.HighID,
	})

	txCtx, tx, err := p.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := database.LockShare(txCtx, tx, matchpair.Table); err != nil {
		return err
	}

	switch decision.Type {
	case kafka.DecisionPairExcluded:
		err = p.pairs.Exclude(txCtx, tx, decision.LowID, decision.HighID, decision.Reason)
	case kafka.DecisionPairConflict:
		err = p.pairs.MarkConflict(txCtx, tx, decision.LowID, decision.HighID)
	}
	if err != nil {
		if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
			// The pair was evicted or never kept; retrying can't help.
			log.Warn("Decision targets a pair that does not exist, dropping")
			return nil
		}
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return err
	}

	log.Info("Applied match pair decision")
	return nil
}
