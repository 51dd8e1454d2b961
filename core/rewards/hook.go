package rewards

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"firechain/crypto"
)

// EraReport summarises the work done by OnEraEnd.
type EraReport struct {
	// Summary is nil when the era had already been computed.
	Summary     *EraSummary
	Settlements []*Settlement
	// Dropped lists queued validators removed because nothing was owed.
	Dropped []crypto.AccountID
}

// OnEraEnd computes the active era and settles every queued validator. A
// queued validator with nothing pending is dropped from the queue. Any other
// settlement error stops the hook.
func (e *Engine) OnEraEnd(ctx context.Context) (*EraReport, error) {
	if e == nil {
		return nil, ErrNotInitialised
	}
	ctx, span := e.start(ctx, "rewards.OnEraEnd")
	defer span.End()

	report := &EraReport{}
	summary, err := e.ComputeEra(ctx)
	switch {
	case errors.Is(err, ErrEraAlreadyComputed):
		e.logger.Warn("era already computed, settling queue only", "error", err)
	case err != nil:
		return report, failSpan(span, err)
	default:
		report.Summary = summary
	}

	queue, err := e.QueuedValidators()
	if err != nil {
		return report, failSpan(span, err)
	}
	for _, validator := range queue {
		settlement, err := e.Settle(ctx, validator)
		if errors.Is(err, ErrNoReward) {
			if err := e.ledger.Update(func(tx *Tx) error { return tx.Dequeue(validator) }); err != nil {
				return report, failSpan(span, err)
			}
			report.Dropped = append(report.Dropped, validator)
			continue
		}
		if settlement != nil {
			report.Settlements = append(report.Settlements, settlement)
		}
		if err != nil {
			return report, failSpan(span, fmt.Errorf("rewards: end of era: %w", err))
		}
	}
	span.SetAttributes(
		attribute.Int("rewards.settled", len(report.Settlements)),
		attribute.Int("rewards.dropped", len(report.Dropped)),
	)
	span.SetStatus(codes.Ok, "era closed")
	return report, nil
}
