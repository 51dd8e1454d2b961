package rewards

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"firechain/core/events"
	"firechain/crypto"
)

// Request admits validator to the claim queue. Any non-zero caller may
// request on behalf of any validator.
func (e *Engine) Request(ctx context.Context, caller, validator crypto.AccountID) error {
	if e == nil {
		return ErrNotInitialised
	}
	_, span := e.start(ctx, "rewards.Request", trace.WithAttributes(
		attribute.String("rewards.caller", caller.String()),
		attribute.String("rewards.validator", validator.String()),
	))
	defer span.End()

	if caller.IsZero() {
		e.metrics.ObserveRequest("invalid_caller")
		return failSpan(span, ErrInvalidCaller)
	}
	var depth int
	err := e.ledger.Update(func(tx *Tx) error {
		pending, err := tx.ValidatorPending(validator)
		if err != nil {
			return err
		}
		if pending.IsZero() {
			return ErrNoReward
		}
		if err := tx.Enqueue(validator); err != nil {
			return err
		}
		queue, err := tx.Queue()
		depth = len(queue)
		return err
	})
	switch {
	case errors.Is(err, ErrNoReward):
		e.metrics.ObserveRequest("no_reward")
		return failSpan(span, err)
	case errors.Is(err, ErrAlreadyQueued):
		e.metrics.ObserveRequest("already_queued")
		return failSpan(span, err)
	case err != nil:
		e.metrics.ObserveRequest("error")
		return failSpan(span, err)
	}
	e.emit([]events.Event{events.RewardQueued{Validator: validator}})
	e.metrics.ObserveRequest("queued")
	e.metrics.SetQueueDepth(depth)
	e.logger.Info("reward request queued", "validator", validator.String(), "caller", caller.String())
	span.SetStatus(codes.Ok, "queued")
	return nil
}

// Settle pays validator and every nominator recorded under it from the pool.
// A recipient whose transfer fails keeps its pending balance and the remaining
// recipients are still paid. A pool that cannot cover a payout produces an
// insufficient balance notification; any other currency error is logged and
// reported on the settlement. Unpaid nominators stay in the validator's
// nominator index until a later settlement pays them.
//
// Each pending entry is cleared, and its receipts recorded, before the
// transfer is made and restored when the transfer fails, so a storage failure
// can delay a payout but never repeat one. Settle does not require a prior
// Request.
func (e *Engine) Settle(ctx context.Context, validator crypto.AccountID) (*Settlement, error) {
	if e == nil {
		return nil, ErrNotInitialised
	}
	_, span := e.start(ctx, "rewards.Settle", trace.WithAttributes(
		attribute.String("rewards.validator", validator.String()),
	))
	defer span.End()

	var nominators []crypto.AccountID
	err := e.ledger.View(func(tx *Tx) error {
		pending, err := tx.ValidatorPending(validator)
		if err != nil {
			return err
		}
		if pending.IsZero() {
			return ErrNoReward
		}
		nominators, err = tx.Nominators(validator)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNoReward) {
			e.logger.Error("reward settlement failed", "validator", validator.String(), "error", err)
		}
		return nil, failSpan(span, err)
	}

	settlement := &Settlement{Validator: validator}
	if err := e.pay(settlement, validator, RoleValidator, validatorPendingKey(validator)); err != nil {
		return e.abortSettle(span, settlement, err)
	}
	for _, nominator := range nominators {
		if err := e.pay(settlement, nominator, RoleNominator, nominatorPendingKey(validator, nominator)); err != nil {
			return e.abortSettle(span, settlement, err)
		}
	}

	var depth int
	err = e.ledger.Update(func(tx *Tx) error {
		indexed, err := tx.Nominators(validator)
		if err != nil {
			return err
		}
		remaining := make([]crypto.AccountID, 0, len(indexed))
		for _, nominator := range indexed {
			owed, err := tx.NominatorPending(validator, nominator)
			if err != nil {
				return err
			}
			if !owed.IsZero() {
				remaining = append(remaining, nominator)
			}
		}
		if err := tx.SetNominators(validator, remaining); err != nil {
			return err
		}
		if err := tx.Dequeue(validator); err != nil {
			return err
		}
		queue, err := tx.Queue()
		depth = len(queue)
		return err
	})
	if err != nil {
		return e.abortSettle(span, settlement, err)
	}

	e.emit(settlement.Events)
	e.metrics.SetQueueDepth(depth)
	e.logger.Info("reward settlement complete",
		"validator", validator.String(),
		"paid", len(settlement.Paid),
		"unpaid", len(settlement.Unpaid),
		"amount", settlement.PaidTotal().Dec())
	span.SetAttributes(
		attribute.Int("rewards.paid", len(settlement.Paid)),
		attribute.Int("rewards.unpaid", len(settlement.Unpaid)),
	)
	span.SetStatus(codes.Ok, "settled")
	return settlement, nil
}

// abortSettle reports a settlement stopped by a ledger error. Transfers made
// before the failure stand and their notifications are still emitted.
func (e *Engine) abortSettle(span trace.Span, s *Settlement, err error) (*Settlement, error) {
	e.emit(s.Events)
	e.logger.Error("reward settlement interrupted",
		"validator", s.Validator.String(),
		"paid", len(s.Paid),
		"error", err)
	return s, failSpan(span, fmt.Errorf("rewards: settle %s: %w", s.Validator, err))
}

// pay moves the balance pending under pendingKey to recipient. The pending
// entry is cleared and the receipts incremented in one commit before the
// transfer; a failed transfer puts both back and records the recipient as
// unpaid. Only ledger errors are returned.
func (e *Engine) pay(s *Settlement, recipient crypto.AccountID, role Role, pendingKey []byte) error {
	var amount *uint256.Int
	err := e.ledger.Update(func(tx *Tx) error {
		owed, err := tx.takeBalance(pendingKey)
		if err != nil {
			return err
		}
		amount = owed
		if owed.IsZero() {
			return nil
		}
		_, err = tx.AddLifetimeReceipts(recipient, owed)
		return err
	})
	if err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}

	payout := Payout{Recipient: recipient, Role: role, Amount: new(uint256.Int).Set(amount)}
	transferErr := e.deps.Currency.Transfer(e.pool, recipient, amount, true)
	if transferErr == nil {
		s.Paid = append(s.Paid, payout)
		s.Events = append(s.Events, events.RewardDistributed{Recipient: recipient, Amount: payout.Amount})
		e.metrics.ObservePayout(string(role), "paid", amount)
		return nil
	}

	err = e.ledger.Update(func(tx *Tx) error {
		if _, err := tx.addBalance(pendingKey, amount); err != nil {
			return err
		}
		return tx.SubLifetimeReceipts(recipient, amount)
	})
	if err != nil {
		e.metrics.ObservePayout(string(role), "error", amount)
		return fmt.Errorf("restore %s pending %s after failed transfer (%v): %w", recipient, amount.Dec(), transferErr, err)
	}
	payout.Err = transferErr
	s.Unpaid = append(s.Unpaid, payout)
	if errors.Is(transferErr, ErrInsufficientBalance) {
		s.Events = append(s.Events, events.RewardInsufficientBalance{Recipient: recipient})
		e.metrics.ObservePayout(string(role), "insufficient", amount)
		e.logger.Warn("reward pool cannot cover payout",
			"recipient", recipient.String(),
			"role", string(role),
			"amount", amount.Dec())
		return nil
	}
	e.metrics.ObservePayout(string(role), "rejected", amount)
	e.logger.Warn("reward transfer rejected",
		"recipient", recipient.String(),
		"role", string(role),
		"amount", amount.Dec(),
		"error", transferErr)
	return nil
}

// Claim requests and immediately settles validator.
func (e *Engine) Claim(ctx context.Context, caller, validator crypto.AccountID) (*Settlement, error) {
	if err := e.Request(ctx, caller, validator); err != nil {
		return nil, err
	}
	return e.Settle(ctx, validator)
}

// PendingReward returns the unclaimed reward of validator.
func (e *Engine) PendingReward(validator crypto.AccountID) (*uint256.Int, error) {
	if e == nil {
		return nil, ErrNotInitialised
	}
	return e.ledger.ValidatorPending(validator)
}

// NominatorPendingReward returns what nominator is owed for backing validator.
func (e *Engine) NominatorPendingReward(validator, nominator crypto.AccountID) (*uint256.Int, error) {
	if e == nil {
		return nil, ErrNotInitialised
	}
	return e.ledger.NominatorPending(validator, nominator)
}

// LifetimeReceipts returns the total reward ever paid to account.
func (e *Engine) LifetimeReceipts(account crypto.AccountID) (*uint256.Int, error) {
	if e == nil {
		return nil, ErrNotInitialised
	}
	return e.ledger.LifetimeReceipts(account)
}

// QueuedValidators lists the validators waiting for settlement.
func (e *Engine) QueuedValidators() ([]crypto.AccountID, error) {
	if e == nil {
		return nil, ErrNotInitialised
	}
	return e.ledger.Queue()
}

// EraSummary returns what was credited for era, if it is still retained.
func (e *Engine) EraSummary(era uint32) (*EraSummary, bool, error) {
	if e == nil {
		return nil, false, ErrNotInitialised
	}
	return e.ledger.EraSummary(era)
}
