package rewards

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"firechain/core/events"
	"firechain/crypto"
)

type nominatorCredit struct {
	nominator crypto.AccountID
	amount    *uint256.Int
}

type validatorCredit struct {
	validator  crypto.AccountID
	amount     *uint256.Int
	nominators []nominatorCredit
}

// ComputeEra credits the active era's budget to validators and nominators.
// Nothing is written when any validator fails to resolve or any provider
// errors. An era can only be computed once.
func (e *Engine) ComputeEra(ctx context.Context) (*EraSummary, error) {
	if e == nil {
		return nil, ErrNotInitialised
	}
	_, span := e.start(ctx, "rewards.ComputeEra")
	defer span.End()

	era, err := e.deps.Points.ActiveEra()
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("rewards: active era: %w", err))
	}
	span.SetAttributes(attribute.Int64("rewards.era", int64(era)))

	validators, err := e.resolveValidators()
	if err != nil {
		return nil, failSpan(span, err)
	}
	totalPoints, err := e.deps.Points.TotalPoints(era)
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("rewards: total points for era %d: %w", era, err))
	}

	budget := e.cfg.EraBudget()
	credits, err := e.planEra(era, totalPoints, budget, validators)
	if err != nil {
		return nil, failSpan(span, err)
	}

	summary := EraSummary{
		Era:                era,
		TotalPoints:        totalPoints,
		Budget:             budget,
		ValidatorsCredited: new(uint256.Int),
		NominatorsCredited: new(uint256.Int),
		Validators:         uint32(len(credits)),
		ComputedAt:         uint64(e.clock().Unix()),
	}
	err = e.ledger.Update(func(tx *Tx) error {
		if _, ok, err := tx.EraSummary(era); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("%w: era %d", ErrEraAlreadyComputed, era)
		}
		last, ok, err := tx.LastEra()
		if err != nil {
			return err
		}
		if ok && era <= last {
			return fmt.Errorf("%w: era %d not after %d", ErrEraAlreadyComputed, era, last)
		}
		for _, credit := range credits {
			if _, err := tx.AddValidatorPending(credit.validator, credit.amount); err != nil {
				return err
			}
			summary.ValidatorsCredited.Add(summary.ValidatorsCredited, credit.amount)
			for _, nc := range credit.nominators {
				if _, err := tx.AddNominatorPending(credit.validator, nc.nominator, nc.amount); err != nil {
					return err
				}
				summary.NominatorsCredited.Add(summary.NominatorsCredited, nc.amount)
			}
		}
		return tx.PutEraSummary(summary, e.cfg.HistoryLength)
	})
	if err != nil {
		return nil, failSpan(span, err)
	}

	credited := summary.Credited()
	e.emit([]events.Event{events.RewardEraComputed{
		Era:        era,
		Budget:     copyBalance(budget),
		Credited:   credited,
		Validators: summary.Validators,
	}})
	e.metrics.ObserveEraComputed(era, budget, credited, summary.Dust())
	e.logger.Info("era rewards computed",
		"era", era,
		"budget", budget.Dec(),
		"credited", credited.Dec(),
		"dust", summary.Dust().Dec(),
		"validators", summary.Validators)
	span.SetAttributes(attribute.String("rewards.credited", credited.Dec()))
	span.SetStatus(codes.Ok, "era computed")
	out := summary.Clone()
	return &out, nil
}

// resolveValidators maps the current validator set to accounts, dropping
// duplicates. Any id that fails to resolve aborts the computation.
func (e *Engine) resolveValidators() ([]crypto.AccountID, error) {
	ids, err := e.deps.Validators.CurrentValidators()
	if err != nil {
		return nil, fmt.Errorf("rewards: current validators: %w", err)
	}
	seen := make(map[crypto.AccountID]struct{}, len(ids))
	out := make([]crypto.AccountID, 0, len(ids))
	for _, id := range ids {
		account, err := e.resolver.AccountOf(id)
		if err != nil {
			if !errors.Is(err, ErrUnresolvedValidator) {
				err = fmt.Errorf("%w: %q: %v", ErrUnresolvedValidator, id, err)
			}
			return nil, err
		}
		if account.IsZero() {
			return nil, fmt.Errorf("%w: %q is the zero account", ErrUnresolvedValidator, id)
		}
		if _, dup := seen[account]; dup {
			continue
		}
		seen[account] = struct{}{}
		out = append(out, account)
	}
	return out, nil
}

// planEra computes every credit for the era without touching the ledger.
func (e *Engine) planEra(era, totalPoints uint32, budget *uint256.Int, validators []crypto.AccountID) ([]validatorCredit, error) {
	eraReward := e.precision.FromScaled(budget)
	var (
		credits   []validatorCredit
		sumPoints uint64
	)
	for _, validator := range validators {
		points, err := e.deps.Points.PointsOf(validator, era)
		if err != nil {
			return nil, fmt.Errorf("rewards: points of %s: %w", validator, err)
		}
		if points == 0 {
			continue
		}
		sumPoints += uint64(points)
		if points > totalPoints || sumPoints > uint64(totalPoints) {
			return nil, fmt.Errorf("%w: era %d validator %s has %d of %d", ErrInvalidPoints, era, validator, points, totalPoints)
		}
		share := new(big.Rat).SetFrac64(int64(points), int64(totalPoints))
		share.Mul(share, eraReward)
		credit, err := e.splitShare(validator, era, share)
		if err != nil {
			return nil, err
		}
		credits = append(credits, credit)
	}
	return credits, nil
}

// splitShare divides a validator's share between the validator and the
// nominators backing it.
func (e *Engine) splitShare(validator crypto.AccountID, era uint32, share *big.Rat) (validatorCredit, error) {
	credit := validatorCredit{validator: validator}
	exposure, err := e.deps.Exposures.ExposureOf(validator, era)
	if err != nil {
		return credit, fmt.Errorf("rewards: exposure of %s: %w", validator, err)
	}
	if len(exposure.Others) == 0 {
		credit.amount, err = e.precision.FromRatio(share)
		return credit, err
	}
	commission, err := e.deps.Exposures.CommissionOf(validator)
	if err != nil {
		return credit, fmt.Errorf("rewards: commission of %s: %w", validator, err)
	}
	cut := new(big.Rat).Mul(share, commission.Fraction())
	remainder := new(big.Rat).Sub(share, cut)

	own, err := e.precision.ShareOf(exposure.Own, exposure.Total, remainder)
	if err != nil {
		return credit, fmt.Errorf("rewards: validator %s: %w", validator, err)
	}
	credit.amount, err = e.precision.FromRatio(new(big.Rat).Add(cut, own))
	if err != nil {
		return credit, err
	}
	for _, other := range exposure.Others {
		portion, err := e.precision.ShareOf(other.Value, exposure.Total, remainder)
		if err != nil {
			return credit, fmt.Errorf("rewards: nominator %s of %s: %w", other.Who, validator, err)
		}
		amount, err := e.precision.FromRatio(portion)
		if err != nil {
			return credit, err
		}
		if amount.IsZero() {
			continue
		}
		credit.nominators = append(credit.nominators, nominatorCredit{nominator: other.Who, amount: amount})
	}
	return credit, nil
}
