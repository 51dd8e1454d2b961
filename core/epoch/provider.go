package epoch

import (
	"fmt"

	"github.com/holiman/uint256"

	"firechain/core/rewards"
	"firechain/crypto"
)

// ActiveEra implements rewards.EraPoints.
func (s *Snapshot) ActiveEra() (uint32, error) {
	return s.Era, nil
}

// PointsOf implements rewards.EraPoints. Accounts outside the set earned nothing.
func (s *Snapshot) PointsOf(validator crypto.AccountID, era uint32) (uint32, error) {
	if err := s.checkEra(era); err != nil {
		return 0, err
	}
	v, ok := s.lookup(validator)
	if !ok {
		return 0, nil
	}
	return v.Points, nil
}

// TotalPoints implements rewards.EraPoints.
func (s *Snapshot) TotalPoints(era uint32) (uint32, error) {
	if err := s.checkEra(era); err != nil {
		return 0, err
	}
	return s.Total, nil
}

// ExposureOf implements rewards.Exposures.
func (s *Snapshot) ExposureOf(validator crypto.AccountID, era uint32) (rewards.Exposure, error) {
	if err := s.checkEra(era); err != nil {
		return rewards.Exposure{}, err
	}
	v, ok := s.lookup(validator)
	if !ok {
		return rewards.Exposure{}, fmt.Errorf("%w: %s", ErrUnknownValidator, validator)
	}
	exposure := rewards.Exposure{
		Own:    new(uint256.Int).Set(v.Own),
		Total:  new(uint256.Int).Set(v.Own),
		Others: make([]rewards.IndividualExposure, 0, len(v.Nominators)),
	}
	for _, n := range v.Nominators {
		exposure.Total.Add(exposure.Total, n.Value)
		exposure.Others = append(exposure.Others, rewards.IndividualExposure{Who: n.Who, Value: new(uint256.Int).Set(n.Value)})
	}
	return exposure, nil
}

// CommissionOf implements rewards.Exposures.
func (s *Snapshot) CommissionOf(validator crypto.AccountID) (rewards.Perbill, error) {
	v, ok := s.lookup(validator)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownValidator, validator)
	}
	return v.Commission, nil
}

// CurrentValidators implements rewards.ValidatorSet.
func (s *Snapshot) CurrentValidators() ([]rewards.ValidatorID, error) {
	ids := make([]rewards.ValidatorID, 0, len(s.Validators))
	for _, v := range s.Validators {
		ids = append(ids, rewards.ValidatorID(v.Account.String()))
	}
	return ids, nil
}

// TargetsOf implements rewards.NominationTargets using the snapshot's
// exposures, in validator order.
func (s *Snapshot) TargetsOf(nominator crypto.AccountID) ([]crypto.AccountID, bool, error) {
	var targets []crypto.AccountID
	for _, v := range s.Validators {
		for _, n := range v.Nominators {
			if n.Who == nominator {
				targets = append(targets, v.Account)
				break
			}
		}
	}
	return targets, len(targets) > 0, nil
}

func (s *Snapshot) checkEra(era uint32) error {
	if era != s.Era {
		return fmt.Errorf("%w: asked for %d, snapshot holds %d", ErrEraMismatch, era, s.Era)
	}
	return nil
}

func (s *Snapshot) lookup(validator crypto.AccountID) (Validator, bool) {
	if s.index == nil {
		s.index = make(map[crypto.AccountID]int, len(s.Validators))
		for i, v := range s.Validators {
			s.index[v.Account] = i
		}
	}
	i, ok := s.index[validator]
	if !ok {
		return Validator{}, false
	}
	return s.Validators[i], true
}

var (
	_ rewards.EraPoints         = (*Snapshot)(nil)
	_ rewards.Exposures         = (*Snapshot)(nil)
	_ rewards.ValidatorSet      = (*Snapshot)(nil)
	_ rewards.NominationTargets = (*Snapshot)(nil)
)
