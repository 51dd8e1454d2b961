package rewards

import (
	"math/big"

	"github.com/holiman/uint256"

	"firechain/core/events"
	"firechain/crypto"
)

// PerbillDenominator is the denominator of a Perbill commission.
const PerbillDenominator uint32 = 1_000_000_000

// perbillPerPercent converts a Perbill into whole percent.
const perbillPerPercent uint32 = 10_000_000

// Perbill is a parts-per-billion fraction used for validator commission.
type Perbill uint32

// PerbillFromPercent builds a commission from a whole percentage.
func PerbillFromPercent(percent uint32) Perbill {
	if percent > 100 {
		percent = 100
	}
	return Perbill(percent * perbillPerPercent)
}

// Percent returns the commission truncated to whole percent; sub-percent
// commission is ignored when splitting rewards.
func (p Perbill) Percent() uint32 {
	if uint32(p) >= PerbillDenominator {
		return 100
	}
	return uint32(p) / perbillPerPercent
}

// Fraction returns the effective commission as a rational in [0, 1].
func (p Perbill) Fraction() *big.Rat {
	return big.NewRat(int64(p.Percent()), 100)
}

// IndividualExposure is a single nominator's stake behind a validator.
type IndividualExposure struct {
	Who   crypto.AccountID
	Value *uint256.Int
}

// Exposure describes the stake backing a validator for an era.
type Exposure struct {
	Own    *uint256.Int
	Total  *uint256.Int
	Others []IndividualExposure
}

// Clone returns a deep copy of the exposure.
func (e Exposure) Clone() Exposure {
	out := Exposure{
		Own:    copyBalance(e.Own),
		Total:  copyBalance(e.Total),
		Others: make([]IndividualExposure, len(e.Others)),
	}
	for i := range e.Others {
		out.Others[i] = IndividualExposure{Who: e.Others[i].Who, Value: copyBalance(e.Others[i].Value)}
	}
	return out
}

// Role identifies which side of a validator's reward a payout belongs to.
type Role string

const (
	RoleValidator Role = "validator"
	RoleNominator Role = "nominator"
)

// Payout is a single transfer performed while settling a validator.
type Payout struct {
	Recipient crypto.AccountID
	Role      Role
	Amount    *uint256.Int
	// Err is the currency error that left an unpaid recipient pending.
	Err error
}

// Settlement reports the outcome of settling one validator.
type Settlement struct {
	Validator crypto.AccountID
	Paid      []Payout
	// Unpaid lists recipients whose transfer failed. Their pending balances
	// are untouched.
	Unpaid []Payout
	Events []events.Event
}

// PaidTotal sums every successful transfer.
func (s *Settlement) PaidTotal() *uint256.Int {
	total := new(uint256.Int)
	if s == nil {
		return total
	}
	for _, payout := range s.Paid {
		total.Add(total, payout.Amount)
	}
	return total
}

// EraSummary records what a single era computation credited.
type EraSummary struct {
	Era                uint32
	TotalPoints        uint32
	Budget             *uint256.Int
	ValidatorsCredited *uint256.Int
	NominatorsCredited *uint256.Int
	Validators         uint32
	ComputedAt         uint64
}

// Credited returns the total written to pending ledgers for the era.
func (s EraSummary) Credited() *uint256.Int {
	return new(uint256.Int).Add(balanceOrZero(s.ValidatorsCredited), balanceOrZero(s.NominatorsCredited))
}

// Dust returns the part of the budget lost to truncation.
func (s EraSummary) Dust() *uint256.Int {
	credited := s.Credited()
	budget := balanceOrZero(s.Budget)
	if credited.Gt(budget) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(budget, credited)
}

// Clone returns a deep copy of the summary.
func (s EraSummary) Clone() EraSummary {
	out := s
	out.Budget = copyBalance(s.Budget)
	out.ValidatorsCredited = copyBalance(s.ValidatorsCredited)
	out.NominatorsCredited = copyBalance(s.NominatorsCredited)
	return out
}

func copyBalance(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

func balanceOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
