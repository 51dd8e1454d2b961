package events

import (
	"strconv"

	"github.com/holiman/uint256"

	"firechain/core/types"
	"firechain/crypto"
)

const (
	// TypeRewardDistributed is emitted for every successful payout transfer.
	TypeRewardDistributed = "rewards.distributed"
	// TypeRewardQueued is emitted when a validator is admitted to the claim queue.
	TypeRewardQueued = "rewards.queued"
	// TypeRewardInsufficientBalance is emitted when the pool cannot cover a payout.
	TypeRewardInsufficientBalance = "rewards.insufficientBalance"
	// TypeRewardEraComputed is emitted once the era credits have been written.
	TypeRewardEraComputed = "rewards.eraComputed"
)

// RewardDistributed records a transfer from the pool to a recipient.
type RewardDistributed struct {
	Recipient crypto.AccountID
	Amount    *uint256.Int
}

// EventType satisfies the Event interface.
func (RewardDistributed) EventType() string { return TypeRewardDistributed }

// Event converts the structured payload into a broadcastable event.
func (e RewardDistributed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardDistributed,
		Attributes: map[string]string{
			"recipient": e.Recipient.String(),
			"amount":    formatUint(e.Amount),
		},
	}
}

// RewardQueued records the admission of a validator for settlement.
type RewardQueued struct {
	Validator crypto.AccountID
}

// EventType satisfies the Event interface.
func (RewardQueued) EventType() string { return TypeRewardQueued }

// Event converts the structured payload into a broadcastable event.
func (e RewardQueued) Event() *types.Event {
	return &types.Event{
		Type:       TypeRewardQueued,
		Attributes: map[string]string{"validator": e.Validator.String()},
	}
}

// RewardInsufficientBalance records a payout skipped because the pool could
// not cover it. The recipient's pending balance is left in place.
type RewardInsufficientBalance struct {
	Recipient crypto.AccountID
}

// EventType satisfies the Event interface.
func (RewardInsufficientBalance) EventType() string { return TypeRewardInsufficientBalance }

// Event converts the structured payload into a broadcastable event.
func (e RewardInsufficientBalance) Event() *types.Event {
	return &types.Event{
		Type:       TypeRewardInsufficientBalance,
		Attributes: map[string]string{"recipient": e.Recipient.String()},
	}
}

// RewardEraComputed summarises the credits written for an era.
type RewardEraComputed struct {
	Era        uint32
	Budget     *uint256.Int
	Credited   *uint256.Int
	Validators uint32
}

// EventType satisfies the Event interface.
func (RewardEraComputed) EventType() string { return TypeRewardEraComputed }

// Event converts the structured payload into a broadcastable event.
func (e RewardEraComputed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardEraComputed,
		Attributes: map[string]string{
			"era":        strconv.FormatUint(uint64(e.Era), 10),
			"budget":     formatUint(e.Budget),
			"credited":   formatUint(e.Credited),
			"validators": strconv.FormatUint(uint64(e.Validators), 10),
		},
	}
}

func formatUint(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
