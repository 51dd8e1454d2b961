package epoch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"firechain/core/rewards"
	"firechain/crypto"
)

// ErrEraMismatch is returned when a query names an era other than the snapshot's.
var ErrEraMismatch = errors.New("epoch: era not covered by snapshot")

// ErrUnknownValidator is returned for accounts outside the snapshot's validator set.
var ErrUnknownValidator = errors.New("epoch: unknown validator")

// Validator is a single validator's entry in an era snapshot.
type Validator struct {
	Account    crypto.AccountID
	Points     uint32
	Own        *uint256.Int
	Commission rewards.Perbill
	Nominators []rewards.IndividualExposure
}

// Snapshot freezes the points, exposures and validator set of one era.
type Snapshot struct {
	Era        uint32
	Total      uint32
	Validators []Validator

	index map[crypto.AccountID]int
}

type snapshotFile struct {
	Era         uint32          `yaml:"era"`
	TotalPoints uint32          `yaml:"total_points"`
	Validators  []validatorFile `yaml:"validators"`
}

type validatorFile struct {
	Account    string          `yaml:"account"`
	Points     uint32          `yaml:"points"`
	Own        string          `yaml:"own"`
	Commission string          `yaml:"commission"`
	Nominators []nominatorFile `yaml:"nominators"`
}

type nominatorFile struct {
	Account string `yaml:"account"`
	Stake   string `yaml:"stake"`
}

// Load reads an era snapshot from the YAML file at path.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML era snapshot. When total_points is omitted it defaults
// to the sum of the validator points.
func Parse(data []byte) (*Snapshot, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var file snapshotFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	snapshot := &Snapshot{Era: file.Era, index: make(map[crypto.AccountID]int, len(file.Validators))}
	var sum uint64
	for i, entry := range file.Validators {
		validator, err := entry.decode()
		if err != nil {
			return nil, fmt.Errorf("validator %d: %w", i, err)
		}
		if _, dup := snapshot.index[validator.Account]; dup {
			return nil, fmt.Errorf("validator %s listed twice", validator.Account)
		}
		sum += uint64(validator.Points)
		snapshot.index[validator.Account] = len(snapshot.Validators)
		snapshot.Validators = append(snapshot.Validators, validator)
	}
	if sum > uint64(^uint32(0)) {
		return nil, fmt.Errorf("total points overflow")
	}
	snapshot.Total = file.TotalPoints
	if snapshot.Total == 0 {
		snapshot.Total = uint32(sum)
	}
	if uint64(snapshot.Total) < sum {
		return nil, fmt.Errorf("total_points %d below validator sum %d", snapshot.Total, sum)
	}
	return snapshot, nil
}

func (v validatorFile) decode() (Validator, error) {
	account, err := crypto.ParseAccount(v.Account)
	if err != nil {
		return Validator{}, err
	}
	own, err := parseAmount(v.Own)
	if err != nil {
		return Validator{}, fmt.Errorf("own: %w", err)
	}
	commission, err := parseCommission(v.Commission)
	if err != nil {
		return Validator{}, fmt.Errorf("commission: %w", err)
	}
	out := Validator{Account: account, Points: v.Points, Own: own, Commission: commission}
	for j, n := range v.Nominators {
		who, err := crypto.ParseAccount(n.Account)
		if err != nil {
			return Validator{}, fmt.Errorf("nominator %d: %w", j, err)
		}
		stake, err := parseAmount(n.Stake)
		if err != nil {
			return Validator{}, fmt.Errorf("nominator %d stake: %w", j, err)
		}
		out.Nominators = append(out.Nominators, rewards.IndividualExposure{Who: who, Value: stake})
	}
	return out, nil
}

func parseAmount(value string) (*uint256.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(trimmed)
}

// parseCommission accepts "N%" for whole percent or a bare Perbill value.
func parseCommission(value string) (rewards.Perbill, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	if strings.HasSuffix(trimmed, "%") {
		percent, err := strconv.ParseUint(strings.TrimSpace(strings.TrimSuffix(trimmed, "%")), 10, 32)
		if err != nil {
			return 0, err
		}
		if percent > 100 {
			return 0, fmt.Errorf("%d%% exceeds 100%%", percent)
		}
		return rewards.PerbillFromPercent(uint32(percent)), nil
	}
	parts, err := strconv.ParseUint(trimmed, 10, 32)
	if err != nil {
		return 0, err
	}
	if parts > uint64(rewards.PerbillDenominator) {
		return 0, fmt.Errorf("perbill %d exceeds %d", parts, rewards.PerbillDenominator)
	}
	return rewards.Perbill(parts), nil
}
