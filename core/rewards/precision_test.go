package rewards

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
)

func mustPrecision(t *testing.T, digits uint8) Precision {
	t.Helper()
	p, err := NewPrecision(digits)
	if err != nil {
		t.Fatalf("new precision: %v", err)
	}
	return p
}

func TestPrecisionToRatioTruncatesFirst(t *testing.T) {
	p := mustPrecision(t, 2)
	got := p.ToRatio(u(12_399))
	if got.Cmp(big.NewRat(123, 1)) != 0 {
		t.Fatalf("to ratio: got %s want 123", got.RatString())
	}
	exact := p.FromScaled(u(12_399))
	if exact.Cmp(big.NewRat(12_399, 100)) != 0 {
		t.Fatalf("from scaled: got %s", exact.RatString())
	}
}

func TestPrecisionShareOf(t *testing.T) {
	p := mustPrecision(t, 0)
	share, err := p.ShareOf(u(100), u(600), big.NewRat(100, 1))
	if err != nil {
		t.Fatalf("share of: %v", err)
	}
	amount, err := p.FromRatio(share)
	if err != nil {
		t.Fatalf("from ratio: %v", err)
	}
	if amount.Uint64() != 16 {
		t.Fatalf("share: got %d want 16", amount.Uint64())
	}
}

func TestPrecisionShareOfZeroTotal(t *testing.T) {
	p := mustPrecision(t, 3)
	if _, err := p.ShareOf(u(1), u(999), big.NewRat(1, 1)); !errors.Is(err, ErrZeroTotalStake) {
		t.Fatalf("expected ErrZeroTotalStake, got %v", err)
	}
}

func TestPrecisionShareOfNarrowsTotal(t *testing.T) {
	p := mustPrecision(t, 0)
	// 2^64 + 4 narrows to 4.
	total := new(uint256.Int).Lsh(u(1), 64)
	total.Add(total, u(4))
	share, err := p.ShareOf(u(1), total, big.NewRat(8, 1))
	if err != nil {
		t.Fatalf("share of: %v", err)
	}
	if share.Cmp(big.NewRat(2, 1)) != 0 {
		t.Fatalf("share: got %s want 2", share.RatString())
	}
}

func TestPrecisionFromRatioNeverRoundsUp(t *testing.T) {
	p := mustPrecision(t, 2)
	cases := []struct {
		value *big.Rat
		want  uint64
	}{
		{big.NewRat(2, 3), 66},
		{big.NewRat(199, 200), 99},
		{big.NewRat(5, 1), 500},
		{new(big.Rat), 0},
	}
	for _, tc := range cases {
		got, err := p.FromRatio(tc.value)
		if err != nil {
			t.Fatalf("from ratio %s: %v", tc.value.RatString(), err)
		}
		if got.Uint64() != tc.want {
			t.Fatalf("from ratio %s: got %d want %d", tc.value.RatString(), got.Uint64(), tc.want)
		}
	}
	if _, err := p.FromRatio(big.NewRat(-1, 2)); err == nil {
		t.Fatalf("expected error for negative ratio")
	}
}

func TestNewPrecisionRejectsExcessDigits(t *testing.T) {
	if _, err := NewPrecision(MaxPrecisionDigits + 1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestPerbillPercent(t *testing.T) {
	cases := []struct {
		in   Perbill
		want uint32
	}{
		{0, 0},
		{Perbill(9_999_999), 0},
		{Perbill(10_000_000), 1},
		{PerbillFromPercent(25), 25},
		{Perbill(PerbillDenominator), 100},
		{Perbill(PerbillDenominator + 1), 100},
	}
	for _, tc := range cases {
		if got := tc.in.Percent(); got != tc.want {
			t.Fatalf("percent of %d: got %d want %d", tc.in, got, tc.want)
		}
	}
}
