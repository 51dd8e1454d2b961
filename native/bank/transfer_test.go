package bank

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"firechain/crypto"
	"firechain/storage"
)

func account(b byte) crypto.AccountID {
	var id crypto.AccountID
	id[0] = b
	return id
}

func balanceOf(t *testing.T, bank *Bank, id crypto.AccountID) uint64 {
	t.Helper()
	bal, err := bank.BalanceOf(id)
	if err != nil {
		t.Fatalf("balance of %s: %v", id, err)
	}
	return bal.Uint64()
}

func TestTransferKeepAliveRespectsExistentialDeposit(t *testing.T) {
	bank := New(storage.NewMemDB(), uint256.NewInt(10))
	pool, alice := account(1), account(2)
	if err := bank.Mint(pool, uint256.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := bank.Transfer(pool, alice, uint256.NewInt(91), true); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := bank.Transfer(pool, alice, uint256.NewInt(90), true); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := balanceOf(t, bank, pool); got != 10 {
		t.Fatalf("pool balance: got %d want 10", got)
	}
	if got := balanceOf(t, bank, alice); got != 90 {
		t.Fatalf("alice balance: got %d want 90", got)
	}
}

func TestTransferAllowDeathReapsSource(t *testing.T) {
	bank := New(storage.NewMemDB(), uint256.NewInt(10))
	src, dst := account(1), account(2)
	if err := bank.Mint(src, uint256.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := bank.Transfer(src, dst, uint256.NewInt(95), false); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := balanceOf(t, bank, src); got != 0 {
		t.Fatalf("source not reaped: %d", got)
	}
	issuance, err := bank.TotalIssuance()
	if err != nil {
		t.Fatalf("issuance: %v", err)
	}
	if issuance.Uint64() != 95 {
		t.Fatalf("issuance: got %d want 95", issuance.Uint64())
	}
}

func TestTransferRejectsDustAccounts(t *testing.T) {
	bank := New(storage.NewMemDB(), uint256.NewInt(10))
	src, dst := account(1), account(2)
	if err := bank.Mint(src, uint256.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := bank.Transfer(src, dst, uint256.NewInt(5), true); !errors.Is(err, ErrExistentialDeposit) {
		t.Fatalf("expected ErrExistentialDeposit, got %v", err)
	}
	if err := bank.Mint(dst, uint256.NewInt(3)); !errors.Is(err, ErrExistentialDeposit) {
		t.Fatalf("expected ErrExistentialDeposit on mint, got %v", err)
	}
	if got := balanceOf(t, bank, src); got != 100 {
		t.Fatalf("failed transfer moved funds: %d", got)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	bank := New(storage.NewMemDB(), uint256.NewInt(1))
	if err := bank.Transfer(account(1), account(2), uint256.NewInt(1), false); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}
