package bank

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	coreerrors "firechain/core/errors"
	"firechain/crypto"
	"firechain/storage"
)

var (
	// ErrInsufficientBalance is returned when the source cannot cover a transfer.
	ErrInsufficientBalance = coreerrors.ErrInsufficientBalance
	// ErrExistentialDeposit is returned when a credit would open an account
	// below the existential deposit.
	ErrExistentialDeposit = coreerrors.ErrExistentialDeposit
	// ErrBalanceOverflow is returned when a credit overflows 256 bits.
	ErrBalanceOverflow = coreerrors.ErrBalanceOverflow
)

const (
	balancePrefix = "bank/balance/"
	issuanceKey   = "bank/issuance"
)

func balanceKey(account crypto.AccountID) []byte {
	return []byte(balancePrefix + account.Hex())
}

// Bank keeps native balances in a key-value store. Accounts holding less than
// the existential deposit do not exist.
type Bank struct {
	db          storage.Database
	existential *uint256.Int
	mu          sync.Mutex
}

// New constructs a bank over db with the given existential deposit.
func New(db storage.Database, existential *uint256.Int) *Bank {
	ed := new(uint256.Int)
	if existential != nil {
		ed.Set(existential)
	}
	return &Bank{db: db, existential: ed}
}

// ExistentialDeposit returns the minimum balance of a live account.
func (b *Bank) ExistentialDeposit() *uint256.Int {
	return new(uint256.Int).Set(b.existential)
}

// BalanceOf returns the free balance of account.
func (b *Bank) BalanceOf(account crypto.AccountID) (*uint256.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read(balanceKey(account))
}

// TotalIssuance returns the sum of all live balances.
func (b *Bank) TotalIssuance() (*uint256.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read([]byte(issuanceKey))
}

// Mint credits newly issued funds to account.
func (b *Bank) Mint(account crypto.AccountID, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	balance, err := b.read(balanceKey(account))
	if err != nil {
		return err
	}
	credited, err := b.credit(balance, amount)
	if err != nil {
		return err
	}
	issuance, err := b.read([]byte(issuanceKey))
	if err != nil {
		return err
	}
	issuance, overflow := new(uint256.Int).AddOverflow(issuance, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	batch := b.db.NewBatch()
	if err := putBalance(batch, balanceKey(account), credited); err != nil {
		return err
	}
	if err := putBalance(batch, []byte(issuanceKey), issuance); err != nil {
		return err
	}
	return batch.Write()
}

// Transfer moves amount from one account to another. With keepAlive set the
// source may not drop below the existential deposit; otherwise a source left
// below it is reaped and the remainder burnt.
func (b *Bank) Transfer(from, to crypto.AccountID, amount *uint256.Int, keepAlive bool) error {
	if amount == nil || amount.IsZero() || from == to {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	fromBalance, err := b.read(balanceKey(from))
	if err != nil {
		return err
	}
	remaining, underflow := new(uint256.Int).SubOverflow(fromBalance, amount)
	if underflow {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from, fromBalance.Dec(), amount.Dec())
	}
	dust := new(uint256.Int)
	if remaining.Lt(b.existential) {
		if keepAlive {
			return fmt.Errorf("%w: %s would fall below the existential deposit", ErrInsufficientBalance, from)
		}
		dust.Set(remaining)
		remaining.Clear()
	}
	toBalance, err := b.read(balanceKey(to))
	if err != nil {
		return err
	}
	credited, err := b.credit(toBalance, amount)
	if err != nil {
		return err
	}

	batch := b.db.NewBatch()
	if err := putBalance(batch, balanceKey(from), remaining); err != nil {
		return err
	}
	if err := putBalance(batch, balanceKey(to), credited); err != nil {
		return err
	}
	if !dust.IsZero() {
		issuance, err := b.read([]byte(issuanceKey))
		if err != nil {
			return err
		}
		if err := putBalance(batch, []byte(issuanceKey), new(uint256.Int).Sub(issuance, dust)); err != nil {
			return err
		}
	}
	return batch.Write()
}

func (b *Bank) credit(balance, amount *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	if balance.IsZero() && sum.Lt(b.existential) {
		return nil, fmt.Errorf("%w: %s below %s", ErrExistentialDeposit, sum.Dec(), b.existential.Dec())
	}
	return sum, nil
}

func (b *Bank) read(key []byte) (*uint256.Int, error) {
	data, err := b.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	out := new(uint256.Int)
	if err := rlp.DecodeBytes(data, out); err != nil {
		return nil, fmt.Errorf("bank: decode %s: %w", key, err)
	}
	return out, nil
}

func putBalance(batch storage.Batch, key []byte, amount *uint256.Int) error {
	if amount.IsZero() {
		batch.Delete(key)
		return nil
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	batch.Put(key, encoded)
	return nil
}
