// Package errors holds sentinel errors shared between the reward engine and
// the currency implementations it drives.
package errors

import stderrors "errors"

var (
	// ErrInsufficientBalance is returned by a currency when the source cannot
	// cover a transfer, including when the keep-alive constraint would leave it
	// below the existential deposit.
	ErrInsufficientBalance = stderrors.New("currency: insufficient balance")
	// ErrExistentialDeposit is returned when a transfer would create an account
	// holding less than the existential deposit.
	ErrExistentialDeposit = stderrors.New("currency: below existential deposit")
	// ErrBalanceOverflow is returned when a credit would overflow the balance type.
	ErrBalanceOverflow = stderrors.New("currency: balance overflow")
)
