package service

import "errors"

var (
	// ErrInsufficientBalance is returned when a user's derived ledger
	// balance does not cover the requested amount (plus fee for sends).
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientFunds is returned when the pool's spendable UTXO
	// set cannot cover the selection target. Distinct from
	// ErrInsufficientBalance: the ledger balance can exceed what is
	// actually available on-chain while other payouts are mid-flight.
	ErrInsufficientFunds = errors.New("insufficient funds in pool")

	// ErrNoChangeAddress is returned when the user has no owned address
	// to receive change.
	ErrNoChangeAddress = errors.New("user has no change address")

	// ErrNegativeChange is returned when selected inputs do not cover
	// amount plus fee. Unreachable if the selection target included the
	// fee, so hitting it means a programming error.
	ErrNegativeChange = errors.New("negative change")

	// ErrSigningFailed is returned when the node refuses to sign the raw
	// transaction. Nothing was broadcast, the workflow is safe to retry.
	ErrSigningFailed = errors.New("signing failed")

	// ErrBroadcastFailed is returned when the node rejects the signed
	// transaction. The ledger is untouched and the selected outputs stay
	// available for the next attempt.
	ErrBroadcastFailed = errors.New("broadcast failed")

	// ErrLedgerInconsistency is returned when recording a send fails
	// after the transaction was already broadcast. The on-chain transfer
	// is irreversible, so this must reach an operator, never be dropped.
	ErrLedgerInconsistency = errors.New("ledger inconsistency after broadcast")
)
