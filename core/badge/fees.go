package badge

import (
	"fmt"
	"math/big"

	"badgeforge/core/state"
)

const (
	// MaxFeeBasisPoints caps the protocol fee at 10%.
	MaxFeeBasisPoints = 1000
	feeDenominator    = 10_000
)

// FeeSplit is the outcome of splitting a received payment between the
// protocol treasury and the remaining pooled balance.
type FeeSplit struct {
	Fee *big.Int
	Net *big.Int
}

// SplitFee computes fee = floor(gross * bps / 10_000) and net = gross - fee.
// Pure; the caller decides whether any funds actually move.
func SplitFee(gross *big.Int, bps uint64) FeeSplit {
	split := FeeSplit{Fee: big.NewInt(0), Net: big.NewInt(0)}
	if gross == nil || gross.Sign() <= 0 {
		return split
	}
	split.Net = new(big.Int).Set(gross)
	if bps == 0 {
		return split
	}
	fee := new(big.Int).Mul(gross, new(big.Int).SetUint64(bps))
	fee.Div(fee, big.NewInt(feeDenominator))
	if fee.Sign() <= 0 {
		return split
	}
	split.Fee = fee
	split.Net = new(big.Int).Sub(gross, fee)
	return split
}

// distribute applies the fee split against the supplied state view, moving
// the protocol cut from the vault to the treasury. A transfer that cannot
// be applied aborts the whole settlement; there is no deferred-payout path.
func distribute(m *state.Manager, vault, treasury [20]byte, gross *big.Int, bps uint64) (FeeSplit, error) {
	split := SplitFee(gross, bps)
	if split.Fee.Sign() == 0 {
		return split, nil
	}
	if err := m.Debit(vault, split.Fee); err != nil {
		return split, fmt.Errorf("%w: debit vault: %w", ErrTransferFailed, err)
	}
	if err := m.Credit(treasury, split.Fee); err != nil {
		return split, fmt.Errorf("%w: credit treasury: %w", ErrTransferFailed, err)
	}
	return split, nil
}
