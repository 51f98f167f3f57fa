package events

import (
	"encoding/hex"
	"math/big"

	"badgeforge/crypto"
)

const (
	// TypeBadgeSettled is emitted whenever a claim settles and a badge is
	// granted.
	TypeBadgeSettled = "badge.settled"
	// TypeFeeTaken is emitted when the protocol cut is routed to the
	// treasury during settlement.
	TypeFeeTaken = "badge.fee"
	// TypeTreasuryUpdated is emitted when the owner rotates the treasury
	// account.
	TypeTreasuryUpdated = "badge.treasury_updated"
	// TypeFeeRateUpdated is emitted when the owner changes the fee rate.
	TypeFeeRateUpdated = "badge.fee_rate_updated"
	// TypeIssuerUpdated is emitted when the owner rotates the issuer
	// identity.
	TypeIssuerUpdated = "badge.issuer_updated"
	// TypeFundsWithdrawn is emitted on a manual balance withdrawal.
	TypeFundsWithdrawn = "badge.withdrawn"
	// TypeFundsReceived is emitted for direct deposits that bypass the
	// settlement path.
	TypeFundsReceived = "badge.deposited"
	// TypePaused and TypeResumed track the global settlement switch.
	TypePaused  = "badge.paused"
	TypeResumed = "badge.resumed"
)

func addrString(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.BadgePrefix, addr[:]).String()
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// BadgeSettled carries the outcome of a successful settlement.
type BadgeSettled struct {
	Recipient   [20]byte
	Achievement [32]byte
	Price       *big.Int
	Fee         *big.Int
}

func (BadgeSettled) EventType() string { return TypeBadgeSettled }

func (e BadgeSettled) Attributes() map[string]string {
	return map[string]string{
		"recipient":   addrString(e.Recipient),
		"achievement": "0x" + hex.EncodeToString(e.Achievement[:]),
		"price":       amountString(e.Price),
		"fee":         amountString(e.Fee),
	}
}

// FeeTaken records the protocol cut routed to the treasury.
type FeeTaken struct {
	Payer    [20]byte
	Gross    *big.Int
	Fee      *big.Int
	Treasury [20]byte
}

func (FeeTaken) EventType() string { return TypeFeeTaken }

func (e FeeTaken) Attributes() map[string]string {
	return map[string]string{
		"payer":    addrString(e.Payer),
		"gross":    amountString(e.Gross),
		"fee":      amountString(e.Fee),
		"treasury": addrString(e.Treasury),
	}
}

// TreasuryUpdated carries the old and new treasury accounts.
type TreasuryUpdated struct {
	Previous [20]byte
	Current  [20]byte
}

func (TreasuryUpdated) EventType() string { return TypeTreasuryUpdated }

func (e TreasuryUpdated) Attributes() map[string]string {
	return map[string]string{
		"previous": addrString(e.Previous),
		"current":  addrString(e.Current),
	}
}

// FeeRateUpdated carries the old and new fee rates in basis points.
type FeeRateUpdated struct {
	Previous uint64
	Current  uint64
}

func (FeeRateUpdated) EventType() string { return TypeFeeRateUpdated }

func (e FeeRateUpdated) Attributes() map[string]string {
	return map[string]string{
		"previousBps": new(big.Int).SetUint64(e.Previous).String(),
		"currentBps":  new(big.Int).SetUint64(e.Current).String(),
	}
}

// IssuerUpdated carries the old and new issuer identities. The current
// issuer may be the zero account when the owner suspends minting.
type IssuerUpdated struct {
	Previous [20]byte
	Current  [20]byte
}

func (IssuerUpdated) EventType() string { return TypeIssuerUpdated }

func (e IssuerUpdated) Attributes() map[string]string {
	return map[string]string{
		"previous": addrString(e.Previous),
		"current":  addrString(e.Current),
	}
}

// FundsWithdrawn records a manual withdrawal from the engine vault.
type FundsWithdrawn struct {
	Destination [20]byte
	Amount      *big.Int
}

func (FundsWithdrawn) EventType() string { return TypeFundsWithdrawn }

func (e FundsWithdrawn) Attributes() map[string]string {
	return map[string]string{
		"destination": addrString(e.Destination),
		"amount":      amountString(e.Amount),
	}
}

// FundsReceived records a direct deposit into the engine vault outside the
// settlement path.
type FundsReceived struct {
	From   [20]byte
	Amount *big.Int
}

func (FundsReceived) EventType() string { return TypeFundsReceived }

func (e FundsReceived) Attributes() map[string]string {
	return map[string]string{
		"from":   addrString(e.From),
		"amount": amountString(e.Amount),
	}
}

// Paused marks settlement being switched off by the owner.
type Paused struct{}

func (Paused) EventType() string { return TypePaused }

func (Paused) Attributes() map[string]string { return map[string]string{} }

// Resumed marks settlement being switched back on by the owner.
type Resumed struct{}

func (Resumed) EventType() string { return TypeResumed }

func (Resumed) Attributes() map[string]string { return map[string]string{} }
