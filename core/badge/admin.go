package badge

import (
	"errors"
	"fmt"
	"math/big"

	"badgeforge/core/events"
	"badgeforge/core/state"
)

// Administrative operations. Every mutator requires the caller to be the
// single designated owner; the guard runs once at the top of each
// operation rather than through any inherited access-control plumbing.
// Administrative calls are unaffected by the pause switch.

func (e *Engine) requireOwner(caller [20]byte) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) loadConfig() (*state.ConfigRecord, error) {
	cfg, ok, err := e.state.EngineConfig()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("badge: engine not initialised")
	}
	return cfg, nil
}

func (e *Engine) storeConfig(cfg *state.ConfigRecord) error {
	cfg.Version++
	return e.state.PutEngineConfig(cfg)
}

// SetTreasury replaces the fee treasury account. The zero account is
// rejected so fee routing always has a real destination.
func (e *Engine) SetTreasury(caller, newTreasury [20]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if isZero(newTreasury) {
		return ErrInvalidAccount
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	previous := cfg.Treasury
	cfg.Treasury = newTreasury
	if err := e.storeConfig(cfg); err != nil {
		return err
	}
	e.emit(events.TreasuryUpdated{Previous: previous, Current: newTreasury})
	return nil
}

// SetFeeBasisPoints replaces the protocol fee rate, capped at
// MaxFeeBasisPoints.
func (e *Engine) SetFeeBasisPoints(caller [20]byte, bps uint64) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if bps > MaxFeeBasisPoints {
		return ErrFeeTooHigh
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	previous := cfg.FeeBasisPoints
	cfg.FeeBasisPoints = bps
	if err := e.storeConfig(cfg); err != nil {
		return err
	}
	e.emit(events.FeeRateUpdated{Previous: previous, Current: bps})
	return nil
}

// SetIssuer replaces the issuer identity unconditionally. Setting the zero
// account suspends settlement until a real issuer is configured again,
// since no signature can ever recover to the zero account.
func (e *Engine) SetIssuer(caller, newIssuer [20]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	previous := cfg.Issuer
	cfg.Issuer = newIssuer
	if err := e.storeConfig(cfg); err != nil {
		return err
	}
	e.emit(events.IssuerUpdated{Previous: previous, Current: newIssuer})
	return nil
}

// Pause switches settlement off. Pausing an already-paused engine is a
// no-op success; the event fires only on an actual flip.
func (e *Engine) Pause(caller [20]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Paused {
		return nil
	}
	cfg.Paused = true
	if err := e.storeConfig(cfg); err != nil {
		return err
	}
	e.emit(events.Paused{})
	return nil
}

// Resume switches settlement back on. Resuming an already-running engine
// is a no-op success.
func (e *Engine) Resume(caller [20]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Paused {
		return nil
	}
	cfg.Paused = false
	if err := e.storeConfig(cfg); err != nil {
		return err
	}
	e.emit(events.Resumed{})
	return nil
}

// Withdraw moves amount from the vault to destination. It shares the
// in-flight latch with Mint so a transfer hook cannot re-enter either
// operation, and a failed transfer aborts with no partial debit.
func (e *Engine) Withdraw(caller, destination [20]byte, amount *big.Int) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if isZero(destination) {
		return ErrInvalidAccount
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInsufficientBalance
	}
	if !e.enter() {
		return ErrReentrantCall
	}
	defer e.exit()

	txn, overlay := e.state.Begin()
	balance, err := txn.BalanceOf(e.instance)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := txn.Debit(e.instance, amount); err != nil {
		return fmt.Errorf("%w: debit vault: %w", ErrTransferFailed, err)
	}
	if err := txn.Credit(destination, amount); err != nil {
		return fmt.Errorf("%w: credit destination: %w", ErrTransferFailed, err)
	}
	if err := overlay.Commit(); err != nil {
		return err
	}

	e.notifyTransfer(e.instance, destination, amount)
	e.emit(events.FundsWithdrawn{Destination: destination, Amount: new(big.Int).Set(amount)})
	return nil
}
