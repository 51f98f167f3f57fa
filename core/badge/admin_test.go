package badge_test

import (
	"errors"
	"math/big"
	"testing"

	"badgeforge/core/badge"
	"badgeforge/core/events"
)

func TestAdminRequiresOwner(t *testing.T) {
	f := newFixture(t, 250)
	stranger, _ := newAddress(t)
	target, _ := newAddress(t)

	if err := f.engine.SetTreasury(stranger, target); !errors.Is(err, badge.ErrUnauthorized) {
		t.Fatalf("SetTreasury: expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.SetFeeBasisPoints(stranger, 100); !errors.Is(err, badge.ErrUnauthorized) {
		t.Fatalf("SetFeeBasisPoints: expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.SetIssuer(stranger, target); !errors.Is(err, badge.ErrUnauthorized) {
		t.Fatalf("SetIssuer: expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.Pause(stranger); !errors.Is(err, badge.ErrUnauthorized) {
		t.Fatalf("Pause: expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.Resume(stranger); !errors.Is(err, badge.ErrUnauthorized) {
		t.Fatalf("Resume: expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.Withdraw(stranger, target, big.NewInt(1)); !errors.Is(err, badge.ErrUnauthorized) {
		t.Fatalf("Withdraw: expected ErrUnauthorized, got %v", err)
	}
}

func TestSetTreasuryRejectsZero(t *testing.T) {
	f := newFixture(t, 250)
	if err := f.engine.SetTreasury(f.owner, [20]byte{}); !errors.Is(err, badge.ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount, got %v", err)
	}
}

func TestSetTreasuryEmitsOldAndNew(t *testing.T) {
	f := newFixture(t, 250)
	replacement, _ := newAddress(t)

	if err := f.engine.SetTreasury(f.owner, replacement); err != nil {
		t.Fatalf("set treasury: %v", err)
	}
	if f.recorder.lastType() != events.TypeTreasuryUpdated {
		t.Fatalf("last event = %q, want %q", f.recorder.lastType(), events.TypeTreasuryUpdated)
	}
	cfg, err := f.engine.Config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Treasury != replacement {
		t.Fatal("treasury must be replaced")
	}
	if cfg.Version != 1 {
		t.Fatalf("config version = %d, want 1", cfg.Version)
	}
}

func TestSetFeeBasisPointsCap(t *testing.T) {
	f := newFixture(t, 250)

	if err := f.engine.SetFeeBasisPoints(f.owner, 1001); !errors.Is(err, badge.ErrFeeTooHigh) {
		t.Fatalf("expected ErrFeeTooHigh for 1001, got %v", err)
	}
	if err := f.engine.SetFeeBasisPoints(f.owner, 1000); err != nil {
		t.Fatalf("1000 bps must be accepted: %v", err)
	}
	cfg, err := f.engine.Config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.FeeBasisPoints != 1000 {
		t.Fatalf("fee = %d, want 1000", cfg.FeeBasisPoints)
	}
}

func TestSetIssuerZeroSuspendsSettlement(t *testing.T) {
	f := newFixture(t, 0)
	recipient, _ := newAddress(t)
	claim := validClaim(t, f, recipient, [32]byte{20}, 0)

	if err := f.engine.SetIssuer(f.owner, [20]byte{}); err != nil {
		t.Fatalf("set issuer to zero: %v", err)
	}
	// No signature can recover to the zero account.
	_, err := f.engine.Mint(recipient, claim, nil)
	if !errors.Is(err, badge.ErrInvalidSigner) {
		t.Fatalf("expected ErrInvalidSigner with zero issuer, got %v", err)
	}
}

func TestPauseIsIdempotent(t *testing.T) {
	f := newFixture(t, 0)

	if err := f.engine.Pause(f.owner); err != nil {
		t.Fatalf("pause: %v", err)
	}
	before := len(f.recorder.events)
	if err := f.engine.Pause(f.owner); err != nil {
		t.Fatalf("second pause must be a no-op success: %v", err)
	}
	if len(f.recorder.events) != before {
		t.Fatal("no event may fire when the pause state does not flip")
	}

	if err := f.engine.Resume(f.owner); err != nil {
		t.Fatalf("resume: %v", err)
	}
	before = len(f.recorder.events)
	if err := f.engine.Resume(f.owner); err != nil {
		t.Fatalf("second resume must be a no-op success: %v", err)
	}
	if len(f.recorder.events) != before {
		t.Fatal("no event may fire when the pause state does not flip")
	}
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t, 0)
	destination, _ := newAddress(t)
	payer, _ := newAddress(t)

	if err := f.engine.Deposit(payer, big.NewInt(10_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := f.engine.Withdraw(f.owner, [20]byte{}, big.NewInt(1)); !errors.Is(err, badge.ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount for zero destination, got %v", err)
	}
	if err := f.engine.Withdraw(f.owner, destination, big.NewInt(10_001)); !errors.Is(err, badge.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if err := f.engine.Withdraw(f.owner, destination, big.NewInt(4_000)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	vault, err := f.engine.Balance()
	if err != nil {
		t.Fatalf("vault balance: %v", err)
	}
	if want := big.NewInt(6_000); vault.Cmp(want) != 0 {
		t.Fatalf("vault = %s, want %s", vault, want)
	}
	got, err := f.engine.BalanceOf(destination)
	if err != nil {
		t.Fatalf("destination balance: %v", err)
	}
	if want := big.NewInt(4_000); got.Cmp(want) != 0 {
		t.Fatalf("destination = %s, want %s", got, want)
	}
	if f.recorder.lastType() != events.TypeFundsWithdrawn {
		t.Fatalf("last event = %q, want %q", f.recorder.lastType(), events.TypeFundsWithdrawn)
	}
}

func TestWithdrawReentrancyRejected(t *testing.T) {
	f := newFixture(t, 0)
	destination, _ := newAddress(t)
	payer, _ := newAddress(t)

	if err := f.engine.Deposit(payer, big.NewInt(10_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	var nested error
	f.engine.SetTransferHook(func(_, _ [20]byte, _ *big.Int) {
		nested = f.engine.Withdraw(f.owner, destination, big.NewInt(1))
	})
	if err := f.engine.Withdraw(f.owner, destination, big.NewInt(1_000)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !errors.Is(nested, badge.ErrReentrantCall) {
		t.Fatalf("expected nested ErrReentrantCall, got %v", nested)
	}
}
