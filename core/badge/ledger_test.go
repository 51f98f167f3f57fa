package badge_test

import (
	"errors"
	"testing"

	"badgeforge/core/badge"
	"badgeforge/core/state"
	"badgeforge/storage"
)

func newLedger(t *testing.T) *badge.Ledger {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return badge.NewLedger(state.NewManager(db))
}

func TestLedgerConsumeIsSingleUse(t *testing.T) {
	ledger := newLedger(t)
	account := [20]byte{1}
	digest := [32]byte{2}

	if err := ledger.Consume(account, digest); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	nonce, err := ledger.PeekNonce(account)
	if err != nil {
		t.Fatalf("peek nonce: %v", err)
	}
	if nonce != 1 {
		t.Fatalf("nonce = %d, want 1", nonce)
	}

	err = ledger.Consume(account, digest)
	if !errors.Is(err, badge.ErrDigestUsed) {
		t.Fatalf("expected ErrDigestUsed, got %v", err)
	}
	nonce, err = ledger.PeekNonce(account)
	if err != nil {
		t.Fatalf("peek nonce: %v", err)
	}
	if nonce != 1 {
		t.Fatalf("nonce = %d after failed consume, want 1", nonce)
	}
}

func TestLedgerConsumeTracksDigestsGlobally(t *testing.T) {
	ledger := newLedger(t)
	digest := [32]byte{3}

	if err := ledger.Consume([20]byte{1}, digest); err != nil {
		t.Fatalf("consume: %v", err)
	}
	// The digest set is global: a different account cannot reuse it.
	err := ledger.Consume([20]byte{2}, digest)
	if !errors.Is(err, badge.ErrDigestUsed) {
		t.Fatalf("expected ErrDigestUsed for other account, got %v", err)
	}
}

func TestLedgerGrantIsIdempotencyGuard(t *testing.T) {
	ledger := newLedger(t)
	account := [20]byte{4}
	achievement := [32]byte{5}

	granted, err := ledger.IsGranted(account, achievement)
	if err != nil {
		t.Fatalf("is granted: %v", err)
	}
	if granted {
		t.Fatal("fresh pair must not be granted")
	}
	if err := ledger.Grant(account, achievement); err != nil {
		t.Fatalf("grant: %v", err)
	}
	err = ledger.Grant(account, achievement)
	if !errors.Is(err, badge.ErrAlreadyGranted) {
		t.Fatalf("expected ErrAlreadyGranted, got %v", err)
	}

	// Same achievement for a different account is independent.
	if err := ledger.Grant([20]byte{6}, achievement); err != nil {
		t.Fatalf("grant other account: %v", err)
	}
}
