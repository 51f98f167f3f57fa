package badge

import (
	"fmt"

	"badgeforge/core/state"
)

// Ledger tracks the engine's authorization bookkeeping: per-account
// monotonic nonces, the consumed-digest set, and the grant set. Nonce and
// digest tracking are deliberately orthogonal to the grant set: a digest
// is single-use by construction (it embeds the nonce at signing time),
// while the grant set is the user-visible guarantee that nobody holds the
// same achievement twice.
type Ledger struct {
	state *state.Manager
}

// NewLedger wraps the supplied state view. The engine hands it a buffered
// transition during settlement so aborted calls leave no trace.
func NewLedger(m *state.Manager) *Ledger {
	return &Ledger{state: m}
}

// PeekNonce returns the account's current nonce without consuming it.
// Callers fetch this before requesting a new signed authorization.
func (l *Ledger) PeekNonce(account [20]byte) (uint64, error) {
	return l.state.NonceOf(account)
}

// IsGranted reports whether the (account, achievement) pair already holds
// a badge.
func (l *Ledger) IsGranted(account [20]byte, achievement [32]byte) (bool, error) {
	return l.state.HasGrant(account, achievement)
}

// Consume marks the digest as used and increments the account's nonce as
// one step. It fails with ErrDigestUsed when the digest has been consumed
// before; in that case nothing is mutated.
func (l *Ledger) Consume(account [20]byte, digest [32]byte) error {
	used, err := l.state.DigestUsed(digest)
	if err != nil {
		return fmt.Errorf("badge: check digest: %w", err)
	}
	if used {
		return ErrDigestUsed
	}
	if err := l.state.MarkDigestUsed(digest); err != nil {
		return fmt.Errorf("badge: mark digest: %w", err)
	}
	nonce, err := l.state.NonceOf(account)
	if err != nil {
		return fmt.Errorf("badge: read nonce: %w", err)
	}
	if err := l.state.SetNonce(account, nonce+1); err != nil {
		return fmt.Errorf("badge: bump nonce: %w", err)
	}
	return nil
}

// Grant records the (account, achievement) pair. It fails with
// ErrAlreadyGranted when the pair exists; grants are never removed.
func (l *Ledger) Grant(account [20]byte, achievement [32]byte) error {
	granted, err := l.state.HasGrant(account, achievement)
	if err != nil {
		return fmt.Errorf("badge: check grant: %w", err)
	}
	if granted {
		return ErrAlreadyGranted
	}
	if err := l.state.PutGrant(account, achievement); err != nil {
		return fmt.Errorf("badge: put grant: %w", err)
	}
	return nil
}
