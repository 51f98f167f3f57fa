package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"badgeforge/storage"
)

// KV is the key-value surface the manager needs from its backing store.
// storage.MemDB and storage.LevelDB both satisfy it, as does a Transition
// overlay.
type KV interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
}

// Manager reads and writes the settlement ledger's persistent records:
// per-account nonces, the consumed-digest set, the grant set, account
// balances, and the engine configuration. All keys are keccak-hashed with
// a record-type prefix so the flat store cannot alias across record kinds.
type Manager struct {
	kv KV
}

// NewManager creates a state manager operating on the provided store.
func NewManager(kv KV) *Manager {
	return &Manager{kv: kv}
}

var (
	noncePrefix   = []byte("badge/nonce:")
	digestPrefix  = []byte("badge/digest:")
	grantPrefix   = []byte("badge/grant:")
	balancePrefix = []byte("badge/balance:")
	configKey     = ethcrypto.Keccak256([]byte("badge/config"))
)

func nonceKey(addr [20]byte) []byte {
	buf := make([]byte, len(noncePrefix)+len(addr))
	copy(buf, noncePrefix)
	copy(buf[len(noncePrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func digestKey(digest [32]byte) []byte {
	buf := make([]byte, len(digestPrefix)+len(digest))
	copy(buf, digestPrefix)
	copy(buf[len(digestPrefix):], digest[:])
	return ethcrypto.Keccak256(buf)
}

func grantKey(addr [20]byte, achievement [32]byte) []byte {
	buf := make([]byte, len(grantPrefix)+len(addr)+1+len(achievement))
	copy(buf, grantPrefix)
	copy(buf[len(grantPrefix):], addr[:])
	buf[len(grantPrefix)+len(addr)] = ':'
	copy(buf[len(grantPrefix)+len(addr)+1:], achievement[:])
	return ethcrypto.Keccak256(buf)
}

func balanceKey(addr [20]byte) []byte {
	buf := make([]byte, len(balancePrefix)+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

// --- Nonces ---

// NonceOf returns the account's current authorization nonce, zero when the
// account has never settled a claim.
func (m *Manager) NonceOf(addr [20]byte) (uint64, error) {
	data, err := m.get(nonceKey(addr))
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	var nonce uint64
	if err := rlp.DecodeBytes(data, &nonce); err != nil {
		return 0, fmt.Errorf("state: decode nonce: %w", err)
	}
	return nonce, nil
}

// SetNonce stores the account's authorization nonce.
func (m *Manager) SetNonce(addr [20]byte, nonce uint64) error {
	data, err := rlp.EncodeToBytes(nonce)
	if err != nil {
		return fmt.Errorf("state: encode nonce: %w", err)
	}
	return m.kv.Put(nonceKey(addr), data)
}

// --- Consumed digests ---

// DigestUsed reports whether a claim digest has already been consumed.
func (m *Manager) DigestUsed(digest [32]byte) (bool, error) {
	return m.kv.Has(digestKey(digest))
}

// MarkDigestUsed records the digest in the consumed set. Entries are never
// removed; the set is the engine's permanent replay memory.
func (m *Manager) MarkDigestUsed(digest [32]byte) error {
	return m.kv.Put(digestKey(digest), []byte{1})
}

// --- Grants ---

// HasGrant reports whether the (account, achievement) pair has been granted.
func (m *Manager) HasGrant(addr [20]byte, achievement [32]byte) (bool, error) {
	return m.kv.Has(grantKey(addr, achievement))
}

// PutGrant records the (account, achievement) pair. Grants are append-only.
func (m *Manager) PutGrant(addr [20]byte, achievement [32]byte) error {
	return m.kv.Put(grantKey(addr, achievement), []byte{1})
}

// --- Balances ---

// BalanceOf returns the account's native-currency balance.
func (m *Manager) BalanceOf(addr [20]byte) (*big.Int, error) {
	data, err := m.get(balanceKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(data, balance); err != nil {
		return nil, fmt.Errorf("state: decode balance: %w", err)
	}
	return balance, nil
}

// SetBalance stores the account's native-currency balance.
func (m *Manager) SetBalance(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: balance must be non-negative")
	}
	data, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return fmt.Errorf("state: encode balance: %w", err)
	}
	return m.kv.Put(balanceKey(addr), data)
}

// Credit adds amount to the account's balance.
func (m *Manager) Credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: credit must be non-negative")
	}
	balance, err := m.BalanceOf(addr)
	if err != nil {
		return err
	}
	return m.SetBalance(addr, new(big.Int).Add(balance, amount))
}

// ErrInsufficientFunds is surfaced by Debit when the account balance does
// not cover the requested amount.
var ErrInsufficientFunds = errors.New("state: insufficient funds")

// Debit subtracts amount from the account's balance.
func (m *Manager) Debit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: debit must be non-negative")
	}
	balance, err := m.BalanceOf(addr)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	return m.SetBalance(addr, new(big.Int).Sub(balance, amount))
}

// get returns nil data (without error) for absent keys so callers can apply
// record-specific zero values.
func (m *Manager) get(key []byte) ([]byte, error) {
	data, err := m.kv.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
