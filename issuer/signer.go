// Package issuer implements the off-platform side of the authorization
// flow: turning a player's achievement statistics into the opaque hash the
// settlement engine keys grants by, and signing claim authorizations bound
// to a recipient's current nonce. The engine itself never calls into this
// package; it only verifies the signatures produced here.
package issuer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"lukechampine.com/blake3"

	"badgeforge/core/badge"
	"badgeforge/crypto"
)

// PlayerStats is the achievement data returned by the external
// stats-lookup service for one player and one achievement tier.
type PlayerStats struct {
	Player      string
	Achievement string
	Metrics     map[string]uint64
}

// AchievementHash computes the opaque 256-bit value the engine uses as a
// grant key. Fields are length-delimited and metrics sorted by name so the
// hash is stable regardless of map iteration order.
func AchievementHash(stats PlayerStats) ([32]byte, error) {
	var zero [32]byte
	if stats.Player == "" {
		return zero, fmt.Errorf("issuer: player required")
	}
	if stats.Achievement == "" {
		return zero, fmt.Errorf("issuer: achievement required")
	}
	buf := bytes.NewBuffer(nil)
	if err := writeDelimited(buf, []byte(stats.Player)); err != nil {
		return zero, err
	}
	if err := writeDelimited(buf, []byte(stats.Achievement)); err != nil {
		return zero, err
	}
	names := make([]string, 0, len(stats.Metrics))
	for name := range stats.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := binary.Write(buf, binary.BigEndian, uint32(len(names))); err != nil {
		return zero, err
	}
	for _, name := range names {
		if err := writeDelimited(buf, []byte(name)); err != nil {
			return zero, err
		}
		if err := binary.Write(buf, binary.BigEndian, stats.Metrics[name]); err != nil {
			return zero, err
		}
	}
	return blake3.Sum256(buf.Bytes()), nil
}

func writeDelimited(buf *bytes.Buffer, data []byte) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := buf.Write(data)
	return err
}

// Authorization is a signed permission for one settlement attempt. The
// embedded nonce makes it single-use: after any successful settlement for
// the recipient, outstanding authorizations are permanently dead and must
// be re-signed against the updated nonce.
type Authorization struct {
	Recipient   crypto.Address
	Achievement [32]byte
	MinPrice    *big.Int
	Deadline    int64
	Nonce       uint64
	Signature   []byte
}

// Signer produces claim authorizations for a specific engine deployment.
type Signer struct {
	key       *crypto.PrivateKey
	separator badge.DomainSeparator
}

// NewSigner binds the issuer key to one deployment's domain separator.
func NewSigner(key *crypto.PrivateKey, separator badge.DomainSeparator) (*Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("issuer: nil signing key")
	}
	return &Signer{key: key, separator: separator}, nil
}

// Identity returns the account the engine must be configured with for this
// signer's authorizations to verify.
func (s *Signer) Identity() crypto.Address {
	return s.key.PubKey().Address()
}

// Sign authorizes one settlement for the recipient at their current nonce.
func (s *Signer) Sign(recipient crypto.Address, achievement [32]byte, minPrice *big.Int, deadline int64, nonce uint64) (*Authorization, error) {
	claim := badge.Claim{
		Recipient:   recipient.Raw(),
		Achievement: achievement,
		MinPrice:    minPrice,
		Deadline:    deadline,
	}
	digest, err := claim.Digest(s.separator, nonce)
	if err != nil {
		return nil, err
	}
	sig, err := ethcrypto.Sign(digest[:], s.key.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("issuer: sign claim: %w", err)
	}
	auth := &Authorization{
		Recipient:   recipient,
		Achievement: achievement,
		Deadline:    deadline,
		Nonce:       nonce,
		Signature:   sig,
	}
	if minPrice != nil {
		auth.MinPrice = new(big.Int).Set(minPrice)
	}
	return auth, nil
}
