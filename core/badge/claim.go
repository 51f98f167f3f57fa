package badge

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// SeparatorName tags every claim digest as belonging to this protocol.
	SeparatorName = "badgeforge-claim"
	// SeparatorVersion is bumped if the digest layout ever changes.
	SeparatorVersion = "1"
)

// Claim is the caller-submitted settlement request. It lives only for the
// duration of one Mint call and is never persisted.
type Claim struct {
	Recipient   [20]byte
	Achievement [32]byte
	MinPrice    *big.Int
	Deadline    int64
	Signature   []byte
}

// DomainSeparator binds claim digests to one deployment instance. A digest
// signed for one chain or one engine address can never replay against
// another.
type DomainSeparator [32]byte

// NewDomainSeparator derives the separator from the protocol name and
// version, the chain identifier, and the engine's own instance address.
func NewDomainSeparator(name, version string, chainID uint64, instance [20]byte) DomainSeparator {
	buf := make([]byte, 0, 32+32+8+20)
	buf = append(buf, ethcrypto.Keccak256([]byte(name))...)
	buf = append(buf, ethcrypto.Keccak256([]byte(version))...)
	var chain [8]byte
	binary.BigEndian.PutUint64(chain[:], chainID)
	buf = append(buf, chain[:]...)
	buf = append(buf, instance[:]...)
	var sep DomainSeparator
	copy(sep[:], ethcrypto.Keccak256(buf))
	return sep
}

// Digest computes the keccak256 fingerprint the issuer signs: separator,
// recipient, achievement, minimum price, deadline, and the recipient's
// nonce at signing time, each packed at a fixed width so adjacent fields
// cannot alias.
func (c Claim) Digest(sep DomainSeparator, nonce uint64) ([32]byte, error) {
	var digest [32]byte
	price := c.MinPrice
	if price == nil {
		price = big.NewInt(0)
	}
	if price.Sign() < 0 {
		return digest, fmt.Errorf("badge: minimum price must be non-negative")
	}
	if price.BitLen() > 256 {
		return digest, fmt.Errorf("badge: minimum price exceeds 256 bits")
	}
	if c.Deadline < 0 {
		return digest, fmt.Errorf("badge: deadline must be non-negative")
	}

	buf := make([]byte, 0, 32+20+32+32+8+8)
	buf = append(buf, sep[:]...)
	buf = append(buf, c.Recipient[:]...)
	buf = append(buf, c.Achievement[:]...)
	var priceWord [32]byte
	price.FillBytes(priceWord[:])
	buf = append(buf, priceWord[:]...)
	var deadlineWord [8]byte
	binary.BigEndian.PutUint64(deadlineWord[:], uint64(c.Deadline))
	buf = append(buf, deadlineWord[:]...)
	var nonceWord [8]byte
	binary.BigEndian.PutUint64(nonceWord[:], nonce)
	buf = append(buf, nonceWord[:]...)

	copy(digest[:], ethcrypto.Keccak256(buf))
	return digest, nil
}
