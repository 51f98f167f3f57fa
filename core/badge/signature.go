package badge

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the width of a recoverable secp256k1 signature:
// r (32), s (32), recovery id (1).
const SignatureLength = 65

// RecoverSigner recovers the account that produced sig over digest. It
// fails with ErrMalformedSignature when the signature is not structurally
// valid; comparing the result against the configured issuer is the
// orchestrator's job, keeping this primitive reusable for any digest.
func RecoverSigner(digest [32]byte, sig []byte) ([20]byte, error) {
	var signer [20]byte
	if len(sig) != SignatureLength {
		return signer, ErrMalformedSignature
	}
	pubKey, err := ethcrypto.SigToPub(digest[:], sig)
	if err != nil {
		return signer, ErrMalformedSignature
	}
	copy(signer[:], ethcrypto.PubkeyToAddress(*pubKey).Bytes())
	return signer, nil
}
