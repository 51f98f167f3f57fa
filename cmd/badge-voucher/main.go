// badge-voucher is the issuer-side signing helper. Given the issuer
// keystore, a recipient, and either a precomputed achievement hash or a
// player stats file, it emits a signed claim authorization bound to the
// recipient's current nonce. The nonce must be fetched fresh (badge_nonce)
// before every signing; a stale authorization is permanently dead once the
// recipient settles any claim.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"badgeforge/core/badge"
	"badgeforge/crypto"
	"badgeforge/issuer"
)

func main() {
	keystorePath := flag.String("keystore", "", "Path to the issuer keystore file")
	recipientStr := flag.String("recipient", "", "Recipient bech32 address")
	achievementStr := flag.String("achievement", "", "Achievement hash (0x-prefixed, 32 bytes)")
	statsPath := flag.String("stats", "", "Player stats JSON file to hash instead of -achievement")
	minPriceStr := flag.String("min-price", "0", "Minimum price in base units")
	validFor := flag.Duration("valid-for", time.Hour, "Authorization validity window")
	nonce := flag.Uint64("nonce", 0, "Recipient's current nonce (fetch via badge_nonce)")
	chainID := flag.Uint64("chain-id", 77001, "Chain identifier of the target deployment")
	instanceStr := flag.String("instance", "", "Engine instance bech32 address")
	flag.Parse()

	if *keystorePath == "" || *recipientStr == "" || *instanceStr == "" {
		fail("keystore, recipient, and instance are required")
	}

	key, err := crypto.LoadFromKeystore(*keystorePath, os.Getenv("BADGE_ISSUER_PASS"))
	if err != nil {
		fail("load issuer key: %v", err)
	}
	recipient, err := crypto.DecodeAddress(*recipientStr)
	if err != nil {
		fail("decode recipient: %v", err)
	}
	instance, err := crypto.DecodeAddress(*instanceStr)
	if err != nil {
		fail("decode instance: %v", err)
	}

	achievement, err := resolveAchievement(*achievementStr, *statsPath)
	if err != nil {
		fail("%v", err)
	}

	minPrice, ok := new(big.Int).SetString(strings.TrimSpace(*minPriceStr), 10)
	if !ok || minPrice.Sign() < 0 {
		fail("invalid min-price %q", *minPriceStr)
	}

	separator := badge.NewDomainSeparator(badge.SeparatorName, badge.SeparatorVersion, *chainID, instance.Raw())
	signer, err := issuer.NewSigner(key, separator)
	if err != nil {
		fail("%v", err)
	}

	deadline := time.Now().Add(*validFor).Unix()
	auth, err := signer.Sign(recipient, achievement, minPrice, deadline, *nonce)
	if err != nil {
		fail("sign authorization: %v", err)
	}

	out := map[string]interface{}{
		"issuer":      signer.Identity().String(),
		"recipient":   auth.Recipient.String(),
		"achievement": "0x" + hex.EncodeToString(auth.Achievement[:]),
		"minPrice":    auth.MinPrice.String(),
		"deadline":    auth.Deadline,
		"nonce":       auth.Nonce,
		"signature":   "0x" + hex.EncodeToString(auth.Signature),
	}
	if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
		fail("encode output: %v", err)
	}
}

func resolveAchievement(achievementStr, statsPath string) ([32]byte, error) {
	var achievement [32]byte
	switch {
	case statsPath != "":
		data, err := os.ReadFile(statsPath)
		if err != nil {
			return achievement, fmt.Errorf("read stats: %w", err)
		}
		var stats issuer.PlayerStats
		if err := json.Unmarshal(data, &stats); err != nil {
			return achievement, fmt.Errorf("decode stats: %w", err)
		}
		return issuer.AchievementHash(stats)
	case achievementStr != "":
		cleaned := strings.TrimPrefix(strings.TrimSpace(achievementStr), "0x")
		decoded, err := hex.DecodeString(cleaned)
		if err != nil {
			return achievement, fmt.Errorf("decode achievement: %w", err)
		}
		if len(decoded) != len(achievement) {
			return achievement, fmt.Errorf("achievement must be 32 bytes, got %d", len(decoded))
		}
		copy(achievement[:], decoded)
		return achievement, nil
	default:
		return achievement, fmt.Errorf("either -achievement or -stats is required")
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
