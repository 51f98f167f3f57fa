package badge_test

import (
	"math/big"
	"testing"

	"badgeforge/core/badge"
)

func TestSplitFeeConservation(t *testing.T) {
	cases := []struct {
		name    string
		gross   int64
		bps     uint64
		wantFee int64
	}{
		{"zero gross", 0, 250, 0},
		{"zero rate", 1_000_000, 0, 0},
		{"quarter percent", 1_000_000, 25, 2_500},
		{"two and a half percent", 1_000_000, 250, 25_000},
		{"cap rate", 1_000_000, 1000, 100_000},
		{"floors remainder", 999, 250, 24},
		{"dust below fee unit", 3, 250, 0},
		{"one unit", 1, 1000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gross := big.NewInt(tc.gross)
			split := badge.SplitFee(gross, tc.bps)
			if split.Fee.Int64() != tc.wantFee {
				t.Fatalf("fee = %s, want %d", split.Fee, tc.wantFee)
			}
			sum := new(big.Int).Add(split.Fee, split.Net)
			if sum.Cmp(gross) != 0 {
				t.Fatalf("fee + net = %s, want %s", sum, gross)
			}
		})
	}
}

func TestSplitFeeNilGross(t *testing.T) {
	split := badge.SplitFee(nil, 250)
	if split.Fee.Sign() != 0 || split.Net.Sign() != 0 {
		t.Fatalf("nil gross must split to zero, got fee=%s net=%s", split.Fee, split.Net)
	}
}
