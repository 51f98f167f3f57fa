package badge_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"badgeforge/core/badge"
	"badgeforge/core/events"
	"badgeforge/crypto"
	"badgeforge/storage"
)

const testChainID uint64 = 187

type fixture struct {
	engine    *badge.Engine
	issuerKey *crypto.PrivateKey
	owner     [20]byte
	treasury  [20]byte
	instance  [20]byte
	recorder  *recorder
}

type recorder struct {
	events []events.Event
}

func (r *recorder) Emit(event events.Event) {
	r.events = append(r.events, event)
}

func (r *recorder) lastType() string {
	if len(r.events) == 0 {
		return ""
	}
	return r.events[len(r.events)-1].EventType()
}

func newAddress(t *testing.T) ([20]byte, *crypto.PrivateKey) {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key.PubKey().Address().Raw(), key
}

func newFixture(t *testing.T, feeBps uint64) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)

	owner, _ := newAddress(t)
	treasury, _ := newAddress(t)
	instance, _ := newAddress(t)
	_, issuerKey := newAddress(t)

	engine, err := badge.NewEngine(db, badge.Params{
		Owner:          owner,
		Treasury:       treasury,
		Issuer:         issuerKey.PubKey().Address().Raw(),
		FeeBasisPoints: feeBps,
		ChainID:        testChainID,
		Instance:       instance,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	rec := &recorder{}
	engine.SetEmitter(rec)
	return &fixture{
		engine:    engine,
		issuerKey: issuerKey,
		owner:     owner,
		treasury:  treasury,
		instance:  instance,
		recorder:  rec,
	}
}

func signClaim(t *testing.T, key *crypto.PrivateKey, sep badge.DomainSeparator, claim badge.Claim, nonce uint64) []byte {
	t.Helper()
	digest, err := claim.Digest(sep, nonce)
	if err != nil {
		t.Fatalf("claim digest: %v", err)
	}
	sig, err := ethcrypto.Sign(digest[:], key.PrivateKey)
	if err != nil {
		t.Fatalf("sign digest: %v", err)
	}
	return sig
}

func validClaim(t *testing.T, f *fixture, recipient [20]byte, achievement [32]byte, price int64) badge.Claim {
	t.Helper()
	claim := badge.Claim{
		Recipient:   recipient,
		Achievement: achievement,
		MinPrice:    big.NewInt(price),
		Deadline:    time.Now().Add(time.Hour).Unix(),
	}
	nonce, err := f.engine.PeekNonce(recipient)
	if err != nil {
		t.Fatalf("peek nonce: %v", err)
	}
	claim.Signature = signClaim(t, f.issuerKey, f.engine.Separator(), claim, nonce)
	return claim
}

func TestMintSettlesClaim(t *testing.T) {
	f := newFixture(t, 250)
	recipient, _ := newAddress(t)
	achievement := [32]byte{1, 2, 3}
	claim := validClaim(t, f, recipient, achievement, 1_000_000)

	receipt, err := f.engine.Mint(recipient, claim, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if want := big.NewInt(25_000); receipt.Fee.Cmp(want) != 0 {
		t.Fatalf("fee = %s, want %s", receipt.Fee, want)
	}
	if want := big.NewInt(975_000); receipt.Net.Cmp(want) != 0 {
		t.Fatalf("net = %s, want %s", receipt.Net, want)
	}
	if receipt.Nonce != 1 {
		t.Fatalf("receipt nonce = %d, want 1", receipt.Nonce)
	}

	nonce, err := f.engine.PeekNonce(recipient)
	if err != nil {
		t.Fatalf("peek nonce: %v", err)
	}
	if nonce != 1 {
		t.Fatalf("nonce = %d, want 1", nonce)
	}
	granted, err := f.engine.IsGranted(recipient, achievement)
	if err != nil {
		t.Fatalf("is granted: %v", err)
	}
	if !granted {
		t.Fatal("expected grant to be recorded")
	}
	treasuryBalance, err := f.engine.BalanceOf(f.treasury)
	if err != nil {
		t.Fatalf("treasury balance: %v", err)
	}
	if want := big.NewInt(25_000); treasuryBalance.Cmp(want) != 0 {
		t.Fatalf("treasury balance = %s, want %s", treasuryBalance, want)
	}
	vault, err := f.engine.Balance()
	if err != nil {
		t.Fatalf("vault balance: %v", err)
	}
	if want := big.NewInt(975_000); vault.Cmp(want) != 0 {
		t.Fatalf("vault balance = %s, want %s", vault, want)
	}
	if f.recorder.lastType() != events.TypeBadgeSettled {
		t.Fatalf("last event = %q, want %q", f.recorder.lastType(), events.TypeBadgeSettled)
	}
}

func TestMintInsufficientPayment(t *testing.T) {
	f := newFixture(t, 250)
	recipient, _ := newAddress(t)
	achievement := [32]byte{4}
	claim := validClaim(t, f, recipient, achievement, 1_000_000)

	_, err := f.engine.Mint(recipient, claim, big.NewInt(500_000))
	if !errors.Is(err, badge.ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}

	nonce, err := f.engine.PeekNonce(recipient)
	if err != nil {
		t.Fatalf("peek nonce: %v", err)
	}
	if nonce != 0 {
		t.Fatalf("nonce = %d, want 0 after abort", nonce)
	}
	granted, err := f.engine.IsGranted(recipient, achievement)
	if err != nil {
		t.Fatalf("is granted: %v", err)
	}
	if granted {
		t.Fatal("grant must not exist after abort")
	}
	vault, err := f.engine.Balance()
	if err != nil {
		t.Fatalf("vault balance: %v", err)
	}
	if vault.Sign() != 0 {
		t.Fatalf("vault balance = %s, want 0 after abort", vault)
	}
}

func TestMintReplayIsRejected(t *testing.T) {
	f := newFixture(t, 250)
	recipient, _ := newAddress(t)
	achievement := [32]byte{5}
	claim := validClaim(t, f, recipient, achievement, 1_000_000)

	if _, err := f.engine.Mint(recipient, claim, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("first mint: %v", err)
	}

	// The grant check runs before the digest check, so an exact replay of
	// a settled call reports the cheaper, more specific error.
	_, err := f.engine.Mint(recipient, claim, big.NewInt(1_000_000))
	if !errors.Is(err, badge.ErrAlreadyGranted) {
		t.Fatalf("expected ErrAlreadyGranted on replay, got %v", err)
	}
	nonce, err := f.engine.PeekNonce(recipient)
	if err != nil {
		t.Fatalf("peek nonce: %v", err)
	}
	if nonce != 1 {
		t.Fatalf("nonce = %d, want 1 (replay must not consume)", nonce)
	}
}

func TestMintIdempotentGrant(t *testing.T) {
	f := newFixture(t, 0)
	recipient, _ := newAddress(t)
	achievement := [32]byte{6}
	claim := validClaim(t, f, recipient, achievement, 0)

	if _, err := f.engine.Mint(recipient, claim, nil); err != nil {
		t.Fatalf("first mint: %v", err)
	}

	// Even a fresh signature over the advanced nonce cannot re-grant the
	// same (account, achievement) pair.
	fresh := validClaim(t, f, recipient, achievement, 0)
	_, err := f.engine.Mint(recipient, fresh, nil)
	if !errors.Is(err, badge.ErrAlreadyGranted) {
		t.Fatalf("expected ErrAlreadyGranted, got %v", err)
	}
}

func TestMintStaleSignatureAfterSettlement(t *testing.T) {
	f := newFixture(t, 0)
	recipient, _ := newAddress(t)

	first := validClaim(t, f, recipient, [32]byte{7}, 0)
	// Signed against nonce 0 as well, but for a different achievement.
	stale := validClaim(t, f, recipient, [32]byte{8}, 0)

	if _, err := f.engine.Mint(recipient, first, nil); err != nil {
		t.Fatalf("first mint: %v", err)
	}

	// The nonce advanced, so the stale authorization's digest no longer
	// matches what the issuer signed; it is permanently dead.
	_, err := f.engine.Mint(recipient, stale, nil)
	if !errors.Is(err, badge.ErrInvalidSigner) {
		t.Fatalf("expected ErrInvalidSigner for stale signature, got %v", err)
	}
}

func TestMintExpired(t *testing.T) {
	f := newFixture(t, 0)
	recipient, _ := newAddress(t)
	claim := validClaim(t, f, recipient, [32]byte{9}, 0)

	f.engine.SetNowFunc(func() int64 { return claim.Deadline + 1 })
	_, err := f.engine.Mint(recipient, claim, nil)
	if !errors.Is(err, badge.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestMintPaused(t *testing.T) {
	f := newFixture(t, 0)
	recipient, _ := newAddress(t)
	claim := validClaim(t, f, recipient, [32]byte{10}, 0)

	if err := f.engine.Pause(f.owner); err != nil {
		t.Fatalf("pause: %v", err)
	}
	_, err := f.engine.Mint(recipient, claim, nil)
	if !errors.Is(err, badge.ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}

	// Administrative calls remain available while paused.
	if err := f.engine.SetFeeBasisPoints(f.owner, 100); err != nil {
		t.Fatalf("set fee while paused: %v", err)
	}
	if err := f.engine.Resume(f.owner); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := f.engine.Mint(recipient, claim, nil); err != nil {
		t.Fatalf("mint after resume: %v", err)
	}
}

func TestMintZeroRecipient(t *testing.T) {
	f := newFixture(t, 0)
	claim := badge.Claim{
		Deadline: time.Now().Add(time.Hour).Unix(),
	}
	_, err := f.engine.Mint([20]byte{}, claim, nil)
	if !errors.Is(err, badge.ErrZeroAccount) {
		t.Fatalf("expected ErrZeroAccount, got %v", err)
	}
}

func TestMintRogueSigner(t *testing.T) {
	f := newFixture(t, 0)
	recipient, _ := newAddress(t)
	_, rogueKey := newAddress(t)

	claim := badge.Claim{
		Recipient:   recipient,
		Achievement: [32]byte{11},
		MinPrice:    big.NewInt(0),
		Deadline:    time.Now().Add(time.Hour).Unix(),
	}
	claim.Signature = signClaim(t, rogueKey, f.engine.Separator(), claim, 0)

	_, err := f.engine.Mint(recipient, claim, nil)
	if !errors.Is(err, badge.ErrInvalidSigner) {
		t.Fatalf("expected ErrInvalidSigner, got %v", err)
	}
}

func TestMintMalformedSignature(t *testing.T) {
	f := newFixture(t, 0)
	recipient, _ := newAddress(t)
	claim := badge.Claim{
		Recipient:   recipient,
		Achievement: [32]byte{12},
		MinPrice:    big.NewInt(0),
		Deadline:    time.Now().Add(time.Hour).Unix(),
		Signature:   []byte{0x01, 0x02},
	}
	_, err := f.engine.Mint(recipient, claim, nil)
	if !errors.Is(err, badge.ErrMalformedSignature) {
		t.Fatalf("expected ErrMalformedSignature, got %v", err)
	}
}

func TestMintCrossDeploymentSignature(t *testing.T) {
	f := newFixture(t, 0)
	recipient, _ := newAddress(t)

	// Sign against a separator for a different chain; the digest this
	// engine computes will not match, so the recovered signer differs.
	foreign := badge.NewDomainSeparator(badge.SeparatorName, badge.SeparatorVersion, testChainID+1, f.instance)
	claim := badge.Claim{
		Recipient:   recipient,
		Achievement: [32]byte{13},
		MinPrice:    big.NewInt(0),
		Deadline:    time.Now().Add(time.Hour).Unix(),
	}
	claim.Signature = signClaim(t, f.issuerKey, foreign, claim, 0)

	_, err := f.engine.Mint(recipient, claim, nil)
	if !errors.Is(err, badge.ErrInvalidSigner) {
		t.Fatalf("expected ErrInvalidSigner for foreign separator, got %v", err)
	}
}

func TestMintNonceMonotonicAcrossSettlements(t *testing.T) {
	f := newFixture(t, 0)
	recipient, _ := newAddress(t)

	for i := 1; i <= 3; i++ {
		claim := validClaim(t, f, recipient, [32]byte{byte(100 + i)}, 0)
		receipt, err := f.engine.Mint(recipient, claim, nil)
		if err != nil {
			t.Fatalf("mint %d: %v", i, err)
		}
		if receipt.Nonce != uint64(i) {
			t.Fatalf("mint %d: nonce = %d, want %d", i, receipt.Nonce, i)
		}
	}
}

func TestMintReentrantCallRejected(t *testing.T) {
	f := newFixture(t, 250)
	recipient, _ := newAddress(t)
	claim := validClaim(t, f, recipient, [32]byte{14}, 1_000_000)

	var nested error
	f.engine.SetTransferHook(func(_, _ [20]byte, _ *big.Int) {
		_, nested = f.engine.Mint(recipient, claim, big.NewInt(1_000_000))
	})

	if _, err := f.engine.Mint(recipient, claim, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("outer mint: %v", err)
	}
	if !errors.Is(nested, badge.ErrReentrantCall) {
		t.Fatalf("expected nested ErrReentrantCall, got %v", nested)
	}
}

func TestNewEngineRejectsBadParams(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	owner, _ := newAddress(t)
	treasury, _ := newAddress(t)

	if _, err := badge.NewEngine(db, badge.Params{Owner: owner}); !errors.Is(err, badge.ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount for zero treasury, got %v", err)
	}
	if _, err := badge.NewEngine(db, badge.Params{Owner: owner, Treasury: treasury, FeeBasisPoints: 1001}); !errors.Is(err, badge.ErrFeeTooHigh) {
		t.Fatalf("expected ErrFeeTooHigh, got %v", err)
	}
}
