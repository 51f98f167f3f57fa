package badge

import (
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"badgeforge/core/events"
	"badgeforge/core/state"
)

// Params configures a new settlement engine. Treasury must be a real
// account and the fee rate must not exceed MaxFeeBasisPoints; the issuer
// may later be rotated (including to the zero account, which suspends
// settlement until a real issuer is set again).
type Params struct {
	Owner          [20]byte
	Treasury       [20]byte
	Issuer         [20]byte
	FeeBasisPoints uint64
	ChainID        uint64
	Instance       [20]byte
}

// Receipt summarises a committed settlement.
type Receipt struct {
	Recipient   [20]byte
	Achievement [32]byte
	Digest      [32]byte
	Price       *big.Int
	Fee         *big.Int
	Net         *big.Int
	Nonce       uint64
}

// Engine is the claim settlement orchestrator. It owns the ledger state
// exclusively; callers are expected to serialize invocations (the RPC
// server holds a state mutex), while the in-flight latch rejects any
// nested re-entrant call that arrives through a transfer hook.
type Engine struct {
	kv        state.KV
	state     *state.Manager
	emitter   events.Emitter
	nowFn     func() int64
	owner     [20]byte
	instance  [20]byte
	chainID   uint64
	separator DomainSeparator
	inFlight  atomic.Bool

	// transferHook, when set, observes every outbound transfer. It runs
	// while the in-flight latch is held, so a hook calling back into Mint
	// or Withdraw fails with ErrReentrantCall instead of corrupting state.
	transferHook func(from, to [20]byte, amount *big.Int)
}

// NewEngine constructs the engine over the supplied store, persisting the
// initial configuration record when none exists yet.
func NewEngine(kv state.KV, params Params) (*Engine, error) {
	if isZero(params.Treasury) {
		return nil, ErrInvalidAccount
	}
	if params.FeeBasisPoints > MaxFeeBasisPoints {
		return nil, ErrFeeTooHigh
	}
	engine := &Engine{
		kv:        kv,
		state:     state.NewManager(kv),
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
		owner:     params.Owner,
		instance:  params.Instance,
		chainID:   params.ChainID,
		separator: NewDomainSeparator(SeparatorName, SeparatorVersion, params.ChainID, params.Instance),
	}
	_, ok, err := engine.state.EngineConfig()
	if err != nil {
		return nil, err
	}
	if !ok {
		record := &state.ConfigRecord{
			Treasury:       params.Treasury,
			FeeBasisPoints: params.FeeBasisPoints,
			Issuer:         params.Issuer,
		}
		if err := engine.state.PutEngineConfig(record); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

// SetEmitter configures the event emitter. Passing nil resets it to a
// no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetTransferHook installs an observer for outbound transfers.
func (e *Engine) SetTransferHook(hook func(from, to [20]byte, amount *big.Int)) {
	e.transferHook = hook
}

// Separator exposes the deployment-bound domain separator so issuer-side
// tooling can sign compatible digests.
func (e *Engine) Separator() DomainSeparator { return e.separator }

// Instance returns the engine's own vault address.
func (e *Engine) Instance() [20]byte { return e.instance }

// ChainID returns the chain identifier baked into the separator.
func (e *Engine) ChainID() uint64 { return e.chainID }

// Mint is the single settlement entry point. It admits the claim through
// the full check ladder and commits nonce, digest, fee split, and grant as
// one transition; any failure leaves every record exactly as it was.
func (e *Engine) Mint(caller [20]byte, claim Claim, payment *big.Int) (*Receipt, error) {
	if !e.enter() {
		return nil, ErrReentrantCall
	}
	defer e.exit()

	cfg, ok, err := e.state.EngineConfig()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("badge: engine not initialised")
	}
	if cfg.Paused {
		return nil, ErrPaused
	}
	if isZero(claim.Recipient) {
		return nil, ErrZeroAccount
	}
	paid := payment
	if paid == nil {
		paid = big.NewInt(0)
	}
	minPrice := claim.MinPrice
	if minPrice == nil {
		minPrice = big.NewInt(0)
	}
	if paid.Cmp(minPrice) < 0 {
		return nil, ErrInsufficientPayment
	}
	if e.nowFn() > claim.Deadline {
		return nil, ErrExpired
	}

	txn, overlay := e.state.Begin()
	ledger := NewLedger(txn)

	// Grant check runs before the digest and signature checks: a caller
	// can learn "already granted" without presenting a valid signature.
	granted, err := ledger.IsGranted(claim.Recipient, claim.Achievement)
	if err != nil {
		return nil, err
	}
	if granted {
		return nil, ErrAlreadyGranted
	}

	nonce, err := ledger.PeekNonce(claim.Recipient)
	if err != nil {
		return nil, err
	}
	digest, err := claim.Digest(e.separator, nonce)
	if err != nil {
		return nil, err
	}
	used, err := e.state.DigestUsed(digest)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrDigestUsed
	}
	signer, err := RecoverSigner(digest, claim.Signature)
	if err != nil {
		return nil, err
	}
	if signer != cfg.Issuer {
		return nil, ErrInvalidSigner
	}

	// Point of no return: from here every step must succeed or the whole
	// overlay is discarded.
	if err := txn.Credit(e.instance, paid); err != nil {
		return nil, err
	}
	if err := ledger.Consume(claim.Recipient, digest); err != nil {
		return nil, err
	}
	split, err := distribute(txn, e.instance, cfg.Treasury, paid, cfg.FeeBasisPoints)
	if err != nil {
		return nil, err
	}
	if err := ledger.Grant(claim.Recipient, claim.Achievement); err != nil {
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		return nil, err
	}

	if split.Fee.Sign() > 0 {
		e.notifyTransfer(e.instance, cfg.Treasury, split.Fee)
		e.emit(events.FeeTaken{
			Payer:    caller,
			Gross:    new(big.Int).Set(paid),
			Fee:      new(big.Int).Set(split.Fee),
			Treasury: cfg.Treasury,
		})
	}
	e.emit(events.BadgeSettled{
		Recipient:   claim.Recipient,
		Achievement: claim.Achievement,
		Price:       new(big.Int).Set(minPrice),
		Fee:         new(big.Int).Set(split.Fee),
	})

	return &Receipt{
		Recipient:   claim.Recipient,
		Achievement: claim.Achievement,
		Digest:      digest,
		Price:       new(big.Int).Set(minPrice),
		Fee:         split.Fee,
		Net:         split.Net,
		Nonce:       nonce + 1,
	}, nil
}

// Deposit credits the vault for a direct transfer that bypasses Mint.
func (e *Engine) Deposit(from [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("badge: deposit must be positive")
	}
	if err := e.state.Credit(e.instance, amount); err != nil {
		return err
	}
	e.emit(events.FundsReceived{From: from, Amount: new(big.Int).Set(amount)})
	return nil
}

// --- Read-only queries ---

// Balance returns the aggregate native-currency balance held by the vault.
func (e *Engine) Balance() (*big.Int, error) {
	return e.state.BalanceOf(e.instance)
}

// BalanceOf returns any account's balance, mainly for tests and tooling.
func (e *Engine) BalanceOf(addr [20]byte) (*big.Int, error) {
	return e.state.BalanceOf(addr)
}

// PeekNonce returns the account's current authorization nonce.
func (e *Engine) PeekNonce(account [20]byte) (uint64, error) {
	return e.state.NonceOf(account)
}

// IsGranted reports whether the (account, achievement) pair holds a badge.
func (e *Engine) IsGranted(account [20]byte, achievement [32]byte) (bool, error) {
	return e.state.HasGrant(account, achievement)
}

// Config returns a snapshot of the current engine configuration.
func (e *Engine) Config() (state.ConfigRecord, error) {
	cfg, ok, err := e.state.EngineConfig()
	if err != nil {
		return state.ConfigRecord{}, err
	}
	if !ok {
		return state.ConfigRecord{}, fmt.Errorf("badge: engine not initialised")
	}
	return *cfg, nil
}

// --- internals ---

func (e *Engine) enter() bool {
	return e.inFlight.CompareAndSwap(false, true)
}

func (e *Engine) exit() {
	e.inFlight.Store(false)
}

func (e *Engine) emit(event events.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) notifyTransfer(from, to [20]byte, amount *big.Int) {
	if e.transferHook == nil {
		return
	}
	e.transferHook(from, to, amount)
}

func isZero(addr [20]byte) bool {
	return addr == [20]byte{}
}
