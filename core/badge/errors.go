package badge

import "errors"

var (
	// ErrPaused indicates the global settlement switch is off.
	ErrPaused = errors.New("badge: settlement paused")
	// ErrZeroAccount indicates the claim recipient is the zero account.
	ErrZeroAccount = errors.New("badge: recipient is the zero account")
	// ErrInsufficientPayment indicates the attached payment does not cover
	// the authorized minimum price.
	ErrInsufficientPayment = errors.New("badge: payment below minimum price")
	// ErrExpired indicates the authorization deadline has elapsed.
	ErrExpired = errors.New("badge: authorization expired")
	// ErrAlreadyGranted indicates the recipient already holds the badge.
	ErrAlreadyGranted = errors.New("badge: achievement already granted")
	// ErrDigestUsed indicates the authorization digest was already consumed.
	ErrDigestUsed = errors.New("badge: authorization already used")
	// ErrInvalidSigner indicates the recovered signer is not the configured
	// issuer.
	ErrInvalidSigner = errors.New("badge: signer is not the issuer")
	// ErrMalformedSignature indicates the signature is not a structurally
	// valid recoverable signature.
	ErrMalformedSignature = errors.New("badge: malformed signature")
	// ErrTransferFailed indicates a fee or withdrawal transfer could not be
	// applied; the triggering call aborts as a whole.
	ErrTransferFailed = errors.New("badge: transfer failed")
	// ErrUnauthorized indicates the caller does not hold the owner role.
	ErrUnauthorized = errors.New("badge: caller is not the owner")
	// ErrInvalidAccount indicates a zero account where a real one is
	// required.
	ErrInvalidAccount = errors.New("badge: invalid account")
	// ErrFeeTooHigh indicates a fee rate above the hard cap.
	ErrFeeTooHigh = errors.New("badge: fee rate above cap")
	// ErrInsufficientBalance indicates a withdrawal exceeding the vault
	// balance.
	ErrInsufficientBalance = errors.New("badge: insufficient balance")
	// ErrReentrantCall indicates a nested call arrived while a settlement
	// or withdrawal was in progress.
	ErrReentrantCall = errors.New("badge: reentrant call")
)
