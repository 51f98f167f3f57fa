package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"badgeforge/core/badge"
	"badgeforge/crypto"
	"badgeforge/observability/metrics"
)

type mintParams struct {
	Payer       string `json:"payer"`
	Recipient   string `json:"recipient"`
	Achievement string `json:"achievement"`
	MinPrice    string `json:"minPrice"`
	Deadline    int64  `json:"deadline"`
	Signature   string `json:"signature"`
	Payment     string `json:"payment"`
}

type mintResult struct {
	Recipient   string `json:"recipient"`
	Achievement string `json:"achievement"`
	Digest      string `json:"digest"`
	Price       string `json:"price"`
	Fee         string `json:"fee"`
	Net         string `json:"net"`
	Nonce       uint64 `json:"nonce"`
}

func (s *Server) handleMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected mint payload", nil)
		return
	}
	var params mintParams
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid mint payload", err.Error())
		return
	}

	payer, err := parseAddress(params.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payer", err.Error())
		return
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid recipient", err.Error())
		return
	}
	achievement, err := parseHash(params.Achievement)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid achievement", err.Error())
		return
	}
	minPrice, err := parseAmount(params.MinPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid minPrice", err.Error())
		return
	}
	payment, err := parseAmount(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payment", err.Error())
		return
	}
	signature, err := parseHexBytes(params.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid signature", err.Error())
		return
	}

	claim := badge.Claim{
		Recipient:   recipient.Raw(),
		Achievement: achievement,
		MinPrice:    minPrice,
		Deadline:    params.Deadline,
		Signature:   signature,
	}

	s.stateMu.Lock()
	receipt, err := s.engine.Mint(payer.Raw(), claim, payment)
	s.stateMu.Unlock()
	if err != nil {
		metrics.Badge().ObserveAbort(abortReason(err))
		s.logger.Info("settlement aborted", "reason", abortReason(err), "recipient", params.Recipient)
		writeError(w, http.StatusOK, req.ID, codeServerError, err.Error(), nil)
		return
	}

	metrics.Badge().ObserveSettlement()
	if receipt.Fee.Sign() > 0 {
		fee, _ := new(big.Float).SetInt(receipt.Fee).Float64()
		metrics.Badge().AddFeesCollected(fee)
	}
	if balance, err := s.engine.Balance(); err == nil {
		units, _ := new(big.Float).SetInt(balance).Float64()
		metrics.Badge().SetVaultBalance(units)
	}
	s.logger.Info("settlement committed",
		"recipient", params.Recipient,
		"fee", receipt.Fee.String(),
		"nonce", receipt.Nonce,
	)

	writeResult(w, req.ID, mintResult{
		Recipient:   params.Recipient,
		Achievement: "0x" + hex.EncodeToString(receipt.Achievement[:]),
		Digest:      "0x" + hex.EncodeToString(receipt.Digest[:]),
		Price:       receipt.Price.String(),
		Fee:         receipt.Fee.String(),
		Net:         receipt.Net.String(),
		Nonce:       receipt.Nonce,
	})
}

func (s *Server) handleNonce(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, ok := s.singleAddressParam(w, req)
	if !ok {
		return
	}
	nonce, err := s.engine.PeekNonce(addr.Raw())
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"address": addr.String(),
		"nonce":   nonce,
	})
}

func (s *Server) handleGranted(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 2 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected address and achievement", nil)
		return
	}
	var addrStr, hashStr string
	if err := json.Unmarshal(req.Params[0], &addrStr); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	if err := json.Unmarshal(req.Params[1], &hashStr); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid achievement", err.Error())
		return
	}
	addr, err := parseAddress(addrStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	achievement, err := parseHash(hashStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid achievement", err.Error())
		return
	}
	granted, err := s.engine.IsGranted(addr.Raw(), achievement)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"address":     addr.String(),
		"achievement": hashStr,
		"granted":     granted,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	balance, err := s.engine.Balance()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]string{"balance": balance.String()})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	cfg, err := s.engine.Config()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"treasury":       crypto.MustNewAddress(crypto.BadgePrefix, cfg.Treasury[:]).String(),
		"feeBasisPoints": cfg.FeeBasisPoints,
		"issuer":         crypto.MustNewAddress(crypto.BadgePrefix, cfg.Issuer[:]).String(),
		"paused":         cfg.Paused,
		"version":        cfg.Version,
	})
}

// --- parameter helpers ---

func (s *Server) singleAddressParam(w http.ResponseWriter, req *RPCRequest) (crypto.Address, bool) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected a single address", nil)
		return crypto.Address{}, false
	}
	var addrStr string
	if err := json.Unmarshal(req.Params[0], &addrStr); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return crypto.Address{}, false
	}
	addr, err := parseAddress(addrStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return crypto.Address{}, false
	}
	return addr, true
}

func parseAddress(raw string) (crypto.Address, error) {
	return crypto.DecodeAddress(strings.TrimSpace(raw))
}

func parseHash(raw string) ([32]byte, error) {
	var hash [32]byte
	cleaned := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(cleaned)
	if err != nil {
		return hash, err
	}
	if len(decoded) != len(hash) {
		return hash, errors.New("expected 32 bytes")
	}
	copy(hash[:], decoded)
	return hash, nil
}

func parseHexBytes(raw string) ([]byte, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	return hex.DecodeString(cleaned)
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, errors.New("invalid decimal amount")
	}
	if value.Sign() < 0 {
		return nil, errors.New("amount must be non-negative")
	}
	return value, nil
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, badge.ErrPaused):
		return "paused"
	case errors.Is(err, badge.ErrZeroAccount):
		return "zero_account"
	case errors.Is(err, badge.ErrInsufficientPayment):
		return "insufficient_payment"
	case errors.Is(err, badge.ErrExpired):
		return "expired"
	case errors.Is(err, badge.ErrAlreadyGranted):
		return "already_granted"
	case errors.Is(err, badge.ErrDigestUsed):
		return "digest_used"
	case errors.Is(err, badge.ErrInvalidSigner):
		return "invalid_signer"
	case errors.Is(err, badge.ErrMalformedSignature):
		return "malformed_signature"
	case errors.Is(err, badge.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, badge.ErrReentrantCall):
		return "reentrant_call"
	default:
		return "internal"
	}
}
