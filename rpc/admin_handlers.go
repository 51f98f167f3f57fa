package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"badgeforge/core/badge"
	"badgeforge/observability/metrics"
)

// Administrative handlers. The authenticator has already resolved the
// caller identity from the bearer token; the engine enforces the owner
// role, so a valid token held by a non-owner account still fails.

func (s *Server) handleSetTreasury(w http.ResponseWriter, req *RPCRequest, caller [20]byte) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected treasury address", nil)
		return
	}
	var addrStr string
	if err := json.Unmarshal(req.Params[0], &addrStr); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid treasury address", err.Error())
		return
	}
	treasury, err := parseAddress(addrStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid treasury address", err.Error())
		return
	}

	s.stateMu.Lock()
	err = s.engine.SetTreasury(caller, treasury.Raw())
	s.stateMu.Unlock()
	if err != nil {
		s.writeAdminError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"treasury": treasury.String()})
}

func (s *Server) handleSetFeeBasisPoints(w http.ResponseWriter, req *RPCRequest, caller [20]byte) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected fee rate", nil)
		return
	}
	var bps uint64
	if err := json.Unmarshal(req.Params[0], &bps); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid fee rate", err.Error())
		return
	}

	s.stateMu.Lock()
	err := s.engine.SetFeeBasisPoints(caller, bps)
	s.stateMu.Unlock()
	if err != nil {
		s.writeAdminError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"feeBasisPoints": bps})
}

func (s *Server) handleSetIssuer(w http.ResponseWriter, req *RPCRequest, caller [20]byte) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected issuer address", nil)
		return
	}
	var addrStr string
	if err := json.Unmarshal(req.Params[0], &addrStr); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid issuer address", err.Error())
		return
	}
	issuer, err := parseAddress(addrStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid issuer address", err.Error())
		return
	}

	s.stateMu.Lock()
	err = s.engine.SetIssuer(caller, issuer.Raw())
	s.stateMu.Unlock()
	if err != nil {
		s.writeAdminError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"issuer": issuer.String()})
}

func (s *Server) handlePause(w http.ResponseWriter, req *RPCRequest, caller [20]byte) {
	s.stateMu.Lock()
	err := s.engine.Pause(caller)
	s.stateMu.Unlock()
	if err != nil {
		s.writeAdminError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, req *RPCRequest, caller [20]byte) {
	s.stateMu.Lock()
	err := s.engine.Resume(caller)
	s.stateMu.Unlock()
	if err != nil {
		s.writeAdminError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"paused": false})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, req *RPCRequest, caller [20]byte) {
	if len(req.Params) != 2 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected destination and amount", nil)
		return
	}
	var addrStr, amountStr string
	if err := json.Unmarshal(req.Params[0], &addrStr); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid destination", err.Error())
		return
	}
	if err := json.Unmarshal(req.Params[1], &amountStr); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	destination, err := parseAddress(addrStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid destination", err.Error())
		return
	}
	amount, err := parseAmount(amountStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}

	s.stateMu.Lock()
	err = s.engine.Withdraw(caller, destination.Raw(), amount)
	s.stateMu.Unlock()
	if err != nil {
		s.writeAdminError(w, req, err)
		return
	}
	metrics.Badge().ObserveWithdrawal()
	writeResult(w, req.ID, map[string]string{
		"destination": destination.String(),
		"amount":      amount.String(),
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, req *RPCRequest, caller [20]byte) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected amount", nil)
		return
	}
	var amountStr string
	if err := json.Unmarshal(req.Params[0], &amountStr); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	amount, err := parseAmount(amountStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}

	s.stateMu.Lock()
	err = s.engine.Deposit(caller, amount)
	s.stateMu.Unlock()
	if err != nil {
		s.writeAdminError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"amount": amount.String()})
}

func (s *Server) writeAdminError(w http.ResponseWriter, req *RPCRequest, err error) {
	status := http.StatusOK
	code := codeServerError
	if errors.Is(err, badge.ErrUnauthorized) {
		status = http.StatusForbidden
		code = codeUnauthorized
	}
	writeError(w, status, req.ID, code, err.Error(), nil)
}
