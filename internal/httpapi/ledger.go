package httpapi

import (
	"errors"
	"net/http"

	"atomic-swap-go/asset"
)

// 账本接口，仅在宿主提供可查询账本时注册；铸币另需打开管理开关。

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ledger.Mint(r.Context(), req.Asset, req.To, req.Amount); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	s.log.LogCustody("mint", map[string]interface{}{"asset": req.Asset, "to": req.To, "amount": req.Amount})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !s.decode(w, r, &req) {
		return
	}
	owner := caller(r)
	if err := s.ledger.Approve(r.Context(), req.Asset, owner, req.Spender, req.Amount); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := asset.ID(q.Get("asset"))
	owner := asset.Address(q.Get("owner"))
	if id.IsZero() || owner.IsZero() {
		writeError(w, http.StatusBadRequest, "request", "asset and owner are required")
		return
	}
	bal, err := s.ledger.BalanceOf(r.Context(), id, owner)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	resp := map[string]interface{}{"asset": id, "owner": owner, "balance": bal}
	if spender := asset.Address(q.Get("spender")); !spender.IsZero() {
		allowed, err := s.ledger.Allowance(r.Context(), id, owner, spender)
		if err != nil {
			s.writeLedgerError(w, err)
			return
		}
		resp["spender"] = spender
		resp["allowance"] = allowed
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, asset.ErrZeroAsset), errors.Is(err, asset.ErrZeroAddress), errors.Is(err, asset.ErrOverflow):
		writeError(w, http.StatusBadRequest, "validation", err.Error())
	default:
		s.log.LogError(err, map[string]interface{}{"component": "httpapi", "area": "ledger"})
		writeError(w, http.StatusInternalServerError, "unknown", err.Error())
	}
}
