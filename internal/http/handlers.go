package http

import (
	"net/http"
	"strconv"
	"strings"

	"calmledger/internal/core"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "not_ready", Message: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleState returns every collection plus balances. ?limit caps the
// transactions list (default 50, 0 for all).
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	limit := DefaultTransactionLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid limit", Field: "limit"})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.svc.Snapshot(limit))
}

type statsResponse struct {
	core.Dashboard
	Net core.Money `json:"net"`
}

// handleStats serves the month dashboard for ?date (default today).
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ref := s.svc.Today()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			invalidParam(w, "date", err)
			return
		}
		ref = d
	}

	dash, hit := s.stats.Get(ref)
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, statsResponse{Dashboard: dash, Net: dash.Totals.Net()})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in core.AccountInput
	if !decodeJSON(w, r, &in) {
		return
	}
	acc, err := s.svc.AddAccount(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var in core.AccountInput
	if !decodeJSON(w, r, &in) {
		return
	}
	acc, err := s.svc.UpdateAccount(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.DeleteAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// handleAccountReferences tells a client what deleting the account would
// take with it.
func (s *Server) handleAccountReferences(w http.ResponseWriter, r *http.Request) {
	refs, err := s.svc.AccountReferences(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var in core.TagInput
	if !decodeJSON(w, r, &in) {
		return
	}
	tag, err := s.svc.AddTag(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	var in core.TagInput
	if !decodeJSON(w, r, &in) {
		return
	}
	tag, err := s.svc.UpdateTag(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	stripped, err := s.svc.DeleteTag(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stripped": stripped})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in core.TransactionInput
	if !decodeJSON(w, r, &in) {
		return
	}
	tx, err := s.svc.AddTransaction(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var in core.RecurringInput
	if !decodeJSON(w, r, &in) {
		return
	}
	tpl, err := s.svc.AddRecurring(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteRecurring(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleRecurring(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.svc.ToggleRecurring(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) handleMaterializeRecurring(w http.ResponseWriter, r *http.Request) {
	tx, err := s.svc.MaterializeToday(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}
