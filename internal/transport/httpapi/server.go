// Package httpapi is the bankerd admin and debug API: account registration,
// local state inspection, and bid/win entry points for pipeline components
// that talk HTTP instead of linking the library.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bidstream-io/localbanker"
	"github.com/bidstream-io/localbanker/internal/domain"
)

// Server exposes a Banker over HTTP.
type Server struct {
	banker *localbanker.Banker
	logger *zap.Logger
}

// NewServer creates an admin API server.
func NewServer(banker *localbanker.Banker, logger *zap.Logger) *Server {
	return &Server{banker: banker, logger: logger}
}

// Routes mounts all handlers on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.health)
	r.Get("/accounts", s.listAccounts)
	r.Post("/accounts", s.addAccount)
	r.Get("/accounts/{name}", s.getAccount)
	r.Post("/bid", s.bid)
	r.Post("/win", s.win)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listAccounts(w http.ResponseWriter, _ *http.Request) {
	accounts := s.banker.Accounts()
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

type addAccountRequest struct {
	Name string `json:"name"`
}

func (s *Server) addAccount(w http.ResponseWriter, r *http.Request) {
	var req addAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	key, err := domain.ParseAccountKey(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Registration is asynchronous; the account becomes biddable once the
	// ledger confirms it.
	s.banker.AddAccount(key)
	writeJSON(w, http.StatusAccepted, map[string]string{"name": req.Name, "status": "pending"})
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	key, err := domain.ParseAccountKey(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	info, err := s.banker.Account(key)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type decisionRequest struct {
	Account string `json:"account"`
	Price   int64  `json:"price"`
}

func (s *Server) bid(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDecision(w, r)
	if !ok {
		return
	}
	admitted := s.banker.Bid(req.key, domain.MicroUSD(req.Price))
	writeJSON(w, http.StatusOK, map[string]bool{"admitted": admitted})
}

func (s *Server) win(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeDecision(w, r)
	if !ok {
		return
	}
	accounted := s.banker.Win(req.key, domain.MicroUSD(req.Price))
	writeJSON(w, http.StatusOK, map[string]bool{"accounted": accounted})
}

type decision struct {
	decisionRequest
	key domain.AccountKey
}

func decodeDecision(w http.ResponseWriter, r *http.Request) (decision, bool) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return decision{}, false
	}
	key, err := domain.ParseAccountKey(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return decision{}, false
	}
	if req.Price < 0 {
		writeError(w, http.StatusBadRequest, "price must not be negative")
		return decision{}, false
	}
	return decision{decisionRequest: req, key: key}, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
