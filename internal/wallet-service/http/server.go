package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/wallet-service/dto"
	"github.com/radieske/bet-settlement-platform/internal/wallet-service/repo"
)

// Repo define a interface de operações de carteira usadas pelo handler HTTP
type Repo interface {
	GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance int64, err error)
	Debit(ctx context.Context, userID string, amount int64, entryType, externalRef string) (entryID string, newBalance int64, err error)
	Credit(ctx context.Context, userID string, amount int64, entryType, externalRef string) (entryID string, newBalance int64, err error)
	AttachBet(ctx context.Context, entryID, betID string) error
	Ledger(ctx context.Context, userID string, limit, offset int) ([]repo.LedgerEntry, error)
	Reconcile(ctx context.Context, userID string) (balance, ledgerSum int64, ok bool, err error)
}

// Server expõe endpoints HTTP para operações de carteira (wallet)
type Server struct {
	log  *zap.Logger
	repo Repo
}

func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

// Router retorna o roteador com as rotas da API de wallet
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/wallet", s.getWallet).Methods(http.MethodGet)
	r.HandleFunc("/wallet/deposit", s.deposit).Methods(http.MethodPost)
	r.HandleFunc("/wallet/withdraw", s.withdraw).Methods(http.MethodPost)
	r.HandleFunc("/wallet/debit", s.debit).Methods(http.MethodPost)
	r.HandleFunc("/wallet/credit", s.credit).Methods(http.MethodPost)
	r.HandleFunc("/wallet/attach-bet", s.attachBet).Methods(http.MethodPost)
	r.HandleFunc("/wallet/ledger", s.ledger).Methods(http.MethodGet)
	r.HandleFunc("/wallet/reconcile", s.reconcile).Methods(http.MethodGet)
	return r
}

// getWallet retorna (ou cria) a carteira e saldo do usuário
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	walletID, bal, err := s.repo.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{UserID: userID, WalletID: walletID, BalanceCents: bal})
}

// deposit adiciona saldo à carteira do usuário
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	entryID, bal, err := s.repo.Credit(r.Context(), req.UserID, req.AmountCents, repo.EntryDeposit, req.ExternalRef)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.MovementResponse{UserID: req.UserID, EntryID: entryID, NewBalanceCents: bal})
}

// withdraw retira saldo; recusa se o valor exceder o saldo
func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	entryID, bal, err := s.repo.Debit(r.Context(), req.UserID, req.AmountCents, repo.EntryWithdrawal, req.ExternalRef)
	if err != nil {
		s.writeMovementErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MovementResponse{UserID: req.UserID, EntryID: entryID, NewBalanceCents: bal})
}

// debit é a operação interna usada pela colocação de apostas
func (s *Server) debit(w http.ResponseWriter, r *http.Request) {
	var req dto.DebitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 || req.EntryType == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	entryID, bal, err := s.repo.Debit(r.Context(), req.UserID, req.AmountCents, req.EntryType, req.ExternalRef)
	if err != nil {
		s.writeMovementErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MovementResponse{UserID: req.UserID, EntryID: entryID, NewBalanceCents: bal})
}

// credit é a operação interna usada por estornos e pagamento de prêmios
func (s *Server) credit(w http.ResponseWriter, r *http.Request) {
	var req dto.CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 || req.EntryType == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	entryID, bal, err := s.repo.Credit(r.Context(), req.UserID, req.AmountCents, req.EntryType, req.ExternalRef)
	if err != nil {
		s.writeMovementErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MovementResponse{UserID: req.UserID, EntryID: entryID, NewBalanceCents: bal})
}

// attachBet vincula o lançamento de débito ao id da aposta criada depois dele
func (s *Server) attachBet(w http.ResponseWriter, r *http.Request) {
	var req dto.AttachBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.EntryID == "" || req.BetID == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.repo.AttachBet(r.Context(), req.EntryID, req.BetID); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			http.Error(w, "entry not found", http.StatusNotFound)
		case errors.Is(err, repo.ErrAlreadyAttached):
			http.Error(w, "entry already linked", http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ATTACHED"}`))
}

// ledger lista os lançamentos do usuário
func (s *Server) ledger(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	entries, err := s.repo.Ledger(r.Context(), userID, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.LedgerResponse{UserID: userID, Entries: entries})
}

// reconcile confere saldo vs soma do ledger (check de auditoria)
func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	bal, sum, ok, err := s.repo.Reconcile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "wallet not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		s.log.Error("wallet reconciliation mismatch",
			zap.String("userId", userID), zap.Int64("balance", bal), zap.Int64("ledger_sum", sum))
	}
	writeJSON(w, http.StatusOK, dto.ReconcileResponse{UserID: userID, BalanceCents: bal, LedgerSumCents: sum, Consistent: ok})
}

func (s *Server) writeMovementErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrInsufficientFunds):
		http.Error(w, "insufficient funds", http.StatusConflict)
	case errors.Is(err, repo.ErrInvalidEntryType):
		http.Error(w, "invalid entry type", http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
