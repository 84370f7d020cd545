package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/bet-service/auth"
	"github.com/radieske/bet-settlement-platform/internal/bet-service/dto"
	"github.com/radieske/bet-settlement-platform/internal/bet-service/repo"
	"github.com/radieske/bet-settlement-platform/internal/bet-service/saga"
)

// Deadline da colocação ponta a ponta: ou sucesso ou falha definitiva,
// nunca "talvez debitado" visível pro usuário.
const placeDeadline = 10 * time.Second

type BetLister interface {
	ListByUser(ctx context.Context, userID, status, fixtureID string, limit, offset int) ([]repo.Bet, int, error)
	Get(ctx context.Context, betID string) (*repo.Bet, error)
}

type Server struct {
	log    *zap.Logger
	coord  *saga.Coordinator
	lister BetLister
	verif  *auth.Verifier
}

func NewServer(log *zap.Logger, coord *saga.Coordinator, lister BetLister, verif *auth.Verifier) *Server {
	return &Server{log: log, coord: coord, lister: lister, verif: verif}
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.verif.Middleware)
	r.HandleFunc("/bets", s.placeBet).Methods(http.MethodPost)
	r.HandleFunc("/bets/my", s.myBets).Methods(http.MethodGet)
	r.HandleFunc("/bets/{betId}", s.getBet).Methods(http.MethodGet)
	r.HandleFunc("/bets/{betId}", s.cancelBet).Methods(http.MethodDelete)
	return r
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json", 0)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet: "+err.Error(), 0)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), placeDeadline)
	defer cancel()

	res, err := s.coord.PlaceBet(ctx, saga.PlaceInput{
		UserID:     userID,
		FixtureID:  req.FixtureID,
		BetType:    req.BetType,
		Selection:  req.Selection,
		StakeCents: req.StakeCents,
		Odds:       req.Odds,
	})
	if err != nil {
		s.writePlaceErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{Bet: res.Bet, NewBalanceCents: res.NewBalanceCents})
}

func (s *Server) writePlaceErr(w http.ResponseWriter, err error) {
	var oddsErr *saga.OddsChangedError
	switch {
	case errors.As(err, &oddsErr):
		writeError(w, http.StatusBadRequest, err.Error(), oddsErr.Current)
	case errors.Is(err, saga.ErrInsufficientFunds),
		errors.Is(err, saga.ErrFixtureStarted):
		writeError(w, http.StatusBadRequest, err.Error(), 0)
	case errors.Is(err, saga.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error(), 0)
	case errors.Is(err, saga.ErrFixtureUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error(), 0)
	default:
		s.log.Error("place bet saga failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "bet placement failed", 0)
	}
}

func (s *Server) myBets(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	q := r.URL.Query()
	page := queryInt(q.Get("page"), 1)
	pageSize := queryInt(q.Get("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}

	bets, total, err := s.lister.ListByUser(r.Context(), userID, q.Get("status"), q.Get("fixtureId"), pageSize, (page-1)*pageSize)
	if err != nil {
		s.log.Error("list bets", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list failed", 0)
		return
	}
	writeJSON(w, http.StatusOK, dto.BetListResponse{Bets: bets, Total: total, Page: page, PageSize: pageSize})
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	betID := mux.Vars(r)["betId"]

	bet, err := s.lister.Get(r.Context(), betID)
	if err != nil || bet.UserID != userID {
		writeError(w, http.StatusNotFound, "bet not found", 0)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

func (s *Server) cancelBet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	betID := mux.Vars(r)["betId"]

	res, err := s.coord.CancelBet(r.Context(), userID, betID)
	if err != nil {
		switch {
		case errors.Is(err, saga.ErrNotFound):
			writeError(w, http.StatusNotFound, "bet not found or not active", 0)
		case errors.Is(err, saga.ErrFixtureStarted):
			writeError(w, http.StatusBadRequest, "fixture already started", 0)
		case errors.Is(err, saga.ErrFixtureUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error(), 0)
		default:
			s.log.Error("cancel bet", zap.String("betId", betID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "cancel failed", 0)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.CancelBetResponse{
		BetID:           res.Bet.ID,
		Status:          res.Bet.Status,
		RefundCents:     res.Bet.StakeCents,
		NewBalanceCents: res.NewBalanceCents,
	})
}

func queryInt(v string, def int) int {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}

func writeError(w http.ResponseWriter, status int, msg string, currentOdds float64) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg, CurrentOdds: currentOdds})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
