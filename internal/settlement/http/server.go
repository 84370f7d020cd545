package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/settlement/engine"
)

// Server expõe o trigger administrativo de liquidação. Idempotente:
// repetir a chamada pra mesma partida responde "already settled".
type Server struct {
	log *zap.Logger
	eng *engine.Engine
}

func NewServer(log *zap.Logger, eng *engine.Engine) *Server { return &Server{log: log, eng: eng} }

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/settle/{fixtureId}", s.settleFixture).Methods(http.MethodPost)
	return r
}

func (s *Server) settleFixture(w http.ResponseWriter, r *http.Request) {
	fixtureID := mux.Vars(r)["fixtureId"]

	res, err := s.eng.SettleFixtureByID(r.Context(), fixtureID)
	if err != nil {
		if errors.Is(err, engine.ErrFixtureNotFinished) {
			http.Error(w, "fixture not finished", http.StatusBadRequest)
			return
		}
		s.log.Error("manual settlement failed", zap.String("fixtureId", fixtureID), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}
