package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	mrand "math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/fixtures"
	"github.com/radieske/bet-settlement-platform/internal/shared/config"
	"github.com/radieske/bet-settlement-platform/internal/shared/logger"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Métricas Prometheus para monitoramento de conexões e transições
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fixture_sim_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	statusTransitions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fixture_sim_status_transitions_total",
		Help: "Transições de status de partidas simuladas",
	})
	tokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fixture_sim_tokens_issued_total",
		Help: "Tokens de serviço emitidos",
	})
)

// catalog mantém as partidas simuladas e avança o ciclo de vida delas:
// agendada → ao vivo → encerrada, com placar aleatório. Uma fração pequena
// é cancelada pra exercitar o caminho de anulação.
type catalog struct {
	mu       sync.RWMutex
	fixtures map[string]*fixtures.Fixture
	finished map[string]time.Time // fixtureID -> quando encerrou
	log      *zap.Logger
	onChange func(fixtures.Fixture)
}

func newCatalog(log *zap.Logger, onChange func(fixtures.Fixture)) *catalog {
	now := time.Now().UTC()
	seed := []fixtures.Fixture{
		{ID: "MATCH_001", League: "Brasileirão", HomeTeam: "Flamengo", AwayTeam: "Palmeiras"},
		{ID: "MATCH_002", League: "Brasileirão", HomeTeam: "Grêmio", AwayTeam: "Internacional"},
		{ID: "MATCH_003", League: "Brasileirão", HomeTeam: "Corinthians", AwayTeam: "Santos"},
		{ID: "MATCH_004", League: "Brasileirão", HomeTeam: "São Paulo", AwayTeam: "Vasco"},
	}

	c := &catalog{
		fixtures: make(map[string]*fixtures.Fixture),
		finished: make(map[string]time.Time),
		log:      log,
		onChange: onChange,
	}
	for i := range seed {
		f := seed[i]
		f.Status = fixtures.StatusScheduled
		// Kickoffs escalonados pra sempre ter partida em cada fase
		f.KickoffAt = now.Add(time.Duration(2+3*i) * time.Minute)
		c.fixtures[f.ID] = &f
	}
	return c
}

// tick avança o estado das partidas conforme o relógio
func (c *catalog) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	for _, f := range c.fixtures {
		switch f.Status {
		case fixtures.StatusScheduled:
			if now.After(f.KickoffAt) {
				if mrand.Intn(100) < 10 {
					f.Status = fixtures.StatusCancelled
					c.finished[f.ID] = now
				} else {
					f.Status = fixtures.StatusLive
				}
				c.changed(f)
			}
		case fixtures.StatusLive:
			// Partida simulada dura ~2 minutos
			if now.After(f.KickoffAt.Add(2 * time.Minute)) {
				f.Status = fixtures.StatusFullTime
				f.HomeGoals = mrand.Intn(5)
				f.AwayGoals = mrand.Intn(4)
				c.finished[f.ID] = now
				c.changed(f)
			}
		}
	}
}

func (c *catalog) changed(f *fixtures.Fixture) {
	statusTransitions.Inc()
	c.log.Info("fixture status change",
		zap.String("fixtureId", f.ID), zap.String("status", f.Status),
		zap.Int("home", f.HomeGoals), zap.Int("away", f.AwayGoals))
	if c.onChange != nil {
		c.onChange(*f)
	}
}

func (c *catalog) get(id string) (fixtures.Fixture, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.fixtures[id]
	if !ok {
		return fixtures.Fixture{}, false
	}
	return *f, true
}

func (c *catalog) finishedSince(window time.Duration) []fixtures.Fixture {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cutoff := time.Now().UTC().Add(-window)
	var out []fixtures.Fixture
	for id, at := range c.finished {
		if at.After(cutoff) {
			out = append(out, *c.fixtures[id])
		}
	}
	return out
}

// tokenStore emite e valida tokens de serviço de vida curta
type tokenStore struct {
	mu       sync.Mutex
	tokens   map[string]time.Time
	clientID string
	secret   string
}

func (t *tokenStore) issue() (string, int64) {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	tok := hex.EncodeToString(b)

	t.mu.Lock()
	t.tokens[tok] = time.Now().Add(5 * time.Minute)
	t.mu.Unlock()

	tokensIssued.Inc()
	return tok, int64((5 * time.Minute).Seconds())
}

func (t *tokenStore) valid(tok string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	exp, ok := t.tokens[tok]
	if !ok || time.Now().After(exp) {
		delete(t.tokens, tok)
		return false
	}
	return true
}

func (t *tokenStore) require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") || !t.valid(strings.TrimPrefix(h, "Bearer ")) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// hub gerencia clientes WebSocket e faz broadcast das mudanças de status
type hub struct {
	mu      sync.RWMutex
	clients map[string]*websocket.Conn
	log     *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{clients: make(map[string]*websocket.Conn), log: log}
}

func (h *hub) add(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[id] = conn
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", id))
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = conn.Close()
		}
	}
}

func main() {
	cfg := config.Load()
	log, err := logger.New("fixture-provider-simulator", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, statusTransitions, tokensIssued)

	h := newHub(log)
	cat := newCatalog(log, func(f fixtures.Fixture) { h.broadcast(f) })
	tokens := &tokenStore{
		tokens:   make(map[string]time.Time),
		clientID: cfg.FixtureClientID,
		secret:   cfg.FixtureClientSecret,
	}

	// Avança o ciclo de vida das partidas a cada 5 segundos
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			cat.tick()
		}
	}()

	r := mux.NewRouter()

	r.HandleFunc("/auth/token", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			ClientID     string `json:"client_id"`
			ClientSecret string `json:"client_secret"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil ||
			body.ClientID != tokens.clientID || body.ClientSecret != tokens.secret {
			http.Error(w, "invalid client credentials", http.StatusUnauthorized)
			return
		}
		tok, expiresIn := tokens.issue()
		writeJSON(w, map[string]any{"access_token": tok, "expires_in": expiresIn})
	}).Methods(http.MethodPost)

	r.HandleFunc("/fixtures/finished", tokens.require(func(w http.ResponseWriter, req *http.Request) {
		minutes, _ := strconv.Atoi(req.URL.Query().Get("since_minutes"))
		if minutes <= 0 {
			minutes = 60
		}
		out := cat.finishedSince(time.Duration(minutes) * time.Minute)
		if out == nil {
			out = []fixtures.Fixture{}
		}
		writeJSON(w, out)
	})).Methods(http.MethodGet)

	r.HandleFunc("/fixtures/{id}", tokens.require(func(w http.ResponseWriter, req *http.Request) {
		f, ok := cat.get(mux.Vars(req)["id"])
		if !ok {
			http.Error(w, "fixture not found", http.StatusNotFound)
			return
		}
		writeJSON(w, f)
	})).Methods(http.MethodGet)

	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		h.add(id, conn)

		go func() {
			defer func() {
				h.remove(id)
				_ = conn.Close()
			}()
			for {
				// Lê e descarta mensagens do cliente para manter o socket limpo
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// ==== MUX DE MÉTRICAS (/healthz, /metrics)
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", promhttp.Handler())

	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("fixture simulator (metrics) running", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("fixture simulator (public) running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/auth/token,/fixtures,/ws"),
	)
	if err := http.ListenAndServe(publicAddr, r); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
