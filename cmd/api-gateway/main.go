package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/shared/config"
	"github.com/radieske/bet-settlement-platform/internal/shared/logger"
)

func rp(to string) *httputil.ReverseProxy {
	u, _ := url.Parse(to)
	return httputil.NewSingleHostReverseProxy(u)
}

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// targets
	betURL := os.Getenv("BET_URL")
	if betURL == "" {
		betURL = "http://localhost:8083"
	}
	walletURL := os.Getenv("WALLET_URL")
	if walletURL == "" {
		walletURL = "http://localhost:8082"
	}
	settlementURL := os.Getenv("SETTLEMENT_URL")
	if settlementURL == "" {
		settlementURL = "http://localhost:8084"
	}
	bet := rp(betURL)
	wallet := rp(walletURL)
	settlement := rp(settlementURL)

	mux := http.NewServeMux()

	// bets (ex.: /api/bets/* -> bet-service)
	mux.Handle("/api/bets/", http.StripPrefix("/api", bet))
	mux.Handle("/api/bets", http.StripPrefix("/api", bet))

	// wallet (ex.: /api/wallet/* -> wallet-service)
	mux.Handle("/api/wallet/", http.StripPrefix("/api", wallet))
	mux.Handle("/api/wallet", http.StripPrefix("/api", wallet))

	// liquidação administrativa (ex.: /api/settle/{fixtureId} -> settlement-worker)
	mux.Handle("/api/settle/", http.StripPrefix("/api", settlement))

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, c.Handler(mux)); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
