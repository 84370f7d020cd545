package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/shared/config"
	"github.com/radieske/bet-settlement-platform/internal/shared/db"
	"github.com/radieske/bet-settlement-platform/internal/shared/logger"
	"github.com/radieske/bet-settlement-platform/internal/shared/metrics"
	whttp "github.com/radieske/bet-settlement-platform/internal/wallet-service/http"
	wrepo "github.com/radieske/bet-settlement-platform/internal/wallet-service/repo"
)

func main() {
	cfg := config.Load()

	log, err := logger.New("wallet-service", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("env", cfg.Env))

	// Conexão com Postgres para a autoridade de saldo + ledger
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	repo := wrepo.NewPostgres(pg)
	api := whttp.NewServer(log, repo)

	// Servidor de métricas e health check
	metrics.StartMetricsServer(cfg.MetricsPort, pg.PingContext)
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	// Servidor HTTP público (API de wallet)
	apiSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort, // ex: 8082
		Handler: api.Router(),
	}
	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}
