package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/bet-service/auth"
	bhttp "github.com/radieske/bet-settlement-platform/internal/bet-service/http"
	"github.com/radieske/bet-settlement-platform/internal/bet-service/odds"
	kpub "github.com/radieske/bet-settlement-platform/internal/bet-service/producer"
	"github.com/radieske/bet-settlement-platform/internal/bet-service/ratelimit"
	"github.com/radieske/bet-settlement-platform/internal/bet-service/repo"
	"github.com/radieske/bet-settlement-platform/internal/bet-service/saga"
	"github.com/radieske/bet-settlement-platform/internal/bet-service/wallet"
	"github.com/radieske/bet-settlement-platform/internal/fixtures"
	"github.com/radieske/bet-settlement-platform/internal/shared/cache"
	"github.com/radieske/bet-settlement-platform/internal/shared/config"
	"github.com/radieske/bet-settlement-platform/internal/shared/db"
	skafka "github.com/radieske/bet-settlement-platform/internal/shared/kafka"
	"github.com/radieske/bet-settlement-platform/internal/shared/logger"
	"github.com/radieske/bet-settlement-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New("bet-service", cfg.Env)
	defer log.Sync()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis (odds correntes + cache de partidas)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers
	placedWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer placedWriter.Close()
	compWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicCompensationFailed)
	defer compWriter.Close()

	// Métricas de domínio
	placed := prometheus.NewCounter(prometheus.CounterOpts{Name: "bets_placed_total", Help: "apostas criadas"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bets_rejected_total", Help: "apostas rejeitadas por motivo"}, []string{"reason"})
	compensated := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_compensations_total", Help: "estornos automáticos aplicados"})
	compFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_compensation_failures_total", Help: "estornos automáticos que falharam (dinheiro em risco)"})
	prometheus.MustRegister(placed, rejected, compensated, compFailed)

	// deps
	repository := repo.NewPostgres(pg)
	creds := fixtures.NewTokenProvider(cfg.FixtureProviderURL, cfg.FixtureClientID, cfg.FixtureClientSecret)
	fxclient := fixtures.NewClient(cfg.FixtureProviderURL, creds, rdb, log)
	wcli := wallet.New(cfg.WalletURL)
	publ := kpub.NewKafkaPublisher(placedWriter, compWriter)

	coord := &saga.Coordinator{
		Log:      log,
		Repo:     repository,
		Wallet:   wcli,
		Odds:     odds.NewValidator(rdb),
		Fixtures: fxclient,
		Limiter:  ratelimit.New(cfg.BetRateLimit, cfg.BetRateWindow),
		Publ:     publ,

		OnPlaced:             func() { placed.Inc() },
		OnRejected:           func(reason string) { rejected.WithLabelValues(reason).Inc() },
		OnCompensated:        func() { compensated.Inc() },
		OnCompensationFailed: func() { compFailed.Inc() },
	}

	api := bhttp.NewServer(log, coord, repository, auth.NewVerifier(cfg.JWTSecret))

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}
	log.Info("bet-service listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
