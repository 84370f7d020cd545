package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/bet-service/wallet"
	"github.com/radieske/bet-settlement-platform/internal/fixtures"
	"github.com/radieske/bet-settlement-platform/internal/settlement/engine"
	shttp "github.com/radieske/bet-settlement-platform/internal/settlement/http"
	"github.com/radieske/bet-settlement-platform/internal/settlement/producer"
	"github.com/radieske/bet-settlement-platform/internal/settlement/repo"
	"github.com/radieske/bet-settlement-platform/internal/shared/cache"
	"github.com/radieske/bet-settlement-platform/internal/shared/config"
	"github.com/radieske/bet-settlement-platform/internal/shared/db"
	skafka "github.com/radieske/bet-settlement-platform/internal/shared/kafka"
	"github.com/radieske/bet-settlement-platform/internal/shared/logger"
	"github.com/radieske/bet-settlement-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("settlement-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres: registro de idempotência + transições de apostas
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis só pro cache de partidas do client
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka: eventos bet_settled + DLQ de créditos falhados
	settledWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer settledWriter.Close()
	dlqWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettledDLQ)
	defer dlqWriter.Close()

	// Métricas do ciclo de liquidação
	fixturesSettled := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_fixtures_total", Help: "partidas liquidadas"})
	betsSettled := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_bets_total", Help: "apostas liquidadas por desfecho"}, []string{"outcome"})
	creditsFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_credit_failures_total", Help: "créditos que falharam e foram pra DLQ"})
	prometheus.MustRegister(fixturesSettled, betsSettled, creditsFailed)

	creds := fixtures.NewTokenProvider(cfg.FixtureProviderURL, cfg.FixtureClientID, cfg.FixtureClientSecret)
	fxclient := fixtures.NewClient(cfg.FixtureProviderURL, creds, rdb, log)

	eng := &engine.Engine{
		Log:      log,
		Repo:     repo.NewPostgres(pg),
		Wallet:   wallet.New(cfg.WalletURL),
		Fixtures: fxclient,
		Publ:     producer.NewKafkaPublisher(settledWriter, dlqWriter),
		Lease:    cfg.ClaimLease,
		Lookback: cfg.SettleLookback,

		OnFixtureSettled: func() { fixturesSettled.Inc() },
		OnBetSettled:     func(outcome string) { betsSettled.WithLabelValues(outcome).Inc() },
		OnCreditFailed:   func() { creditsFailed.Inc() },
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, pg.PingContext)

	// Trigger administrativo (mesmo caminho idempotente do timer)
	admin := shttp.NewServer(log, eng)
	adminSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: admin.Router(),
	}
	go func() {
		log.Info("admin trigger listening", zap.String("addr", adminSrv.Addr))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("admin srv", zap.Error(err))
		}
	}()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("settlement-worker started", zap.Duration("interval", cfg.SettleInterval))

	// Loop principal: um ciclo imediato na subida, depois a cada tick
	ticker := time.NewTicker(cfg.SettleInterval)
	defer ticker.Stop()

	if err := eng.RunCycle(ctx); err != nil {
		log.Warn("settlement cycle failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			log.Info("settlement-worker stopped")
			shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			_ = adminSrv.Shutdown(shutdownCtx)
			c()
			return
		case <-ticker.C:
			if err := eng.RunCycle(ctx); err != nil {
				log.Warn("settlement cycle failed", zap.Error(err))
			}
		}
	}
}
