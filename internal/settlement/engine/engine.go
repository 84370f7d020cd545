package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/fixtures"
	"github.com/radieske/bet-settlement-platform/internal/settlement/outcome"
	"github.com/radieske/bet-settlement-platform/internal/settlement/repo"
	"github.com/radieske/bet-settlement-platform/pkg/contracts/events"
)

// Timeout por chamada de rede dentro do ciclo: um downstream pendurado não
// pode travar a liquidação das outras partidas.
const callTimeout = 5 * time.Second

var ErrFixtureNotFinished = errors.New("fixture not finished")

type Repo interface {
	ClaimFixture(ctx context.Context, fixtureID string, lease time.Duration) (repo.ClaimState, error)
	ReleaseClaim(ctx context.Context, fixtureID string) error
	Finalize(ctx context.Context, fixtureID, fixtureStatus string, homeGoals, awayGoals int, s repo.Summary) error
	ListActiveBets(ctx context.Context, fixtureID string) ([]repo.ActiveBet, error)
	ListSettledBets(ctx context.Context, fixtureID string) ([]repo.SettledBet, error)
	SettleBet(ctx context.Context, betID, toStatus string, at time.Time) (bool, error)
}

type WalletClient interface {
	Credit(ctx context.Context, userID string, cents int64, entryType, externalRef string) (entryID string, newBalance int64, err error)
}

type FixtureSource interface {
	GetFixture(ctx context.Context, fixtureID string) (*fixtures.Fixture, error)
	ListFinishedSince(ctx context.Context, window time.Duration) ([]fixtures.Fixture, error)
}

type Publisher interface {
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
	PublishCreditFailed(ctx context.Context, e events.CreditFailed) error
}

// Result relata o que uma tentativa de liquidação fez com a partida.
type Result struct {
	FixtureID      string       `json:"fixtureId"`
	AlreadySettled bool         `json:"already_settled"`
	InProgress     bool         `json:"in_progress"`
	Summary        repo.Summary `json:"summary"`
	Message        string       `json:"message,omitempty"`
}

// Engine liquida partidas encerradas. O timer periódico e o trigger
// administrativo chamam exatamente o mesmo caminho; o claim do registro de
// idempotência decide quem executa.
type Engine struct {
	Log      *zap.Logger
	Repo     Repo
	Wallet   WalletClient
	Fixtures FixtureSource
	Publ     Publisher
	Lease    time.Duration
	Lookback time.Duration
	Now      func() time.Time

	// Callbacks de métricas, ligados no main
	OnFixtureSettled func()
	OnBetSettled     func(outcome string)
	OnCreditFailed   func()
}

// RunCycle é uma passada do timer: busca encerradas na janela e liquida uma
// a uma. Falha numa partida não derruba o ciclo — fica pro próximo tick.
func (e *Engine) RunCycle(ctx context.Context) error {
	lctx, cancel := context.WithTimeout(ctx, callTimeout)
	finished, err := e.Fixtures.ListFinishedSince(lctx, e.Lookback)
	cancel()
	if err != nil {
		return fmt.Errorf("list finished fixtures: %w", err)
	}

	for i := range finished {
		fx := finished[i]
		res, err := e.SettleFixture(ctx, &fx)
		if err != nil {
			e.Log.Warn("fixture settlement failed, will retry next cycle",
				zap.String("fixtureId", fx.ID), zap.Error(err))
			continue
		}
		if !res.AlreadySettled && !res.InProgress {
			e.Log.Info("fixture settled",
				zap.String("fixtureId", fx.ID),
				zap.Int("bets", res.Summary.BetsSettled),
				zap.Int("winners", res.Summary.Winners),
				zap.Int("refunds", res.Summary.Refunds),
				zap.Int64("total_paid_cents", res.Summary.TotalPaidCents),
				zap.Int("failed_credits", res.Summary.FailedCredits),
			)
		}
	}
	return nil
}

// SettleFixtureByID é o caminho do trigger administrativo
func (e *Engine) SettleFixtureByID(ctx context.Context, fixtureID string) (*Result, error) {
	fctx, cancel := context.WithTimeout(ctx, callTimeout)
	fx, err := e.Fixtures.GetFixture(fctx, fixtureID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("get fixture: %w", err)
	}
	if !fx.Finished() {
		return nil, ErrFixtureNotFinished
	}
	return e.SettleFixture(ctx, fx)
}

// SettleFixture liquida todas as apostas ativas de uma partida exatamente
// uma vez. Ordem por aposta: transição terminal primeiro, crédito depois —
// um crash no meio retoma pelo estado da aposta sem pagar duas vezes.
func (e *Engine) SettleFixture(ctx context.Context, fx *fixtures.Fixture) (*Result, error) {
	res := &Result{FixtureID: fx.ID}

	claim, err := e.Repo.ClaimFixture(ctx, fx.ID, e.Lease)
	if err != nil {
		return nil, fmt.Errorf("claim fixture: %w", err)
	}
	switch claim {
	case repo.ClaimAlreadySettled:
		res.AlreadySettled = true
		res.Message = "already settled"
		return res, nil
	case repo.ClaimInProgress:
		res.InProgress = true
		res.Message = "settlement in progress"
		return res, nil
	}

	// Retomada: apostas já terminais vieram de uma execução anterior que
	// morreu antes de finalizar. O crédito pode não ter sido aplicado —
	// reemite com o mesmo external_ref (idempotente na carteira) e conta no
	// registro, que deve cobrir a partida inteira. Vazio no caminho normal.
	settled, err := e.Repo.ListSettledBets(ctx, fx.ID)
	if err != nil {
		e.releaseClaim(ctx, fx.ID)
		return nil, fmt.Errorf("list settled bets: %w", err)
	}
	for i := range settled {
		e.resumeOne(ctx, fx, &settled[i], &res.Summary)
	}

	bets, err := e.Repo.ListActiveBets(ctx, fx.ID)
	if err != nil {
		// Falha no nível da partida antes de tocar em qualquer aposta:
		// solta o claim pra não bloquear o retry do próximo ciclo.
		e.releaseClaim(ctx, fx.ID)
		return nil, fmt.Errorf("list active bets: %w", err)
	}

	var failedTransitions int
	for i := range bets {
		if err := e.settleOne(ctx, fx, &bets[i], &res.Summary); err != nil {
			failedTransitions++
		}
	}
	if failedTransitions > 0 {
		// Aposta sem transição continua 'active'. Finalizar aqui a deixaria
		// órfã pra sempre; solta o claim e o próximo ciclo tenta de novo —
		// o predicado status='active' torna o retry seguro.
		e.releaseClaim(ctx, fx.ID)
		return nil, fmt.Errorf("%d bet transitions failed, settlement will retry", failedTransitions)
	}

	if len(bets) == 0 && len(settled) == 0 {
		res.Message = "no active bets"
	}

	if err := e.Repo.Finalize(ctx, fx.ID, fx.Status, fx.HomeGoals, fx.AwayGoals, res.Summary); err != nil {
		return nil, fmt.Errorf("finalize settlement record: %w", err)
	}
	if e.OnFixtureSettled != nil {
		e.OnFixtureSettled()
	}
	return res, nil
}

// settleOne avalia e paga uma aposta. Falha de crédito é isolada (conta,
// manda pra DLQ e segue); falha da transição terminal volta como erro — a
// aposta continua ativa e a partida não pode ser finalizada.
func (e *Engine) settleOne(ctx context.Context, fx *fixtures.Fixture, bet *repo.ActiveBet, sum *repo.Summary) error {
	out, eerr := outcome.Evaluate(bet.BetType, bet.Selection, *fx)
	if eerr != nil {
		e.Log.Warn("bet evaluated by fallback policy",
			zap.String("betId", bet.ID), zap.String("outcome", string(out)), zap.Error(eerr))
	}

	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	transitioned, err := e.Repo.SettleBet(cctx, bet.ID, string(out), e.now())
	if err != nil {
		e.Log.Error("bet transition failed", zap.String("betId", bet.ID), zap.Error(err))
		return fmt.Errorf("settle bet %s: %w", bet.ID, err)
	}
	if !transitioned {
		// Cancelamento concorrente venceu a corrida; o estorno é do caminho
		// de cancelamento.
		return nil
	}

	sum.BetsSettled++
	if e.OnBetSettled != nil {
		e.OnBetSettled(string(out))
	}

	var payout int64
	switch out {
	case outcome.Won:
		payout = bet.PotentialWinningCents
		if e.credit(cctx, fx.ID, bet.ID, bet.UserID, out, payout, "bet_won") {
			sum.Winners++
			sum.TotalPaidCents += payout
		} else {
			sum.FailedCredits++
		}
	case outcome.Void:
		payout = bet.StakeCents
		if e.credit(cctx, fx.ID, bet.ID, bet.UserID, out, payout, "bet_refund") {
			sum.Refunds++
		} else {
			sum.FailedCredits++
		}
	}

	if err := e.Publ.PublishBetSettled(ctx, events.BetSettled{
		BetID:       bet.ID,
		UserID:      bet.UserID,
		FixtureID:   fx.ID,
		Outcome:     string(out),
		PayoutCents: payout,
	}); err != nil {
		e.Log.Warn("publish bet_settled failed", zap.String("betId", bet.ID), zap.Error(err))
	}
	return nil
}

// resumeOne reemite o crédito de uma aposta já terminal e a conta no registro.
// Sem evento bet_settled aqui: a execução que transicionou já publicou.
func (e *Engine) resumeOne(ctx context.Context, fx *fixtures.Fixture, bet *repo.SettledBet, sum *repo.Summary) {
	sum.BetsSettled++

	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	switch bet.Status {
	case string(outcome.Won):
		if e.credit(cctx, fx.ID, bet.ID, bet.UserID, outcome.Won, bet.PotentialWinningCents, "bet_won") {
			sum.Winners++
			sum.TotalPaidCents += bet.PotentialWinningCents
		} else {
			sum.FailedCredits++
		}
	case string(outcome.Void):
		if e.credit(cctx, fx.ID, bet.ID, bet.UserID, outcome.Void, bet.StakeCents, "bet_refund") {
			sum.Refunds++
		} else {
			sum.FailedCredits++
		}
	}
}

func (e *Engine) credit(ctx context.Context, fixtureID, betID, userID string, out outcome.Result, amount int64, entryType string) bool {
	_, _, err := e.Wallet.Credit(ctx, userID, amount, entryType, "settle:"+betID)
	if err == nil {
		return true
	}

	e.Log.Error("settlement credit failed",
		zap.String("betId", betID),
		zap.String("userId", userID),
		zap.Int64("amount_cents", amount),
		zap.Error(err),
	)
	if e.OnCreditFailed != nil {
		e.OnCreditFailed()
	}
	if perr := e.Publ.PublishCreditFailed(ctx, events.CreditFailed{
		BetID:       betID,
		UserID:      userID,
		FixtureID:   fixtureID,
		Outcome:     string(out),
		AmountCents: amount,
		Reason:      err.Error(),
	}); perr != nil {
		e.Log.Error("credit DLQ publish failed", zap.String("betId", betID), zap.Error(perr))
	}
	return false
}

func (e *Engine) releaseClaim(ctx context.Context, fixtureID string) {
	if err := e.Repo.ReleaseClaim(ctx, fixtureID); err != nil {
		e.Log.Error("claim release failed", zap.String("fixtureId", fixtureID), zap.Error(err))
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
