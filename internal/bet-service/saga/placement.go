package saga

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/bet-service/odds"
	"github.com/radieske/bet-settlement-platform/internal/bet-service/repo"
	"github.com/radieske/bet-settlement-platform/internal/bet-service/wallet"
	"github.com/radieske/bet-settlement-platform/internal/fixtures"
	"github.com/radieske/bet-settlement-platform/pkg/contracts/events"
)

// Estados da saga de colocação. O débito é a reserva; persistir a aposta
// confirma; falha de persistência dispara o crédito compensatório.
type State string

const (
	StateReserved    State = "reserved"
	StateConfirmed   State = "confirmed"
	StateCompensated State = "compensated"
)

var (
	ErrInsufficientFunds  = wallet.ErrInsufficientFunds
	ErrRateLimited        = errors.New("too many bets, slow down")
	ErrFixtureUnavailable = errors.New("fixture provider unavailable, try again")
	ErrFixtureStarted     = errors.New("fixture already started")
	ErrNotFound           = errors.New("bet not found")

	// ErrCompensationFailed: débito aplicado, aposta não criada, estorno
	// falhou. Dinheiro em risco — o chamador recebe 500 e o evento de alerta
	// já foi publicado.
	ErrCompensationFailed = errors.New("bet not created and refund failed, support notified")
)

// Janela própria do estorno compensatório; ver compensate.
const compensateTimeout = 5 * time.Second

// OddsChangedError reporta a odd corrente junto com a rejeição
type OddsChangedError struct {
	Current float64
}

func (e *OddsChangedError) Error() string {
	return fmt.Sprintf("odds changed, current %.2f", e.Current)
}

type BetRepo interface {
	CreateActive(ctx context.Context, b *repo.Bet) error
	Get(ctx context.Context, betID string) (*repo.Bet, error)
	Transition(ctx context.Context, betID, toStatus string, at time.Time) (bool, error)
}

type WalletClient interface {
	Debit(ctx context.Context, userID string, cents int64, entryType, externalRef string) (entryID string, newBalance int64, err error)
	Credit(ctx context.Context, userID string, cents int64, entryType, externalRef string) (entryID string, newBalance int64, err error)
	AttachBet(ctx context.Context, entryID, betID string) error
}

type FixtureSource interface {
	GetFixture(ctx context.Context, fixtureID string) (*fixtures.Fixture, error)
}

type OddsSource interface {
	CurrentOdds(ctx context.Context, fixtureID, betType, selection string) (float64, error)
}

type Limiter interface {
	Allow(userID string) bool
}

type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
	PublishCompensationFailed(ctx context.Context, e events.CompensationFailed) error
}

// Coordinator executa a saga de colocação e o cancelamento/estorno.
// Garantia central: aposta criada ⟺ débito aplicado — nunca débito sem
// aposta visível pro usuário.
type Coordinator struct {
	Log      *zap.Logger
	Repo     BetRepo
	Wallet   WalletClient
	Odds     OddsSource
	Fixtures FixtureSource
	Limiter  Limiter
	Publ     Publisher
	Now      func() time.Time

	// Callbacks de métricas, ligados no main
	OnPlaced             func()
	OnRejected           func(reason string)
	OnCompensated        func()
	OnCompensationFailed func()
}

type PlaceInput struct {
	UserID     string
	FixtureID  string
	BetType    string
	Selection  string
	StakeCents int64
	Odds       float64
}

type PlaceResult struct {
	Bet             repo.Bet
	NewBalanceCents int64
}

// PotentialWinning calcula o prêmio potencial fixado na criação
func PotentialWinning(stakeCents int64, odd float64) int64 {
	return int64(math.Round(float64(stakeCents) * odd))
}

// PlaceBet valida, reserva o stake, persiste a aposta e vincula o lançamento.
// Falha depois do débito compensa com estorno antes de retornar erro.
func (c *Coordinator) PlaceBet(ctx context.Context, in PlaceInput) (*PlaceResult, error) {
	if !c.Limiter.Allow(in.UserID) {
		c.reject("rate_limited")
		return nil, ErrRateLimited
	}

	// Partida precisa existir e ainda não ter começado. Provedor fora do ar
	// rejeita a colocação (política documentada: nada de fabricar partida
	// nem aceitar odds às cegas).
	fx, err := c.Fixtures.GetFixture(ctx, in.FixtureID)
	if err != nil {
		c.reject("fixture_unavailable")
		return nil, fmt.Errorf("%w: %v", ErrFixtureUnavailable, err)
	}
	if !c.now().Before(fx.KickoffAt) || fx.Status != fixtures.StatusScheduled {
		c.reject("fixture_started")
		return nil, ErrFixtureStarted
	}

	// Checagem opcional de deriva: sem odd corrente no cache, segue com a
	// odd oferecida.
	if cur, oerr := c.Odds.CurrentOdds(ctx, in.FixtureID, in.BetType, in.Selection); oerr == nil {
		if !odds.WithinTolerance(in.Odds, cur) {
			c.reject("odds_changed")
			return nil, &OddsChangedError{Current: cur}
		}
	}

	bet := repo.Bet{
		ID:                    uuid.NewString(),
		UserID:                in.UserID,
		FixtureID:             in.FixtureID,
		BetType:               in.BetType,
		Selection:             in.Selection,
		StakeCents:            in.StakeCents,
		Odds:                  in.Odds,
		PotentialWinningCents: PotentialWinning(in.StakeCents, in.Odds),
		Status:                repo.StatusActive,
	}

	// Reserva: debita o stake com external_ref amarrado ao id da aposta,
	// então retry do débito nunca aplica duas vezes.
	entryID, newBalance, err := c.Wallet.Debit(ctx, in.UserID, in.StakeCents, "bet_placed", "place:"+bet.ID)
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			c.reject("insufficient_funds")
			return nil, ErrInsufficientFunds
		}
		c.reject("wallet_unavailable")
		return nil, fmt.Errorf("wallet debit: %w", err)
	}
	state := StateReserved

	// Confirmação: persiste a aposta ativa
	if err := c.Repo.CreateActive(ctx, &bet); err != nil {
		return nil, c.compensate(ctx, &bet, state, err)
	}
	state = StateConfirmed
	c.Log.Debug("placement saga", zap.String("betId", bet.ID), zap.String("state", string(state)))

	// Vincula o lançamento do débito ao id da aposta. Best effort: a aposta
	// e o débito já estão consistentes; o link é rastreabilidade de ledger.
	if err := c.Wallet.AttachBet(ctx, entryID, bet.ID); err != nil {
		c.Log.Warn("ledger attach failed", zap.String("betId", bet.ID), zap.Error(err))
	}

	if err := c.Publ.PublishBetPlaced(ctx, events.BetPlaced{
		BetID:                 bet.ID,
		UserID:                bet.UserID,
		FixtureID:             bet.FixtureID,
		BetType:               bet.BetType,
		Selection:             bet.Selection,
		StakeCents:            bet.StakeCents,
		Odds:                  bet.Odds,
		PotentialWinningCents: bet.PotentialWinningCents,
	}); err != nil {
		c.Log.Warn("publish bet_placed failed", zap.String("betId", bet.ID), zap.Error(err))
	}

	if c.OnPlaced != nil {
		c.OnPlaced()
	}
	return &PlaceResult{Bet: bet, NewBalanceCents: newBalance}, nil
}

// compensate estorna a reserva quando a confirmação falhou. Se o estorno
// também falhar, escala: log de erro, métrica e evento de alerta.
func (c *Coordinator) compensate(ctx context.Context, bet *repo.Bet, state State, cause error) error {
	if state != StateReserved {
		return cause
	}

	// A persistência pode ter falhado justamente porque o deadline da
	// requisição estourou ou o cliente desconectou. O estorno não herda esse
	// cancelamento: roda em contexto desvinculado com timeout próprio.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()

	_, _, cerr := c.Wallet.Credit(cctx, bet.UserID, bet.StakeCents, "bet_refund", "compensate:"+bet.ID)
	if cerr != nil {
		c.Log.Error("compensating credit failed, money at risk",
			zap.String("betId", bet.ID),
			zap.String("userId", bet.UserID),
			zap.Int64("stake_cents", bet.StakeCents),
			zap.NamedError("cause", cause),
			zap.Error(cerr),
		)
		if c.OnCompensationFailed != nil {
			c.OnCompensationFailed()
		}
		if perr := c.Publ.PublishCompensationFailed(cctx, events.CompensationFailed{
			BetID:      bet.ID,
			UserID:     bet.UserID,
			StakeCents: bet.StakeCents,
			Reason:     cause.Error(),
		}); perr != nil {
			c.Log.Error("compensation alert publish failed", zap.String("betId", bet.ID), zap.Error(perr))
		}
		return ErrCompensationFailed
	}

	c.Log.Warn("bet persist failed, stake refunded",
		zap.String("betId", bet.ID), zap.String("state", string(StateCompensated)), zap.NamedError("cause", cause))
	if c.OnCompensated != nil {
		c.OnCompensated()
	}
	return fmt.Errorf("bet not created, stake refunded: %w", cause)
}

// CancelBet estorna e cancela uma aposta ativa antes do início da partida.
// O crédito usa external_ref fixo por aposta: retry depois de um crédito
// aplicado com transição falhada não credita de novo, só completa a transição.
func (c *Coordinator) CancelBet(ctx context.Context, userID, betID string) (*PlaceResult, error) {
	bet, err := c.Repo.Get(ctx, betID)
	if err != nil || bet.UserID != userID {
		return nil, ErrNotFound
	}
	if bet.Status != repo.StatusActive {
		// Cancelamento repetido é idempotente; qualquer outro terminal é 404
		if bet.Status == repo.StatusCancelled {
			return &PlaceResult{Bet: *bet}, nil
		}
		return nil, ErrNotFound
	}

	fx, err := c.Fixtures.GetFixture(ctx, bet.FixtureID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFixtureUnavailable, err)
	}
	if !c.now().Before(fx.KickoffAt) {
		return nil, ErrFixtureStarted
	}

	_, newBalance, err := c.Wallet.Credit(ctx, userID, bet.StakeCents, "bet_refund", "cancel:"+bet.ID)
	if err != nil {
		return nil, fmt.Errorf("refund credit: %w", err)
	}

	ok, err := c.Repo.Transition(ctx, bet.ID, repo.StatusCancelled, c.now())
	if err != nil {
		return nil, fmt.Errorf("cancel transition: %w", err)
	}
	if !ok {
		// Corrida com liquidação ou retry concorrente; relê o estado final
		cur, gerr := c.Repo.Get(ctx, bet.ID)
		if gerr == nil && cur.Status == repo.StatusCancelled {
			return &PlaceResult{Bet: *cur, NewBalanceCents: newBalance}, nil
		}
		return nil, fmt.Errorf("bet no longer active")
	}

	bet.Status = repo.StatusCancelled
	return &PlaceResult{Bet: *bet, NewBalanceCents: newBalance}, nil
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Coordinator) reject(reason string) {
	if c.OnRejected != nil {
		c.OnRejected(reason)
	}
}
