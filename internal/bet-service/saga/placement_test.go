package saga

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/bet-service/repo"
	"github.com/radieske/bet-settlement-platform/internal/bet-service/wallet"
	"github.com/radieske/bet-settlement-platform/internal/fixtures"
	"github.com/radieske/bet-settlement-platform/pkg/contracts/events"
)

// ---- fakes em memória ----

type fakeBetRepo struct {
	bets      map[string]*repo.Bet
	createErr error
	onCreate  func() error // hook pra simular falha no meio da persistência
}

func newFakeBetRepo() *fakeBetRepo {
	return &fakeBetRepo{bets: make(map[string]*repo.Bet)}
}

func (f *fakeBetRepo) CreateActive(_ context.Context, b *repo.Bet) error {
	if f.onCreate != nil {
		if err := f.onCreate(); err != nil {
			return err
		}
	}
	if f.createErr != nil {
		return f.createErr
	}
	cp := *b
	f.bets[b.ID] = &cp
	return nil
}

func (f *fakeBetRepo) Get(_ context.Context, betID string) (*repo.Bet, error) {
	b, ok := f.bets[betID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBetRepo) Transition(_ context.Context, betID, toStatus string, at time.Time) (bool, error) {
	b, ok := f.bets[betID]
	if !ok || b.Status != repo.StatusActive {
		return false, nil
	}
	b.Status = toStatus
	b.SettledAt = &at
	return true, nil
}

// fakeWallet replica a idempotência por external_ref da carteira real:
// mesma referência nunca movimenta duas vezes.
type fakeWallet struct {
	balance   int64
	seenRefs  map[string]string // external_ref -> entryID
	debitErr  error
	creditErr error
	strictCtx bool              // recusa chamadas com contexto já encerrado
	attached  map[string]string // entryID -> betID
}

func newFakeWallet(balance int64) *fakeWallet {
	return &fakeWallet{
		balance:  balance,
		seenRefs: make(map[string]string),
		attached: make(map[string]string),
	}
}

func (f *fakeWallet) Debit(_ context.Context, _ string, cents int64, _, externalRef string) (string, int64, error) {
	if f.debitErr != nil {
		return "", 0, f.debitErr
	}
	if id, ok := f.seenRefs[externalRef]; ok {
		return id, f.balance, nil
	}
	if f.balance < cents {
		return "", 0, wallet.ErrInsufficientFunds
	}
	f.balance -= cents
	id := "entry-" + externalRef
	f.seenRefs[externalRef] = id
	return id, f.balance, nil
}

func (f *fakeWallet) Credit(ctx context.Context, _ string, cents int64, _, externalRef string) (string, int64, error) {
	if f.strictCtx && ctx.Err() != nil {
		return "", 0, ctx.Err()
	}
	if f.creditErr != nil {
		return "", 0, f.creditErr
	}
	if id, ok := f.seenRefs[externalRef]; ok {
		return id, f.balance, nil
	}
	f.balance += cents
	id := "entry-" + externalRef
	f.seenRefs[externalRef] = id
	return id, f.balance, nil
}

func (f *fakeWallet) AttachBet(_ context.Context, entryID, betID string) error {
	f.attached[entryID] = betID
	return nil
}

type fakeFixtureSource struct {
	fx  *fixtures.Fixture
	err error
}

func (f *fakeFixtureSource) GetFixture(_ context.Context, _ string) (*fixtures.Fixture, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.fx, nil
}

type fakeOdds struct {
	current float64
	err     error
}

func (f *fakeOdds) CurrentOdds(_ context.Context, _, _, _ string) (float64, error) {
	return f.current, f.err
}

type allowAll struct{}

func (allowAll) Allow(string) bool { return true }

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

type fakeSagaPublisher struct {
	placed      []events.BetPlaced
	compensated []events.CompensationFailed
}

func (f *fakeSagaPublisher) PublishBetPlaced(_ context.Context, e events.BetPlaced) error {
	f.placed = append(f.placed, e)
	return nil
}

func (f *fakeSagaPublisher) PublishCompensationFailed(_ context.Context, e events.CompensationFailed) error {
	f.compensated = append(f.compensated, e)
	return nil
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func scheduledFixture() *fixtures.Fixture {
	return &fixtures.Fixture{
		ID:        "MATCH_001",
		Status:    fixtures.StatusScheduled,
		KickoffAt: baseTime.Add(time.Hour),
	}
}

func newCoordinator(br *fakeBetRepo, fw *fakeWallet, fs *fakeFixtureSource, od *fakeOdds, p *fakeSagaPublisher) *Coordinator {
	return &Coordinator{
		Log:      zap.NewNop(),
		Repo:     br,
		Wallet:   fw,
		Odds:     od,
		Fixtures: fs,
		Limiter:  allowAll{},
		Publ:     p,
		Now:      func() time.Time { return baseTime },
	}
}

func validInput() PlaceInput {
	return PlaceInput{
		UserID:     "u1",
		FixtureID:  "MATCH_001",
		BetType:    "match_winner",
		Selection:  "home",
		StakeCents: 10_000,
		Odds:       2.5,
	}
}

// ---- testes ----

func TestPlaceBet_Success(t *testing.T) {
	br := newFakeBetRepo()
	fw := newFakeWallet(100_000)
	fp := &fakeSagaPublisher{}
	c := newCoordinator(br, fw, &fakeFixtureSource{fx: scheduledFixture()}, &fakeOdds{current: 2.5}, fp)

	res, err := c.PlaceBet(context.Background(), validInput())
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if res.NewBalanceCents != 90_000 {
		t.Errorf("balance = %d, want 90000", res.NewBalanceCents)
	}
	if res.Bet.PotentialWinningCents != 25_000 {
		t.Errorf("potential winning = %d, want 25000", res.Bet.PotentialWinningCents)
	}
	if res.Bet.Status != repo.StatusActive {
		t.Errorf("status = %q, want active", res.Bet.Status)
	}
	if _, ok := br.bets[res.Bet.ID]; !ok {
		t.Error("bet not persisted")
	}
	entryID := "entry-place:" + res.Bet.ID
	if fw.attached[entryID] != res.Bet.ID {
		t.Errorf("ledger entry not attached to bet, attached = %v", fw.attached)
	}
	if len(fp.placed) != 1 || fp.placed[0].BetID != res.Bet.ID {
		t.Errorf("bet_placed events = %+v", fp.placed)
	}
}

func TestPlaceBet_InsufficientFunds(t *testing.T) {
	br := newFakeBetRepo()
	fw := newFakeWallet(5_000) // stake é 10_000
	c := newCoordinator(br, fw, &fakeFixtureSource{fx: scheduledFixture()}, &fakeOdds{current: 2.5}, &fakeSagaPublisher{})

	_, err := c.PlaceBet(context.Background(), validInput())
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if len(br.bets) != 0 {
		t.Error("no bet may exist when the debit was refused")
	}
	if fw.balance != 5_000 {
		t.Errorf("balance = %d, must be untouched", fw.balance)
	}
}

func TestPlaceBet_PersistFailureRefundsStake(t *testing.T) {
	br := newFakeBetRepo()
	br.createErr = errors.New("db down")
	fw := newFakeWallet(100_000)
	var compensations int
	c := newCoordinator(br, fw, &fakeFixtureSource{fx: scheduledFixture()}, &fakeOdds{current: 2.5}, &fakeSagaPublisher{})
	c.OnCompensated = func() { compensations++ }

	_, err := c.PlaceBet(context.Background(), validInput())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrCompensationFailed) {
		t.Fatalf("refund worked, must not escalate: %v", err)
	}
	if fw.balance != 100_000 {
		t.Errorf("balance = %d, compensating credit must restore it", fw.balance)
	}
	if compensations != 1 {
		t.Errorf("compensations = %d, want 1", compensations)
	}
}

func TestPlaceBet_CompensatesAfterRequestContextDies(t *testing.T) {
	br := newFakeBetRepo()
	fw := newFakeWallet(100_000)
	fw.strictCtx = true
	var compensations int
	c := newCoordinator(br, fw, &fakeFixtureSource{fx: scheduledFixture()}, &fakeOdds{current: 2.5}, &fakeSagaPublisher{})
	c.OnCompensated = func() { compensations++ }

	// O deadline da requisição estoura durante a persistência: o débito já
	// foi aplicado e o contexto do chamador está morto quando o estorno roda.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	br.onCreate = func() error {
		cancel()
		return context.DeadlineExceeded
	}

	_, err := c.PlaceBet(ctx, validInput())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrCompensationFailed) {
		t.Fatalf("refund must not inherit the dead request context: %v", err)
	}
	if fw.balance != 100_000 {
		t.Errorf("balance = %d, stake must be refunded even with the caller gone", fw.balance)
	}
	if len(br.bets) != 0 {
		t.Error("no bet may exist after the failed persist")
	}
	if compensations != 1 {
		t.Errorf("compensations = %d, want 1", compensations)
	}
}

func TestPlaceBet_CompensationFailureEscalates(t *testing.T) {
	br := newFakeBetRepo()
	br.createErr = errors.New("db down")
	fw := newFakeWallet(100_000)
	fp := &fakeSagaPublisher{}
	c := newCoordinator(br, fw, &fakeFixtureSource{fx: scheduledFixture()}, &fakeOdds{current: 2.5}, fp)

	// Crédito de estorno também falha depois do débito aplicado
	fw.creditErr = errors.New("wallet down")

	_, err := c.PlaceBet(context.Background(), validInput())
	if !errors.Is(err, ErrCompensationFailed) {
		t.Fatalf("err = %v, want ErrCompensationFailed", err)
	}
	if len(fp.compensated) != 1 {
		t.Errorf("alert events = %d, want 1", len(fp.compensated))
	}
	if fw.balance != 90_000 {
		t.Errorf("balance = %d, debit stands until support intervenes", fw.balance)
	}
}

func TestPlaceBet_OddsDrift(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		wantErr bool
	}{
		{"dentro da tolerância", 2.45, false},
		{"perto do limite", 2.625, false}, // |2.5-2.625|/2.625 ≈ 4.76%
		{"deriva acima", 2.80, true},
		{"deriva abaixo", 2.30, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCoordinator(newFakeBetRepo(), newFakeWallet(100_000),
				&fakeFixtureSource{fx: scheduledFixture()}, &fakeOdds{current: tt.current}, &fakeSagaPublisher{})

			_, err := c.PlaceBet(context.Background(), validInput())
			var oc *OddsChangedError
			if tt.wantErr {
				if !errors.As(err, &oc) {
					t.Fatalf("err = %v, want OddsChangedError", err)
				}
				if oc.Current != tt.current {
					t.Errorf("reported current = %v, want %v", oc.Current, tt.current)
				}
			} else if err != nil {
				t.Fatalf("place: %v", err)
			}
		})
	}
}

func TestPlaceBet_NoCachedOddsProceeds(t *testing.T) {
	c := newCoordinator(newFakeBetRepo(), newFakeWallet(100_000),
		&fakeFixtureSource{fx: scheduledFixture()}, &fakeOdds{err: errors.New("cache miss")}, &fakeSagaPublisher{})

	if _, err := c.PlaceBet(context.Background(), validInput()); err != nil {
		t.Fatalf("cache miss must not block placement: %v", err)
	}
}

func TestPlaceBet_FixtureRejections(t *testing.T) {
	started := scheduledFixture()
	started.KickoffAt = baseTime.Add(-time.Minute)
	live := scheduledFixture()
	live.Status = fixtures.StatusLive

	tests := []struct {
		name    string
		src     *fakeFixtureSource
		wantErr error
	}{
		{"provedor fora do ar", &fakeFixtureSource{err: errors.New("timeout")}, ErrFixtureUnavailable},
		{"partida já começou", &fakeFixtureSource{fx: started}, ErrFixtureStarted},
		{"partida ao vivo", &fakeFixtureSource{fx: live}, ErrFixtureStarted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw := newFakeWallet(100_000)
			c := newCoordinator(newFakeBetRepo(), fw, tt.src, &fakeOdds{current: 2.5}, &fakeSagaPublisher{})

			_, err := c.PlaceBet(context.Background(), validInput())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if fw.balance != 100_000 {
				t.Errorf("balance touched on rejection before debit: %d", fw.balance)
			}
		})
	}
}

func TestPlaceBet_RateLimited(t *testing.T) {
	var reason string
	c := newCoordinator(newFakeBetRepo(), newFakeWallet(100_000),
		&fakeFixtureSource{fx: scheduledFixture()}, &fakeOdds{current: 2.5}, &fakeSagaPublisher{})
	c.Limiter = denyAll{}
	c.OnRejected = func(r string) { reason = r }

	if _, err := c.PlaceBet(context.Background(), validInput()); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if reason != "rate_limited" {
		t.Errorf("rejection reason = %q", reason)
	}
}

func TestCancelBet(t *testing.T) {
	place := func(t *testing.T) (*Coordinator, *fakeBetRepo, *fakeWallet, string) {
		t.Helper()
		br := newFakeBetRepo()
		fw := newFakeWallet(100_000)
		c := newCoordinator(br, fw, &fakeFixtureSource{fx: scheduledFixture()}, &fakeOdds{current: 2.5}, &fakeSagaPublisher{})
		res, err := c.PlaceBet(context.Background(), validInput())
		if err != nil {
			t.Fatalf("place: %v", err)
		}
		return c, br, fw, res.Bet.ID
	}

	t.Run("estorna e cancela antes do início", func(t *testing.T) {
		c, br, fw, betID := place(t)

		res, err := c.CancelBet(context.Background(), "u1", betID)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if res.Bet.Status != repo.StatusCancelled {
			t.Errorf("status = %q, want cancelled", res.Bet.Status)
		}
		if fw.balance != 100_000 {
			t.Errorf("balance = %d, stake must be back", fw.balance)
		}
		if br.bets[betID].Status != repo.StatusCancelled {
			t.Errorf("persisted status = %q", br.bets[betID].Status)
		}
	})

	t.Run("cancelamento repetido é idempotente", func(t *testing.T) {
		c, _, fw, betID := place(t)

		if _, err := c.CancelBet(context.Background(), "u1", betID); err != nil {
			t.Fatalf("first cancel: %v", err)
		}
		if _, err := c.CancelBet(context.Background(), "u1", betID); err != nil {
			t.Fatalf("second cancel: %v", err)
		}
		if fw.balance != 100_000 {
			t.Errorf("balance = %d, retry must not credit twice", fw.balance)
		}
	})

	t.Run("aposta de outro usuário é 404", func(t *testing.T) {
		c, _, _, betID := place(t)

		if _, err := c.CancelBet(context.Background(), "u2", betID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("aposta liquidada não cancela", func(t *testing.T) {
		c, br, fw, betID := place(t)
		br.bets[betID].Status = repo.StatusWon

		if _, err := c.CancelBet(context.Background(), "u1", betID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		if fw.balance != 90_000 {
			t.Errorf("balance = %d, no refund for a settled bet", fw.balance)
		}
	})

	t.Run("depois do kickoff rejeita", func(t *testing.T) {
		c, _, _, betID := place(t)
		c.Now = func() time.Time { return baseTime.Add(2 * time.Hour) }

		if _, err := c.CancelBet(context.Background(), "u1", betID); !errors.Is(err, ErrFixtureStarted) {
			t.Fatalf("err = %v, want ErrFixtureStarted", err)
		}
	})
}

func TestPotentialWinning(t *testing.T) {
	tests := []struct {
		stake int64
		odds  float64
		want  int64
	}{
		{10_000, 2.5, 25_000},
		{100, 1.01, 101},
		{333, 1.5, 500}, // arredonda meio pra cima
		{1_000_000, 10.0, 10_000_000},
	}
	for _, tt := range tests {
		if got := PotentialWinning(tt.stake, tt.odds); got != tt.want {
			t.Errorf("PotentialWinning(%d, %v) = %d, want %d", tt.stake, tt.odds, got, tt.want)
		}
	}
}

func TestPlaceBet_DebitRefIsBoundToBetID(t *testing.T) {
	br := newFakeBetRepo()
	fw := newFakeWallet(100_000)
	c := newCoordinator(br, fw, &fakeFixtureSource{fx: scheduledFixture()}, &fakeOdds{current: 2.5}, &fakeSagaPublisher{})

	res, err := c.PlaceBet(context.Background(), validInput())
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	found := false
	for ref := range fw.seenRefs {
		if strings.HasPrefix(ref, "place:") && strings.HasSuffix(ref, res.Bet.ID) {
			found = true
		}
	}
	if !found {
		t.Errorf("debit ref not bound to bet id, refs = %v", fw.seenRefs)
	}
}
