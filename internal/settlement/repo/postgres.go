package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClaimState é o resultado da tentativa de reivindicar uma partida.
type ClaimState int

const (
	// ClaimAcquired: esta execução é dona da liquidação da partida.
	ClaimAcquired ClaimState = iota
	// ClaimAlreadySettled: registro de idempotência completo já existe.
	ClaimAlreadySettled
	// ClaimInProgress: outra execução está liquidando dentro do lease.
	ClaimInProgress
)

var ErrNotClaimed = errors.New("fixture not claimed by this run")

// ActiveBet é a projeção de aposta que a liquidação precisa.
type ActiveBet struct {
	ID                    string
	UserID                string
	FixtureID             string
	BetType               string
	Selection             string
	StakeCents            int64
	PotentialWinningCents int64
}

// SettledBet é a projeção usada na retomada: apostas já em estado terminal
// de uma execução anterior que morreu antes de finalizar a partida. O crédito
// delas pode ou não ter sido aplicado; reemitir com o mesmo external_ref é
// seguro.
type SettledBet struct {
	ID                    string
	UserID                string
	Status                string
	StakeCents            int64
	PotentialWinningCents int64
}

// Summary agrega o que de fato aconteceu na liquidação de uma partida —
// não o que foi tentado.
type Summary struct {
	BetsSettled    int
	Winners        int
	Refunds        int
	TotalPaidCents int64
	FailedCredits  int
}

// Postgres implementa o registro de idempotência (processed_results) e o
// acesso às apostas durante a liquidação. O worker atualiza a tabela bets
// direto, no mesmo banco do bet-service.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// ClaimFixture é o portão de deduplicação: um insert-se-ausente único, cuja
// constraint de chave primária faz o papel de mutex distribuído por partida.
// O timer e o trigger administrativo convergem aqui; quem não inserir a
// linha não liquida.
//
// Linha "settling" além do lease é retomável: a execução anterior morreu no
// meio, e o estado terminal de cada aposta é o checkpoint de retomada.
func (p *Postgres) ClaimFixture(ctx context.Context, fixtureID string, lease time.Duration) (ClaimState, error) {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO processed_results (fixture_id, status, claimed_at)
		VALUES ($1, 'settling', NOW())
		ON CONFLICT (fixture_id) DO NOTHING`, fixtureID)
	if err != nil {
		return ClaimInProgress, fmt.Errorf("claim insert: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return ClaimAcquired, nil
	}

	var status string
	if err := p.db.QueryRowContext(ctx,
		`SELECT status FROM processed_results WHERE fixture_id=$1`, fixtureID).Scan(&status); err != nil {
		return ClaimInProgress, err
	}
	if status == "settled" {
		return ClaimAlreadySettled, nil
	}

	// Tentativa de retomada de claim vencido
	res, err = p.db.ExecContext(ctx, `
		UPDATE processed_results SET claimed_at=NOW()
		WHERE fixture_id=$1 AND status='settling' AND claimed_at < NOW() - ($2 * interval '1 second')`,
		fixtureID, int64(lease.Seconds()))
	if err != nil {
		return ClaimInProgress, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return ClaimAcquired, nil
	}
	return ClaimInProgress, nil
}

// ReleaseClaim desfaz um claim que não chegou a liquidar nada (falha no
// nível da partida). Nunca toca em linha já settled.
func (p *Postgres) ReleaseClaim(ctx context.Context, fixtureID string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM processed_results WHERE fixture_id=$1 AND status='settling'`, fixtureID)
	return err
}

// Finalize promove o claim a registro definitivo com os agregados reais.
// Criado uma vez, nunca mais atualizado nem apagado.
func (p *Postgres) Finalize(ctx context.Context, fixtureID, fixtureStatus string, homeGoals, awayGoals int, s Summary) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE processed_results
		SET status='settled', fixture_status=$2, home_goals=$3, away_goals=$4,
		    bets_settled=$5, winners=$6, refunds=$7, total_paid_cents=$8, failed_credits=$9,
		    settled_at=NOW()
		WHERE fixture_id=$1 AND status='settling'`,
		fixtureID, fixtureStatus, homeGoals, awayGoals,
		s.BetsSettled, s.Winners, s.Refunds, s.TotalPaidCents, s.FailedCredits)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotClaimed
	}
	return nil
}

// ListActiveBets carrega as apostas ainda ativas da partida
func (p *Postgres) ListActiveBets(ctx context.Context, fixtureID string) ([]ActiveBet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, fixture_id, bet_type, selection, stake_cents, potential_winning_cents
		FROM bets WHERE fixture_id=$1 AND status='active'
		ORDER BY created_at`, fixtureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActiveBet
	for rows.Next() {
		var b ActiveBet
		if err := rows.Scan(&b.ID, &b.UserID, &b.FixtureID, &b.BetType, &b.Selection,
			&b.StakeCents, &b.PotentialWinningCents); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListSettledBets carrega apostas da partida já liquidadas (won/lost/void).
// Vazio no caminho normal; só retorna linhas quando uma execução anterior
// transicionou apostas e morreu antes de finalizar a partida.
func (p *Postgres) ListSettledBets(ctx context.Context, fixtureID string) ([]SettledBet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, status, stake_cents, potential_winning_cents
		FROM bets WHERE fixture_id=$1 AND status IN ('won', 'lost', 'void')
		ORDER BY created_at`, fixtureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SettledBet
	for rows.Next() {
		var b SettledBet
		if err := rows.Scan(&b.ID, &b.UserID, &b.Status, &b.StakeCents, &b.PotentialWinningCents); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SettleBet grava o estado terminal da aposta. O predicado status='active'
// garante que retomada de liquidação nunca transiciona duas vezes — e crédito
// só é emitido por quem viu a transição acontecer.
func (p *Postgres) SettleBet(ctx context.Context, betID, toStatus string, at time.Time) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE bets SET status=$1, settled_at=$2 WHERE id=$3 AND status='active'`,
		toStatus, at, betID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
