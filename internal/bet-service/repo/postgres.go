package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Postgres implementa operações de persistência de apostas
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var ErrNotFound = errors.New("bet not found")

// CreateActive insere uma nova aposta em estado ativo. O id vem pronto do
// coordenador de colocação: ele é gerado antes do débito pra servir de
// external_ref no wallet.
func (p *Postgres) CreateActive(ctx context.Context, b *Bet) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bets (id, user_id, fixture_id, bet_type, selection, stake_cents, odds, potential_winning_cents, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())`,
		b.ID, b.UserID, b.FixtureID, b.BetType, b.Selection,
		b.StakeCents, b.Odds, b.PotentialWinningCents, StatusActive,
	)
	if err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}
	return nil
}

// Get retorna uma aposta pelo id
func (p *Postgres) Get(ctx context.Context, betID string) (*Bet, error) {
	var b Bet
	var settledAt sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, fixture_id, bet_type, selection, stake_cents, odds,
		       potential_winning_cents, status, created_at, settled_at
		FROM bets WHERE id=$1`, betID).
		Scan(&b.ID, &b.UserID, &b.FixtureID, &b.BetType, &b.Selection,
			&b.StakeCents, &b.Odds, &b.PotentialWinningCents, &b.Status, &b.CreatedAt, &settledAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if settledAt.Valid {
		b.SettledAt = &settledAt.Time
	}
	return &b, nil
}

// ListByUser retorna as apostas do usuário, paginadas e filtráveis por
// status e partida, mais recentes primeiro.
func (p *Postgres) ListByUser(ctx context.Context, userID, status, fixtureID string, limit, offset int) ([]Bet, int, error) {
	where := `WHERE user_id=$1 AND ($2='' OR status=$2) AND ($3='' OR fixture_id=$3)`

	var total int
	if err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bets `+where, userID, status, fixtureID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, fixture_id, bet_type, selection, stake_cents, odds,
		       potential_winning_cents, status, created_at, settled_at
		FROM bets `+where+`
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`, userID, status, fixtureID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		var b Bet
		var settledAt sql.NullTime
		if err := rows.Scan(&b.ID, &b.UserID, &b.FixtureID, &b.BetType, &b.Selection,
			&b.StakeCents, &b.Odds, &b.PotentialWinningCents, &b.Status, &b.CreatedAt, &settledAt); err != nil {
			return nil, 0, err
		}
		if settledAt.Valid {
			b.SettledAt = &settledAt.Time
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// Transition muda uma aposta ativa para um estado terminal. O predicado
// status='active' é a trava: uma aposta já liquidada/cancelada nunca é
// transicionada de novo, e o retorno false sinaliza isso ao chamador.
func (p *Postgres) Transition(ctx context.Context, betID, toStatus string, at time.Time) (bool, error) {
	if !Terminal(toStatus) {
		return false, fmt.Errorf("transition target must be terminal, got %q", toStatus)
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE bets SET status=$1, settled_at=$2 WHERE id=$3 AND status=$4`,
		toStatus, at, betID, StatusActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
