package repo

import "time"

// Estados do ciclo de vida de uma aposta. "active" é o único estado mutável;
// os demais são terminais e a aposta nunca é apagada.
const (
	StatusActive    = "active"
	StatusWon       = "won"
	StatusLost      = "lost"
	StatusVoid      = "void"
	StatusCancelled = "cancelled"
)

// Tipos de aposta suportados.
const (
	TypeMatchWinner    = "match_winner"
	TypeOverUnder      = "over_under"
	TypeBothTeamsScore = "both_teams_score"
)

func Terminal(status string) bool { return status != StatusActive }

// Bet é o modelo persistido no Postgres.
// PotentialWinningCents é fixado na criação (stake × odds arredondado);
// deriva das odds oferecidas no momento da aposta e não acompanha o mercado.
type Bet struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"user_id"`
	FixtureID             string     `json:"fixture_id"`
	BetType               string     `json:"bet_type"`
	Selection             string     `json:"selection"`
	StakeCents            int64      `json:"stake_cents"`
	Odds                  float64    `json:"odds"`
	PotentialWinningCents int64      `json:"potential_winning_cents"`
	Status                string     `json:"status"`
	CreatedAt             time.Time  `json:"created_at"`
	SettledAt             *time.Time `json:"settled_at,omitempty"`
}
