package dto

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// Limites de aposta. Stake em centavos: 1 a 10.000 unidades de moeda.
const (
	MinStakeCents = 100
	MaxStakeCents = 1_000_000
	MinOdds       = 1.01
)

type PlaceBetRequest struct {
	FixtureID  string  `json:"fixtureId" validate:"required"`
	BetType    string  `json:"betType" validate:"required,oneof=match_winner over_under both_teams_score"`
	Selection  string  `json:"selection" validate:"required"`
	StakeCents int64   `json:"stake_cents" validate:"required,gte=100,lte=1000000"`
	Odds       float64 `json:"odds" validate:"required,gte=1.01"` // odd que o cliente viu
}

func (r *PlaceBetRequest) Validate() error {
	return validate.Struct(r)
}
