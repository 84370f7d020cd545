package events

type BetPlaced struct {
	BetID                 string  `json:"bet_id"`
	UserID                string  `json:"user_id"`
	FixtureID             string  `json:"fixture_id"`
	BetType               string  `json:"bet_type"`
	Selection             string  `json:"selection"`
	StakeCents            int64   `json:"stake_cents"`
	Odds                  float64 `json:"odds"`
	PotentialWinningCents int64   `json:"potential_winning_cents"`
	TsUnixMs              int64   `json:"ts_unix_ms"`
}
