package events

import "time"

// Evento emitido pelo settlement-worker após liquidar uma aposta.
type BetSettled struct {
	BetID       string    `json:"bet_id"`
	UserID      string    `json:"user_id"`
	FixtureID   string    `json:"fixture_id"`
	Outcome     string    `json:"outcome"` // "won" | "lost" | "void"
	PayoutCents int64     `json:"payout_cents"`
	Ts          time.Time `json:"ts"`
}

// Emitido quando uma compensação (estorno pós-falha de persistência)
// não pôde ser aplicada. Dinheiro em risco: exige intervenção manual.
type CompensationFailed struct {
	BetID      string    `json:"bet_id"`
	UserID     string    `json:"user_id"`
	StakeCents int64     `json:"stake_cents"`
	Reason     string    `json:"reason"`
	Ts         time.Time `json:"ts"`
}

// Emitido na DLQ quando o crédito de uma aposta vencedora/anulada falhou
// mesmo com a aposta já em estado terminal.
type CreditFailed struct {
	BetID       string    `json:"bet_id"`
	UserID      string    `json:"user_id"`
	FixtureID   string    `json:"fixture_id"`
	Outcome     string    `json:"outcome"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
	Ts          time.Time `json:"ts"`
}
