package fixtures

import "time"

// Status de partida reportados pelo provedor externo.
const (
	StatusScheduled = "NS"   // not started
	StatusLive      = "LIVE" //
	StatusFullTime  = "FT"
	StatusExtraTime = "AET"
	StatusPenalties = "PEN"
	StatusCancelled = "CANC"
	StatusPostponed = "PST"
	StatusSuspended = "SUSP"
	StatusAbandoned = "ABD"
)

type Fixture struct {
	ID        string    `json:"id"`
	League    string    `json:"league"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	KickoffAt time.Time `json:"kickoff_at"`
	Status    string    `json:"status"`
	HomeGoals int       `json:"home_goals"`
	AwayGoals int       `json:"away_goals"`
}

// Decided indica que a partida tem placar final válido para avaliar apostas.
func (f Fixture) Decided() bool {
	switch f.Status {
	case StatusFullTime, StatusExtraTime, StatusPenalties:
		return true
	}
	return false
}

// Voided indica que a partida não vai produzir resultado: toda aposta ativa
// nela é anulada.
func (f Fixture) Voided() bool {
	switch f.Status {
	case StatusCancelled, StatusPostponed, StatusSuspended, StatusAbandoned:
		return true
	}
	return false
}

// Finished cobre os dois casos acima: a partida entra no ciclo de liquidação.
func (f Fixture) Finished() bool { return f.Decided() || f.Voided() }
