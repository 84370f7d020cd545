package topics

const (
	// Apostas
	BetPlaced  = "bet_placed"
	BetSettled = "bet_settled"

	// Falhas que exigem intervenção: créditos de liquidação que não
	// conseguiram ser aplicados e compensações de reserva que falharam.
	BetSettledDLQ         = "bet_settled_dlq"
	BetCompensationFailed = "bet_compensation_failed"
)
