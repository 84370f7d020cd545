package dto

type DepositRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref,omitempty"` // opcional p/ idempotência
}

type WithdrawRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref,omitempty"`
}

// DebitRequest / CreditRequest são a API interna usada pelo bet-service e
// pelo settlement-worker. EntryType carrega o motivo (bet_placed, bet_won,
// bet_refund); ExternalRef garante aplicação única sob retry.
type DebitRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	EntryType   string `json:"entry_type"`
	ExternalRef string `json:"external_ref"`
}

type CreditRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	EntryType   string `json:"entry_type"`
	ExternalRef string `json:"external_ref"`
}

type AttachBetRequest struct {
	EntryID string `json:"entry_id"`
	BetID   string `json:"bet_id"`
}
