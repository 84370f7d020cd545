package dto

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

type MovementResponse struct {
	UserID          string `json:"userId"`
	EntryID         string `json:"entry_id"`
	NewBalanceCents int64  `json:"new_balance_cents"`
}
