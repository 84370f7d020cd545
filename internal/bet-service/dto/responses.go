package dto

import "github.com/radieske/bet-settlement-platform/internal/bet-service/repo"

type PlaceBetResponse struct {
	Bet             repo.Bet `json:"bet"`
	NewBalanceCents int64    `json:"new_balance_cents"`
}

type BetListResponse struct {
	Bets     []repo.Bet `json:"bets"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

type CancelBetResponse struct {
	BetID           string `json:"betId"`
	Status          string `json:"status"` // "cancelled"
	RefundCents     int64  `json:"refund_cents"`
	NewBalanceCents int64  `json:"new_balance_cents"`
}

type ErrorResponse struct {
	Error       string  `json:"error"`
	CurrentOdds float64 `json:"current_odds,omitempty"` // preenchido em odds_changed
}
