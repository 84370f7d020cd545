package dto

import "github.com/radieske/bet-settlement-platform/internal/wallet-service/repo"

type WalletResponse struct {
	UserID       string `json:"userId"`
	WalletID     string `json:"walletId"`
	BalanceCents int64  `json:"balance_cents"`
}

type MovementResponse struct {
	UserID          string `json:"userId"`
	EntryID         string `json:"entry_id"`
	NewBalanceCents int64  `json:"new_balance_cents"`
}

type LedgerResponse struct {
	UserID  string             `json:"userId"`
	Entries []repo.LedgerEntry `json:"entries"`
}

type ReconcileResponse struct {
	UserID         string `json:"userId"`
	BalanceCents   int64  `json:"balance_cents"`
	LedgerSumCents int64  `json:"ledger_sum_cents"`
	Consistent     bool   `json:"consistent"`
}
