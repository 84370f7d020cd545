package repo

import "time"

// Tipos de lançamento no ledger. O sinal do amount_cents gravado segue a
// direção: créditos positivos, débitos negativos.
const (
	EntryDeposit         = "deposit"
	EntryWithdrawal      = "withdrawal"
	EntryBetPlaced       = "bet_placed"
	EntryBetWon          = "bet_won"
	EntryBetRefund       = "bet_refund"
	EntryAdminAdjustment = "admin_adjustment"
)

var debitTypes = map[string]bool{
	EntryWithdrawal:      true,
	EntryBetPlaced:       true,
	EntryAdminAdjustment: true,
}

var creditTypes = map[string]bool{
	EntryDeposit:         true,
	EntryBetWon:          true,
	EntryBetRefund:       true,
	EntryAdminAdjustment: true,
}

// LedgerEntry é um registro imutável de movimentação de saldo.
// Só o related_bet_id pode ser preenchido depois da criação, uma única vez,
// porque na colocação de aposta o débito acontece antes do id da aposta
// estar persistido.
type LedgerEntry struct {
	ID                string    `json:"id"`
	WalletID          string    `json:"wallet_id"`
	EntryType         string    `json:"entry_type"`
	AmountCents       int64     `json:"amount_cents"` // assinado
	BalanceAfterCents int64     `json:"balance_after_cents"`
	RelatedBetID      string    `json:"related_bet_id,omitempty"`
	ExternalRef       string    `json:"external_ref,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
