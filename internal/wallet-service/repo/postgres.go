package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Postgres implementa a autoridade de saldo: todo write no contador
// balance_cents passa por aqui, com lock pessimista na linha da carteira e
// lançamento no ledger dentro da mesma transação.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrInvalidEntryType  = errors.New("invalid entry type")
	ErrAlreadyAttached   = errors.New("ledger entry already linked to a bet")
)

// GetOrCreateWallet retorna o walletId e saldo de um usuário, criando a carteira se não existir
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	id, bal, err := lockWallet(ctx, tx, userID)
	if err != nil {
		return "", 0, err
	}

	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return id, bal, nil
}

// lockWallet trava a linha da carteira (FOR UPDATE), criando-a zerada se
// ainda não existir. Todo caminho de escrita passa por aqui, então débitos
// concorrentes do mesmo usuário serializam no lock da linha.
func lockWallet(ctx context.Context, tx *sql.Tx, userID string) (walletID string, balance int64, err error) {
	err = tx.QueryRowContext(ctx,
		`SELECT id, balance_cents FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).
		Scan(&walletID, &balance)
	if err == sql.ErrNoRows {
		walletID = uuid.NewString()
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallets(id, user_id, balance_cents, version) VALUES($1,$2,0,1)`,
			walletID, userID); err != nil {
			return "", 0, err
		}
		return walletID, 0, nil
	}
	if err != nil {
		return "", 0, err
	}
	return walletID, balance, nil
}

// findByRef procura um lançamento já aplicado com o mesmo external_ref.
// Chamado com o lock da carteira em mãos, então o read-then-act é seguro.
func findByRef(ctx context.Context, tx *sql.Tx, walletID, externalRef string) (entryID string, found bool, err error) {
	if externalRef == "" {
		return "", false, nil
	}
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM wallet_ledger WHERE wallet_id=$1 AND external_ref=$2`,
		walletID, externalRef).Scan(&entryID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entryID, true, nil
}

// Debit decrementa o saldo e grava o lançamento (amount negativo) na mesma
// transação. Rejeita com ErrInsufficientFunds se amount > saldo; nunca deixa
// o contador negativo. Idempotente por (wallet_id, external_ref): repetir o
// mesmo ref devolve o lançamento original sem debitar de novo.
func (p *Postgres) Debit(ctx context.Context, userID string, amount int64, entryType, externalRef string) (entryID string, newBalance int64, err error) {
	if amount <= 0 {
		return "", 0, fmt.Errorf("debit amount must be positive")
	}
	if !debitTypes[entryType] {
		return "", 0, ErrInvalidEntryType
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	walletID, balance, err := lockWallet(ctx, tx, userID)
	if err != nil {
		return "", 0, err
	}

	if id, found, ferr := findByRef(ctx, tx, walletID, externalRef); ferr != nil {
		return "", 0, ferr
	} else if found {
		return id, balance, tx.Commit()
	}

	if balance < amount {
		return "", 0, ErrInsufficientFunds
	}
	newBalance = balance - amount

	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents=$1, version=version+1 WHERE id=$2`,
		newBalance, walletID); err != nil {
		return "", 0, err
	}

	entryID = uuid.NewString()
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_ledger(id, wallet_id, entry_type, amount_cents, balance_after_cents, external_ref)
		VALUES($1,$2,$3,$4,$5,NULLIF($6,''))`,
		entryID, walletID, entryType, -amount, newBalance, externalRef); err != nil {
		return "", 0, err
	}

	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return entryID, newBalance, nil
}

// Credit incrementa o saldo e grava o lançamento. Nunca consulta saldo:
// crédito sempre aplica. Mesma idempotência por external_ref do Debit.
func (p *Postgres) Credit(ctx context.Context, userID string, amount int64, entryType, externalRef string) (entryID string, newBalance int64, err error) {
	if amount <= 0 {
		return "", 0, fmt.Errorf("credit amount must be positive")
	}
	if !creditTypes[entryType] {
		return "", 0, ErrInvalidEntryType
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	walletID, balance, err := lockWallet(ctx, tx, userID)
	if err != nil {
		return "", 0, err
	}

	if id, found, ferr := findByRef(ctx, tx, walletID, externalRef); ferr != nil {
		return "", 0, ferr
	} else if found {
		return id, balance, tx.Commit()
	}

	newBalance = balance + amount

	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents=$1, version=version+1 WHERE id=$2`,
		newBalance, walletID); err != nil {
		return "", 0, err
	}

	entryID = uuid.NewString()
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_ledger(id, wallet_id, entry_type, amount_cents, balance_after_cents, external_ref)
		VALUES($1,$2,$3,$4,$5,NULLIF($6,''))`,
		entryID, walletID, entryType, amount, newBalance, externalRef); err != nil {
		return "", 0, err
	}

	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return entryID, newBalance, nil
}

// AttachBet vincula o id da aposta a um lançamento já gravado. Permitido uma
// única vez: o lançamento é imutável fora isso.
func (p *Postgres) AttachBet(ctx context.Context, entryID, betID string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE wallet_ledger SET related_bet_id=$1 WHERE id=$2 AND related_bet_id IS NULL`,
		betID, entryID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM wallet_ledger WHERE id=$1)`, entryID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrAlreadyAttached
	}
	return nil
}

// Ledger lista os lançamentos do usuário, mais recentes primeiro
func (p *Postgres) Ledger(ctx context.Context, userID string, limit, offset int) ([]LedgerEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT l.id, l.wallet_id, l.entry_type, l.amount_cents, l.balance_after_cents,
		       COALESCE(l.related_bet_id,''), COALESCE(l.external_ref,''), l.created_at
		FROM wallet_ledger l
		JOIN wallets w ON w.id = l.wallet_id
		WHERE w.user_id=$1
		ORDER BY l.created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.EntryType, &e.AmountCents,
			&e.BalanceAfterCents, &e.RelatedBetID, &e.ExternalRef, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Reconcile confere a invariante de auditoria: o saldo tem que ser a soma
// de todos os lançamentos do ledger do usuário.
func (p *Postgres) Reconcile(ctx context.Context, userID string) (balance, ledgerSum int64, ok bool, err error) {
	err = p.db.QueryRowContext(ctx, `
		SELECT w.balance_cents, COALESCE(SUM(l.amount_cents),0)
		FROM wallets w
		LEFT JOIN wallet_ledger l ON l.wallet_id = w.id
		WHERE w.user_id=$1
		GROUP BY w.balance_cents`, userID).Scan(&balance, &ledgerSum)
	if err == sql.ErrNoRows {
		return 0, 0, false, ErrNotFound
	}
	if err != nil {
		return 0, 0, false, err
	}
	return balance, ledgerSum, balance == ledgerSum, nil
}
