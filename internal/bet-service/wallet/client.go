package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	walletdto "github.com/radieske/bet-settlement-platform/internal/bet-service/wallet/dto"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// Client fala com o wallet-service. Toda mutação de saldo do sistema passa
// por ele; ninguém escreve balance_cents direto.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

// Debit debita o stake. 409 do wallet vira ErrInsufficientFunds.
func (c *Client) Debit(ctx context.Context, userID string, cents int64, entryType, externalRef string) (entryID string, newBalance int64, err error) {
	return c.post(ctx, "/wallet/debit", walletdto.DebitRequest{
		UserID: userID, AmountCents: cents, EntryType: entryType, ExternalRef: externalRef,
	})
}

// Credit credita prêmios e estornos; nunca falha por saldo.
func (c *Client) Credit(ctx context.Context, userID string, cents int64, entryType, externalRef string) (entryID string, newBalance int64, err error) {
	return c.post(ctx, "/wallet/credit", walletdto.CreditRequest{
		UserID: userID, AmountCents: cents, EntryType: entryType, ExternalRef: externalRef,
	})
}

// AttachBet vincula o lançamento de débito ao id da aposta
func (c *Client) AttachBet(ctx context.Context, entryID, betID string) error {
	body, _ := json.Marshal(walletdto.AttachBetRequest{EntryID: entryID, BetID: betID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/wallet/attach-bet", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("wallet attach-bet http %d", res.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (string, int64, error) {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return "", 0, ErrInsufficientFunds
	}
	if res.StatusCode >= 300 {
		return "", 0, fmt.Errorf("wallet %s http %d", path, res.StatusCode)
	}

	var out walletdto.MovementResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", 0, err
	}
	return out.EntryID, out.NewBalanceCents, nil
}
