package fixtures

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// TokenProvider obtém e renova a credencial de serviço do provedor de
// partidas. Ciclo de vida explícito: adquire sob demanda, renova ao expirar,
// e Invalidate derruba o token atual quando o provedor responde 401.
// Injetado no Client; não existe estado global de credencial.
type TokenProvider struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenProvider(baseURL, clientID, clientSecret string) *TokenProvider {
	return &TokenProvider{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         &http.Client{Timeout: 2 * time.Second},
		now:          time.Now,
	}
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"` // segundos
}

// Token devolve um token válido, renovando se o atual expirou.
// Renova 30s antes da expiração real pra não entregar token no fio da navalha.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Add(30*time.Second).Before(p.expiresAt) {
		return p.token, nil
	}

	body, _ := json.Marshal(tokenRequest{ClientID: p.clientID, ClientSecret: p.clientSecret})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fixture provider token: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("fixture provider token http %d", res.StatusCode)
	}

	var out tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}

	p.token = out.AccessToken
	p.expiresAt = p.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return p.token, nil
}

// Invalidate descarta o token atual; a próxima chamada a Token readquire.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	p.expiresAt = time.Time{}
}
