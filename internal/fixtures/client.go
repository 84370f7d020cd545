package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrUnavailable = errors.New("fixture provider unavailable")

// Client consome o provedor externo de partidas. Detalhes de partida passam
// por um cache Redis com TTL curto; a listagem de encerradas vai sempre na
// origem (é ela que dirige a liquidação).
type Client struct {
	BaseURL  string
	HTTP     *http.Client
	Creds    *TokenProvider
	Cache    *redis.Client // opcional
	CacheTTL time.Duration
	Log      *zap.Logger
}

func NewClient(baseURL string, creds *TokenProvider, cache *redis.Client, log *zap.Logger) *Client {
	return &Client{
		BaseURL:  baseURL,
		HTTP:     &http.Client{Timeout: 3 * time.Second},
		Creds:    creds,
		Cache:    cache,
		CacheTTL: 60 * time.Second,
		Log:      log,
	}
}

func cacheKey(fixtureID string) string { return "fixture:current:" + fixtureID }

// GetFixture busca os detalhes de uma partida (cache primeiro)
func (c *Client) GetFixture(ctx context.Context, fixtureID string) (*Fixture, error) {
	if c.Cache != nil {
		if raw, err := c.Cache.Get(ctx, cacheKey(fixtureID)).Result(); err == nil {
			var f Fixture
			if jerr := json.Unmarshal([]byte(raw), &f); jerr == nil {
				return &f, nil
			}
		}
	}

	var f Fixture
	if err := c.getJSON(ctx, "/fixtures/"+fixtureID, &f); err != nil {
		return nil, err
	}

	if c.Cache != nil {
		if b, err := json.Marshal(f); err == nil {
			// Partidas já encerradas não mudam mais; cache mais longo
			ttl := c.CacheTTL
			if f.Finished() {
				ttl = 10 * time.Minute
			}
			if err := c.Cache.Set(ctx, cacheKey(fixtureID), b, ttl).Err(); err != nil && c.Log != nil {
				c.Log.Warn("fixture cache set failed", zap.Error(err))
			}
		}
	}
	return &f, nil
}

// ListFinishedSince lista partidas que encerraram dentro da janela
func (c *Client) ListFinishedSince(ctx context.Context, window time.Duration) ([]Fixture, error) {
	var out []Fixture
	path := fmt.Sprintf("/fixtures/finished?since_minutes=%d", int(window.Minutes()))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getJSON executa GET autenticado. Em 401 invalida a credencial e tenta uma
// única vez com token novo.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	res, err := c.do(ctx, path)
	if err != nil {
		return err
	}
	if res.StatusCode == http.StatusUnauthorized {
		res.Body.Close()
		c.Creds.Invalidate()
		if res, err = c.do(ctx, path); err != nil {
			return err
		}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("fixture not found")
	}
	if res.StatusCode >= 300 {
		return fmt.Errorf("%w: http %d", ErrUnavailable, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(v)
}

func (c *Client) do(ctx context.Context, path string) (*http.Response, error) {
	token, err := c.Creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, nil
}
