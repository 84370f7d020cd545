package ratelimit

import (
	"sync"
	"time"
)

// Window é um rate limit de janela deslizante por usuário, em memória e
// limitado em tamanho. Estado local do processo, perdido em restart:
// mitigação de abuso, não mecanismo de correção.
type Window struct {
	limit    int
	span     time.Duration
	maxUsers int
	now      func() time.Time

	mu      sync.Mutex
	perUser map[string][]time.Time
}

func New(limit int, span time.Duration) *Window {
	return &Window{
		limit:    limit,
		span:     span,
		maxUsers: 10_000,
		now:      time.Now,
		perUser:  make(map[string][]time.Time),
	}
}

// Allow registra uma tentativa e diz se ela cabe na janela
func (w *Window) Allow(userID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.span)

	stamps := prune(w.perUser[userID], cutoff)
	if len(stamps) >= w.limit {
		w.perUser[userID] = stamps
		return false
	}

	if _, known := w.perUser[userID]; !known && len(w.perUser) >= w.maxUsers {
		w.sweep(cutoff)
		// Mapa cheio mesmo depois da varredura: recusa a aposta em vez de
		// crescer sem limite.
		if len(w.perUser) >= w.maxUsers {
			return false
		}
	}

	w.perUser[userID] = append(stamps, now)
	return true
}

// sweep remove usuários cujas marcas já expiraram todas
func (w *Window) sweep(cutoff time.Time) {
	for id, stamps := range w.perUser {
		if len(prune(stamps, cutoff)) == 0 {
			delete(w.perUser, id)
		}
	}
}

func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}
