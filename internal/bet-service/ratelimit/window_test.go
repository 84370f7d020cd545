package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestWindow_AllowUpToLimit(t *testing.T) {
	w := New(3, time.Minute)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		if !w.Allow("u1") {
			t.Fatalf("attempt %d should pass", i+1)
		}
	}
	if w.Allow("u1") {
		t.Error("fourth attempt inside the window should be refused")
	}
}

func TestWindow_SlidesWithTime(t *testing.T) {
	w := New(2, time.Minute)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	w.Allow("u1")
	clock = clock.Add(30 * time.Second)
	w.Allow("u1")
	if w.Allow("u1") {
		t.Fatal("limit reached, should refuse")
	}

	// Primeira marca sai da janela, abre uma vaga
	clock = clock.Add(31 * time.Second)
	if !w.Allow("u1") {
		t.Error("oldest stamp expired, attempt should pass")
	}
	if w.Allow("u1") {
		t.Error("window full again, should refuse")
	}
}

func TestWindow_UsersAreIndependent(t *testing.T) {
	w := New(1, time.Minute)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if !w.Allow("u1") || !w.Allow("u2") {
		t.Fatal("each user has their own window")
	}
	if w.Allow("u1") {
		t.Error("u1 exhausted their window")
	}
}

func TestWindow_SweepEvictsExpiredUsers(t *testing.T) {
	w := New(1, time.Minute)
	w.maxUsers = 5
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	for i := 0; i < 5; i++ {
		w.Allow(fmt.Sprintf("old-%d", i))
	}

	// Mapa cheio e marcas ainda válidas: usuário novo é recusado
	if w.Allow("new") {
		t.Fatal("map full with live stamps, new user must wait")
	}

	// Depois da janela a varredura libera espaço
	clock = clock.Add(2 * time.Minute)
	if !w.Allow("new") {
		t.Error("expired users swept, new user should pass")
	}
	if len(w.perUser) > 2 {
		t.Errorf("perUser size = %d after sweep", len(w.perUser))
	}
}
