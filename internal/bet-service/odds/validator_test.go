package odds

import "testing"

func TestWithinTolerance(t *testing.T) {
	tests := []struct {
		name    string
		offered float64
		current float64
		want    bool
	}{
		{"sem deriva", 2.50, 2.50, true},
		{"deriva pequena pra baixo", 2.50, 2.55, true},
		{"deriva pequena pra cima", 2.50, 2.45, true},
		{"logo acima da tolerância", 2.50, 2.36, false},
		{"deriva grande pra cima", 3.00, 2.50, false},
		{"deriva grande pra baixo", 2.00, 2.50, false},
		{"odd corrente zerada passa", 2.50, 0, true},
		{"odd corrente negativa passa", 2.50, -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinTolerance(tt.offered, tt.current); got != tt.want {
				t.Errorf("WithinTolerance(%v, %v) = %v, want %v", tt.offered, tt.current, got, tt.want)
			}
		})
	}
}
