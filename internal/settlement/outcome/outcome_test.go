package outcome

import (
	"testing"

	"github.com/radieske/bet-settlement-platform/internal/fixtures"
)

func fx(status string, home, away int) fixtures.Fixture {
	return fixtures.Fixture{ID: "MATCH_T", Status: status, HomeGoals: home, AwayGoals: away}
}

func TestEvaluate_MatchWinner(t *testing.T) {
	cases := []struct {
		name      string
		selection string
		home, away int
		want      Result
	}{
		{"home wins home selection", "home", 2, 1, Won},
		{"home wins away selection", "away", 2, 1, Lost},
		{"home wins draw selection", "draw", 2, 1, Lost},
		{"away wins away selection", "away", 0, 3, Won},
		{"draw with draw selection", "draw", 1, 1, Won},
		{"draw with home selection", "home", 1, 1, Lost},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate("match_winner", tc.selection, fx(fixtures.StatusFullTime, tc.home, tc.away))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEvaluate_OverUnder(t *testing.T) {
	cases := []struct {
		name      string
		selection string
		home, away int
		want      Result
	}{
		// Linha fracionária: comparação estrita
		{"over 2.5 with 2 goals", "over_2.5", 1, 1, Lost},
		{"over 2.5 with 3 goals", "over_2.5", 2, 1, Won},
		{"under 2.5 with 2 goals", "under_2.5", 2, 0, Won},
		{"under 2.5 with 3 goals", "under_2.5", 1, 2, Lost},
		// Linha inteira com total exatamente igual: push, aposta anulada
		{"over 3 with exactly 3 goals is push", "over_3", 2, 1, Void},
		{"under 3 with exactly 3 goals is push", "under_3", 3, 0, Void},
		{"over 3 with 4 goals", "over_3", 2, 2, Won},
		{"under 3 with 2 goals", "under_3", 1, 1, Won},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate("over_under", tc.selection, fx(fixtures.StatusFullTime, tc.home, tc.away))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEvaluate_OverUnder_BadSelection(t *testing.T) {
	got, err := Evaluate("over_under", "exactly_2", fx(fixtures.StatusFullTime, 1, 1))
	if err == nil {
		t.Fatal("expected error for malformed selection")
	}
	if got != Lost {
		t.Errorf("malformed selection should lose by policy, got %q", got)
	}
}

func TestEvaluate_BothTeamsScore(t *testing.T) {
	cases := []struct {
		name      string
		selection string
		home, away int
		want      Result
	}{
		{"both scored yes", "yes", 1, 2, Won},
		{"both scored no", "no", 1, 2, Lost},
		{"home blanked yes", "yes", 0, 2, Lost},
		{"home blanked no", "no", 0, 2, Won},
		{"goalless yes", "yes", 0, 0, Lost},
		{"goalless no", "no", 0, 0, Won},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate("both_teams_score", tc.selection, fx(fixtures.StatusFullTime, tc.home, tc.away))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEvaluate_VoidedFixtureVoidsEverything(t *testing.T) {
	for _, status := range []string{
		fixtures.StatusCancelled, fixtures.StatusPostponed,
		fixtures.StatusSuspended, fixtures.StatusAbandoned,
	} {
		t.Run(status, func(t *testing.T) {
			for _, betType := range []string{"match_winner", "over_under", "both_teams_score", "first_goalscorer"} {
				got, err := Evaluate(betType, "home", fx(status, 0, 0))
				if err != nil {
					t.Fatalf("%s: unexpected error: %v", betType, err)
				}
				if got != Void {
					t.Errorf("%s: got %q, want %q", betType, got, Void)
				}
			}
		})
	}
}

func TestEvaluate_DecidedStatuses(t *testing.T) {
	for _, status := range []string{fixtures.StatusFullTime, fixtures.StatusExtraTime, fixtures.StatusPenalties} {
		got, err := Evaluate("match_winner", "home", fx(status, 1, 0))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", status, err)
		}
		if got != Won {
			t.Errorf("%s: got %q, want won", status, got)
		}
	}
}

func TestEvaluate_UnknownBetTypeLosesByPolicy(t *testing.T) {
	got, err := Evaluate("first_goalscorer", "anyone", fx(fixtures.StatusFullTime, 1, 0))
	if err == nil {
		t.Fatal("expected error flagging the unsupported bet type")
	}
	if got != Lost {
		t.Errorf("got %q, want %q", got, Lost)
	}
}
