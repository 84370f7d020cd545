package outcome

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/radieske/bet-settlement-platform/internal/fixtures"
)

// Result é o desfecho de uma aposta avaliada contra o placar final.
type Result string

const (
	Won  Result = "won"
	Lost Result = "lost"
	Void Result = "void" // estorno do stake, não derrota
)

// Evaluate decide o desfecho de uma aposta. Função pura, sem I/O.
//
// Partida anulada (cancelada/adiada/suspensa/abandonada) anula qualquer
// aposta, independente do tipo. Tipo de aposta desconhecido perde por
// política deliberada — o erro retornado existe pro chamador logar o caso,
// não pra abortar a liquidação.
func Evaluate(betType, selection string, fx fixtures.Fixture) (Result, error) {
	if fx.Voided() {
		return Void, nil
	}
	if !fx.Decided() {
		return Lost, fmt.Errorf("fixture %s not decided (status %s)", fx.ID, fx.Status)
	}

	switch betType {
	case "match_winner":
		return matchWinner(selection, fx)
	case "over_under":
		return overUnder(selection, fx)
	case "both_teams_score":
		return bothTeamsScore(selection, fx)
	default:
		return Lost, fmt.Errorf("unsupported bet type %q", betType)
	}
}

func matchWinner(selection string, fx fixtures.Fixture) (Result, error) {
	var winner string
	switch {
	case fx.HomeGoals > fx.AwayGoals:
		winner = "home"
	case fx.AwayGoals > fx.HomeGoals:
		winner = "away"
	default:
		winner = "draw"
	}

	switch selection {
	case "home", "away", "draw":
		if selection == winner {
			return Won, nil
		}
		return Lost, nil
	default:
		return Lost, fmt.Errorf("unknown match_winner selection %q", selection)
	}
}

// overUnder espera seleção "over_2.5" / "under_3". Comparação estrita:
// total igual à linha não ganha pra nenhum lado; em linha inteira isso é
// push — a aposta é anulada e o stake devolvido.
func overUnder(selection string, fx fixtures.Fixture) (Result, error) {
	side, line, err := parseLine(selection)
	if err != nil {
		return Lost, err
	}

	total := float64(fx.HomeGoals + fx.AwayGoals)
	if total == line {
		return Void, nil
	}

	switch side {
	case "over":
		if total > line {
			return Won, nil
		}
	case "under":
		if total < line {
			return Won, nil
		}
	}
	return Lost, nil
}

func parseLine(selection string) (side string, line float64, err error) {
	parts := strings.SplitN(selection, "_", 2)
	if len(parts) != 2 || (parts[0] != "over" && parts[0] != "under") {
		return "", 0, fmt.Errorf("unknown over_under selection %q", selection)
	}
	line, err = strconv.ParseFloat(parts[1], 64)
	if err != nil || math.IsNaN(line) || line < 0 {
		return "", 0, fmt.Errorf("bad over_under line in %q", selection)
	}
	return parts[0], line, nil
}

func bothTeamsScore(selection string, fx fixtures.Fixture) (Result, error) {
	both := fx.HomeGoals >= 1 && fx.AwayGoals >= 1

	switch selection {
	case "yes":
		if both {
			return Won, nil
		}
		return Lost, nil
	case "no":
		if !both {
			return Won, nil
		}
		return Lost, nil
	default:
		return Lost, fmt.Errorf("unknown both_teams_score selection %q", selection)
	}
}
