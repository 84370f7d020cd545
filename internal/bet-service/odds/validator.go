package odds

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Tolerância de deriva entre a odd vista pelo cliente e a odd corrente.
const MaxDrift = 0.05

// Validator confere a odd oferecida contra a odd corrente do mercado.
// Espera chave "odds:{fixtureID}:{betType}:{selection}" => valor string, ex: "1.85"
type Validator struct {
	Rdb *redis.Client
}

func NewValidator(r *redis.Client) *Validator { return &Validator{Rdb: r} }

// CurrentOdds retorna a odd corrente do cache. redis.Nil (ou indisponível)
// significa "sem odd corrente": o chamador decide seguir com a odd oferecida.
func (v *Validator) CurrentOdds(ctx context.Context, fixtureID, betType, selection string) (float64, error) {
	key := fmt.Sprintf("odds:%s:%s:%s", fixtureID, betType, selection)
	val, err := v.Rdb.Get(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	cur, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cached odd %q: %w", val, err)
	}
	return cur, nil
}

// WithinTolerance compara deriva relativa entre a odd oferecida e a corrente
func WithinTolerance(offered, current float64) bool {
	if current <= 0 {
		return true
	}
	return math.Abs(offered-current)/current <= MaxDrift
}
