package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	skafka "github.com/radieske/bet-settlement-platform/internal/shared/kafka"
	"github.com/radieske/bet-settlement-platform/pkg/contracts/events"
)

type KafkaPublisher struct {
	SettledWriter *kafka.Writer
	DLQWriter     *kafka.Writer
}

func NewKafkaPublisher(settled, dlq *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{SettledWriter: settled, DLQWriter: dlq}
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	e.Ts = time.Now().UTC()
	b, _ := json.Marshal(e)
	return skafka.WriteJSON(ctx, p.SettledWriter, e.BetID, b)
}

// PublishCreditFailed manda pra DLQ créditos que falharam com a aposta já em
// estado terminal — o retry manual recredita com o mesmo external_ref sem
// risco de pagamento duplo.
func (p *KafkaPublisher) PublishCreditFailed(ctx context.Context, e events.CreditFailed) error {
	e.Ts = time.Now().UTC()
	b, _ := json.Marshal(e)
	return skafka.WriteJSON(ctx, p.DLQWriter, e.BetID, b)
}
