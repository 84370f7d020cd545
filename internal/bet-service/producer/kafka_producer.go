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
	PlacedWriter       *kafka.Writer
	CompensationWriter *kafka.Writer
}

func NewKafkaPublisher(placed, compensation *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{PlacedWriter: placed, CompensationWriter: compensation}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return skafka.WriteJSON(ctx, p.PlacedWriter, e.BetID, b)
}

// PublishCompensationFailed alerta que um estorno automático não aplicou.
// Consumido por alerting: é a classe de falha que representa dinheiro em risco.
func (p *KafkaPublisher) PublishCompensationFailed(ctx context.Context, e events.CompensationFailed) error {
	e.Ts = time.Now().UTC()
	b, _ := json.Marshal(e)
	return skafka.WriteJSON(ctx, p.CompensationWriter, e.BetID, b)
}
