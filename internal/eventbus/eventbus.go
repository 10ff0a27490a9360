// Package eventbus publishes the `turn.completed` event named in §4.8 step
// 13e's domain-stack wiring: after Cache.set, the orchestrator publishes
// one event per completed turn, decoupling downstream consumers (billing
// exports, analytics) from the request path.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// TurnCompleted is the event payload published after a turn's cache write.
type TurnCompleted struct {
	UserID      string    `json:"user_id"`
	ChatID      string    `json:"chat_id"`
	TenantID    string    `json:"tenant_id"`
	Model       string    `json:"model"`
	Credits     int       `json:"credits"`
	CostUSD     float64   `json:"cost_usd"`
	FromCache   bool      `json:"from_cache"`
	CompletedAt time.Time `json:"completed_at"`
}

// Publisher writes turn.completed events to Kafka. Grounded on the
// teacher's cmd/orchestrator producer: a single shared *kafka.Writer with
// per-message Topic (never set on the Writer itself — kafka-go rejects
// setting Topic on both).
type Publisher struct {
	writer *kafka.Writer
	topic  string
}

// NewPublisher constructs a Publisher against the given brokers. topic
// defaults to "turn.completed".
func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = "turn.completed"
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
		topic: topic,
	}
}

// Publish writes one turn.completed event. Failures are the caller's to
// log; a down event bus must never fail or delay the turn it describes.
func (p *Publisher) Publish(ctx context.Context, ev TurnCompleted) error {
	if p == nil {
		return nil
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(ev.UserID),
		Value: b,
	})
}

// Close releases the underlying Kafka writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
