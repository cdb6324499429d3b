package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-lottery/internal/models"
)

// Producer streams lottery events. In mock mode (local development, tests)
// messages are logged instead of written to a broker.
type Producer struct {
	Writer *kafka.Writer
	Topics Topics
	Mock   bool
	Logger *log.Logger
}

type Topics struct {
	RoundEvents  string
	TicketsSold  string
	WinnersDrawn string
}

func DefaultTopics() Topics {
	return Topics{
		RoundEvents:  TopicRoundEvents,
		TicketsSold:  TopicTicketsSold,
		WinnersDrawn: TopicWinnersDrawn,
	}
}

func NewProducer(brokers []string, topics Topics) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log.Default()}
}

// NewMockProducer returns a producer that only logs. Used when Kafka is
// disabled or unreachable in the current environment.
func NewMockProducer() *Producer {
	return &Producer{Topics: DefaultTopics(), Mock: true, Logger: log.Default()}
}

func (p *Producer) publish(topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if p.Mock {
		p.Logger.Printf("KAFKA(mock) [%s] %s: %s", topic, key, string(value))
		return nil
	}
	return p.Writer.WriteMessages(context.Background(), kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

type roundEvent struct {
	Event string       `json:"event"`
	Round models.Round `json:"round"`
	At    time.Time    `json:"at"`
}

type ticketsSoldEvent struct {
	RoundID string    `json:"round_id"`
	UserID  string    `json:"user_id"`
	Numbers []int     `json:"numbers"`
	At      time.Time `json:"at"`
}

// PublishRoundEvent streams a round lifecycle transition (open, closed,
// drawn, archived).
func (p *Producer) PublishRoundEvent(event string, round models.Round) error {
	return p.publish(p.Topics.RoundEvents, round.ID, roundEvent{
		Event: event,
		Round: round,
		At:    time.Now().UTC(),
	})
}

// PublishTicketsSold streams a completed allocation.
func (p *Producer) PublishTicketsSold(roundID, userID string, numbers []int) error {
	return p.publish(p.Topics.TicketsSold, roundID, ticketsSoldEvent{
		RoundID: roundID,
		UserID:  userID,
		Numbers: numbers,
		At:      time.Now().UTC(),
	})
}

// PublishWinnersDrawn streams a committed draw result.
func (p *Producer) PublishWinnersDrawn(result models.DrawResult) error {
	return p.publish(p.Topics.WinnersDrawn, result.RoundID, result)
}

func (p *Producer) Close() error {
	if p.Writer != nil {
		return p.Writer.Close()
	}
	return nil
}
