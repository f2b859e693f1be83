package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/guard"
)

// MessageType — тип сообщения.
type MessageType string

// Message types.
const (
	MessageTypeSlotPosted  MessageType = "slot.posted"
	MessageTypeSlotFailed  MessageType = "slot.failed"
	MessageTypeSLABreached MessageType = "sla.breached"
)

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Sender — транспорт публикации; реализуется Connection.
type Sender interface {
	Send(ctx context.Context, exchange Exchange, key RoutingKey, pub amqp.Publishing) error
}

// Publisher публикует события слотов и алерты SLA.
type Publisher struct {
	sender Sender
	now    func() time.Time
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(sender Sender, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{sender: sender, now: time.Now, logger: logger}
}

// PublishSlotEvent публикует терминальный переход слота.
func (p *Publisher) PublishSlotEvent(ctx context.Context, ev domain.SlotEvent) error {
	var (
		key     RoutingKey
		msgType MessageType
	)
	switch ev.Status {
	case domain.SlotStatusPosted:
		key, msgType = RoutingKeyPosted, MessageTypeSlotPosted
	case domain.SlotStatusFailed:
		key, msgType = RoutingKeyFailed, MessageTypeSlotFailed
	default:
		return fmt.Errorf("slot event with non-terminal status %q", ev.Status)
	}
	return p.publish(ctx, key, msgType, ev)
}

// Alert публикует нарушение SLA в slots.alerts.
func (p *Publisher) Alert(ctx context.Context, r guard.Remediation) error {
	return p.publish(ctx, RoutingKeyAlert, MessageTypeSLABreached, r)
}

func (p *Publisher) publish(ctx context.Context, key RoutingKey, msgType MessageType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: p.now().UTC(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.sender.Send(ctx, ExchangeSlots, key, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         string(msgType),
		Timestamp:    msg.Timestamp,
		Body:         body,
	})
	if err != nil {
		return err
	}

	p.logger.Debug("published message", "routing_key", key, "message_id", msg.ID, "type", msgType)
	return nil
}
