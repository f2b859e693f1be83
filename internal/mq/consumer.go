package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Herald/internal/domain"
)

// Handler обрабатывает одно сообщение. Ошибка — nack без requeue (в DLQ).
type Handler func(ctx context.Context, msg Message) error

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue    Queue
	Handler  Handler
	Prefetch int
	Logger   *slog.Logger
}

// Consumer читает очередь и переподписывается после reconnect.
type Consumer struct {
	conn     *Connection
	queue    Queue
	handler  Handler
	prefetch int
	logger   *slog.Logger
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Consumer{
		conn:     conn,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: cfg.Prefetch,
		logger:   cfg.Logger.With("queue", string(cfg.Queue)),
	}
}

// Run потребляет сообщения до отмены ctx.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Warn("subscribe failed, waiting for reconnect", "error", err)
		} else {
			c.drain(ctx, deliveries)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.Reconnected():
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(string(c.queue), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Error("malformed message", "error", err)
		_ = d.Nack(false, false)
		return
	}
	if err := c.handler(ctx, msg); err != nil {
		c.logger.Error("handler failed", "message_id", msg.ID, "error", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// SlotEvent декодирует payload slot.* сообщения.
func (m Message) SlotEvent() (domain.SlotEvent, error) {
	var ev domain.SlotEvent
	if m.Type != MessageTypeSlotPosted && m.Type != MessageTypeSlotFailed {
		return ev, fmt.Errorf("message %s is %s, not a slot event", m.ID, m.Type)
	}
	if err := json.Unmarshal(m.Payload, &ev); err != nil {
		return ev, fmt.Errorf("decode slot event: %w", err)
	}
	return ev, nil
}
