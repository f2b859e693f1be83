package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Exchanges.
const (
	ExchangeSlots Exchange = "herald.slots"
	ExchangeDLQ   Exchange = "herald.dlq"
)

// Queues.
const (
	QueueSlotsPosted Queue = "slots.posted"
	QueueSlotsFailed Queue = "slots.failed"
	QueueSlotsAlerts Queue = "slots.alerts"
	QueueDLQSlots    Queue = "dlq.slots"
)

// Routing keys.
const (
	RoutingKeyPosted   RoutingKey = "posted"
	RoutingKeyFailed   RoutingKey = "failed"
	RoutingKeyAlert    RoutingKey = "alert"
	RoutingKeyDLQSlots RoutingKey = "slots"
)

type binding struct {
	queue    Queue
	key      RoutingKey
	exchange Exchange
	deadLtr  bool
}

var bindings = []binding{
	{QueueSlotsPosted, RoutingKeyPosted, ExchangeSlots, true},
	{QueueSlotsFailed, RoutingKeyFailed, ExchangeSlots, true},
	{QueueSlotsAlerts, RoutingKeyAlert, ExchangeSlots, true},
	{QueueDLQSlots, RoutingKeyDLQSlots, ExchangeDLQ, false},
}

// DeclareTopology объявляет обменники, очереди и привязки. Идемпотентно.
func DeclareTopology(_ context.Context, conn *Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	for _, ex := range []Exchange{ExchangeSlots, ExchangeDLQ} {
		if err := ch.ExchangeDeclare(string(ex), "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	dlq := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQSlots),
	}
	for _, b := range bindings {
		var args amqp.Table
		if b.deadLtr {
			args = dlq
		}
		if _, err := ch.QueueDeclare(string(b.queue), true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.queue, err)
		}
		if err := ch.QueueBind(string(b.queue), string(b.key), string(b.exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// TopologyInfo — описание топологии для логов и CLI.
func TopologyInfo() string {
	return `herald.slots (direct)
├── slots.posted [posted]   → dlq.slots
├── slots.failed [failed]   → dlq.slots
└── slots.alerts [alert]    → dlq.slots
herald.dlq (direct)
└── dlq.slots [slots]
`
}
