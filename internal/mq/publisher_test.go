package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Herald/internal/domain"
	"github.com/shaiso/Herald/internal/guard"
)

type sent struct {
	exchange Exchange
	key      RoutingKey
	pub      amqp.Publishing
}

type fakeSender struct {
	sent []sent
	err  error
}

func (f *fakeSender) Send(_ context.Context, exchange Exchange, key RoutingKey, pub amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{exchange, key, pub})
	return nil
}

func decode(t *testing.T, body []byte) Message {
	t.Helper()
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return msg
}

func TestPublishSlotEvent_Routing(t *testing.T) {
	tests := []struct {
		status  domain.SlotStatus
		key     RoutingKey
		msgType MessageType
	}{
		{domain.SlotStatusPosted, RoutingKeyPosted, MessageTypeSlotPosted},
		{domain.SlotStatusFailed, RoutingKeyFailed, MessageTypeSlotFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			sender := &fakeSender{}
			p := NewPublisher(sender, nil)

			ev := domain.SlotEvent{
				SlotID:    uuid.New(),
				Date:      "2025-07-04",
				SlotIndex: 2,
				Status:    tt.status,
				Platform:  "reddit",
				At:        time.Date(2025, 7, 4, 19, 0, 0, 0, time.UTC),
			}
			if err := p.PublishSlotEvent(context.Background(), ev); err != nil {
				t.Fatalf("publish: %v", err)
			}
			if len(sender.sent) != 1 {
				t.Fatalf("expected one message, got %d", len(sender.sent))
			}
			s := sender.sent[0]
			if s.exchange != ExchangeSlots || s.key != tt.key {
				t.Errorf("routed to %s/%s", s.exchange, s.key)
			}
			if s.pub.DeliveryMode != amqp.Persistent || s.pub.ContentType != "application/json" {
				t.Errorf("unexpected publishing %+v", s.pub)
			}

			msg := decode(t, s.pub.Body)
			if msg.Type != tt.msgType || msg.ID != s.pub.MessageId {
				t.Errorf("unexpected envelope %+v", msg)
			}
			got, err := msg.SlotEvent()
			if err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if got.SlotID != ev.SlotID || got.SlotIndex != 2 || got.Platform != "reddit" {
				t.Errorf("event mismatch %+v", got)
			}
		})
	}
}

func TestPublishSlotEvent_NonTerminal(t *testing.T) {
	sender := &fakeSender{}
	err := NewPublisher(sender, nil).PublishSlotEvent(context.Background(), domain.SlotEvent{Status: domain.SlotStatusPosting})
	if err == nil {
		t.Fatal("expected error for non-terminal status")
	}
	if len(sender.sent) != 0 {
		t.Error("nothing must be sent")
	}
}

func TestPublisher_Alert(t *testing.T) {
	sender := &fakeSender{}
	rem := guard.Remediation{Commands: []string{"herald assert-sla"}, Message: "breach"}
	if err := NewPublisher(sender, nil).Alert(context.Background(), rem); err != nil {
		t.Fatalf("alert: %v", err)
	}
	s := sender.sent[0]
	if s.key != RoutingKeyAlert {
		t.Errorf("expected alert routing key, got %s", s.key)
	}
	msg := decode(t, s.pub.Body)
	if msg.Type != MessageTypeSLABreached {
		t.Errorf("unexpected type %s", msg.Type)
	}
	if _, err := msg.SlotEvent(); err == nil {
		t.Error("alert must not decode as slot event")
	}
	var got guard.Remediation
	if err := json.Unmarshal(msg.Payload, &got); err != nil || got.Message != "breach" {
		t.Errorf("unexpected payload %s (%v)", msg.Payload, err)
	}
}

func TestPublisher_SendError(t *testing.T) {
	boom := errors.New("broker down")
	err := NewPublisher(&fakeSender{err: boom}, nil).PublishSlotEvent(context.Background(), domain.SlotEvent{Status: domain.SlotStatusPosted})
	if !errors.Is(err, boom) {
		t.Errorf("expected send error, got %v", err)
	}
}

func TestTopologyBindings(t *testing.T) {
	seen := map[Queue]bool{}
	for _, b := range bindings {
		seen[b.queue] = true
		if b.queue == QueueDLQSlots && b.deadLtr {
			t.Error("dlq must not dead-letter into itself")
		}
	}
	for _, q := range []Queue{QueueSlotsPosted, QueueSlotsFailed, QueueSlotsAlerts, QueueDLQSlots} {
		if !seen[q] {
			t.Errorf("queue %s not bound", q)
		}
	}
}
