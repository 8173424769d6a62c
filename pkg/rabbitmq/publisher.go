package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"clip-orchestrator/dto"
)

// Publisher is satisfied by *amqp.Channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// NotificationPublisher hands order-completed events to the mail service through an exchange.
type NotificationPublisher struct {
	mu         sync.Mutex
	ch         Publisher
	exchange   string
	routingKey string
}

func NewNotificationPublisher(ch Publisher, exchange, routingKey string) *NotificationPublisher {
	return &NotificationPublisher{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
	}
}

// OpenNotificationPublisher opens a channel on conn and declares the notification exchange.
func OpenNotificationPublisher(conn *amqp.Connection, kind, exchange, routingKey string) (*NotificationPublisher, *amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	if err := ch.ExchangeDeclare(exchange, kind, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	return NewNotificationPublisher(ch, exchange, routingKey), ch, nil
}

func (p *NotificationPublisher) NotifyOrderCompleted(ctx context.Context, message dto.OrderCompletedMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    message.PaymentID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().
		Str("payment_id", message.PaymentID).
		Str("exchange", p.exchange).
		Msg("order completed event published")
	return nil
}
