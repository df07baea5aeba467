package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends domain events to RabbitMQ.  Each publish opens its own
// connection so a broker outage never wedges request handling; failures
// are logged and returned for the caller to ignore or surface.
type Publisher struct {
	url string
	log *zap.Logger
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// PublishRented publishes to adspace.rented.
func (p *Publisher) PublishRented(ctx context.Context, ev AdSpaceRentedEvent) error {
	return p.publish(ctx, RentedQueue, ev)
}

// PublishMinted publishes to adspace.minted.
func (p *Publisher) PublishMinted(ctx context.Context, ev AdSpaceMintedEvent) error {
	return p.publish(ctx, MintedQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq queue declare failed", zap.String("queue", queue), zap.Error(err))
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		p.log.Warn("rabbitmq publish failed", zap.String("queue", queue), zap.Error(err))
		return err
	}
	return nil
}
