package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-core/internal/model"
)

// RabbitPublisher sends confirmations to a durable queue on the default
// exchange.  The connection is opened lazily and re-dialled after the
// broker drops it.
type RabbitPublisher struct {
	url   string
	queue string
	log   *logrus.Entry

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewRabbitPublisher returns a publisher; nothing is dialled until the
// first event.
func NewRabbitPublisher(url, queue string, log *logrus.Entry) *RabbitPublisher {
	return &RabbitPublisher{url: url, queue: queue, log: log.WithField("component", "rabbitmq")}
}

func (p *RabbitPublisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	p.conn = conn
	return conn, nil
}

// BookingConfirmed publishes one persistent message.  Errors are returned
// for the caller to log; nothing is retried here.
func (p *RabbitPublisher) BookingConfirmed(ctx context.Context, c model.Confirmation) error {
	body, err := json.Marshal(NewBookingConfirmedEvent(c))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := p.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    c.Booking.ID.String(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	p.log.WithField("booking_id", c.Booking.ID).Debug("booking.confirmed published")
	return nil
}

// Close drops the connection, if any.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}
