package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-core/internal/model"
)

// KafkaPublisher sends confirmations to a topic, keyed by booking id so
// every event of a booking lands on one partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *logrus.Entry
}

// NewKafkaPublisher connects a synchronous producer that waits for all
// in-sync replicas.
func NewKafkaPublisher(brokers []string, topic string, log *logrus.Entry) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Timeout = 10 * time.Second
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic, log), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(p sarama.SyncProducer, topic string, log *logrus.Entry) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic, log: log.WithField("component", "kafka")}
}

// BookingConfirmed sends the event and waits for the broker's ack.  The
// sarama API has no context; the call is bounded by Producer.Timeout.
func (p *KafkaPublisher) BookingConfirmed(_ context.Context, c model.Confirmation) error {
	body, err := json.Marshal(NewBookingConfirmedEvent(c))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(c.Booking.ID.String()),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte("booking.confirmed")},
		},
		Timestamp: time.Now().UTC(),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("kafka send: %w", err)
	}
	p.log.WithFields(logrus.Fields{
		"booking_id": c.Booking.ID,
		"partition":  partition,
		"offset":     offset,
	}).Debug("booking.confirmed published")
	return nil
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }
