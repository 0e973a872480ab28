package outbox

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
)

// Publisher delivers one event to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// MessageWriter is the subset of *kafka.Writer the Kafka publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer MessageWriter
	topic  string
}

func NewKafkaPublisher(writer MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic}
}

// NewKafkaWriter builds a writer that waits for all in-sync replicas.
func NewKafkaWriter(brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	headers := make([]kafka.Header, 0, len(e.Headers)+2)
	for k, v := range e.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: "event_type", Value: []byte(e.Type)})
	if e.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: TraceparentHeader, Value: []byte(e.Traceparent)})
	}

	// Keyed by order id so all events for one order land on the same partition.
	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(e.AggregateID),
		Value:   e.Payload,
		Headers: headers,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event %d to kafka: %w", e.ID, err)
	}
	return nil
}

// AMQPChannel is the subset of *amqp.Channel the AMQP publisher needs.
type AMQPChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AMQPPublisher struct {
	ch       AMQPChannel
	exchange string
}

func NewAMQPPublisher(ch AMQPChannel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

// DialAMQP connects to the broker and declares a durable topic exchange.
func DialAMQP(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("could not declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	headers := amqp.Table{}
	for k, v := range e.Headers {
		headers[k] = v
	}
	if e.Traceparent != "" {
		headers[TraceparentHeader] = e.Traceparent
	}

	// Routing key is the event type, e.g. order.created.
	err := p.ch.PublishWithContext(ctx, p.exchange, e.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%d", e.ID),
		Type:         e.Type,
		Headers:      headers,
		Body:         e.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event %d to amqp: %w", e.ID, err)
	}
	return nil
}
