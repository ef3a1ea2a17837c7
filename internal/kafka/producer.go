package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/options-monitor/internal/models"
)

// Producer handles publishing events to Kafka
type Producer struct {
	writer        *kafka.Writer
	quoteTopic    string
	snapshotTopic string
}

// NewProducer creates a new Kafka producer. The topic is chosen per message.
func NewProducer(brokers []string, quoteTopic, snapshotTopic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer:        writer,
		quoteTopic:    quoteTopic,
		snapshotTopic: snapshotTopic,
	}
}

// PublishQuoteCaptured publishes a captured quote for the server to store
func (p *Producer) PublishQuoteCaptured(ctx context.Context, project, source string, q models.OptionRow) error {
	msg, err := quoteMessage(p.quoteTopic, project, source, q, time.Now())
	if err != nil {
		return err
	}
	return p.write(ctx, msg)
}

// PublishSnapshotRefreshed announces a rebuilt project snapshot
func (p *Producer) PublishSnapshotRefreshed(ctx context.Context, snap *models.ProjectSnapshot) error {
	msg, err := snapshotMessage(p.snapshotTopic, snap, time.Now())
	if err != nil {
		return err
	}
	return p.write(ctx, msg)
}

func quoteMessage(topic, project, source string, q models.OptionRow, now time.Time) (kafka.Message, error) {
	event := models.QuoteEvent{
		EventID:   uuid.NewString(),
		EventType: models.EventQuoteCaptured,
		Source:    source,
		Project:   project,
		Data:      q,
		Timestamp: now,
	}
	return newMessage(topic, project+":"+q.Key().String(), event)
}

func snapshotMessage(topic string, snap *models.ProjectSnapshot, now time.Time) (kafka.Message, error) {
	event := models.SnapshotEvent{
		EventID:     uuid.NewString(),
		EventType:   models.EventSnapshotRefreshed,
		Project:     snap.ProjectName,
		LastUpdated: snap.LastUpdated,
		Summary:     snap.Summary,
		Timestamp:   now,
	}
	return newMessage(topic, snap.ProjectName, event)
}

func newMessage(topic, key string, event interface{}) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}, nil
}

func (p *Producer) write(ctx context.Context, msgs ...kafka.Message) error {
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
