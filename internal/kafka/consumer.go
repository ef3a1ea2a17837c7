package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/options-monitor/internal/models"
)

// QuoteRepository defines the storage used for captured quotes
type QuoteRepository interface {
	UpsertQuote(ctx context.Context, project string, q models.OptionRow) error
}

// ErrInvalidQuote is returned for a quote event that cannot be stored
var ErrInvalidQuote = errors.New("invalid quote")

// Consumer stores quotes published by the collector.
// Quotes are kept one per option per trading day, so replayed messages
// are harmless.
type Consumer struct {
	reader *kafka.Reader
	repo   QuoteRepository
	log    zerolog.Logger
}

// NewConsumer creates a new Kafka consumer for quote events
func NewConsumer(brokers []string, topic, groupID string, repo QuoteRepository, log zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		repo:   repo,
		log:    log.With().Str("component", "quote-consumer").Str("topic", topic).Logger(),
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info().Msg("starting kafka consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				c.log.Error().Err(err).Msg("error reading message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				// Continue processing other messages
				c.log.Error().Err(err).Int("partition", msg.Partition).Int64("offset", msg.Offset).
					Msg("error processing message")
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	c.log.Debug().Int("partition", msg.Partition).Int64("offset", msg.Offset).
		Str("key", string(msg.Key)).Msg("received message")

	var event models.QuoteEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal quote event: %w", err)
	}

	// Only process QUOTE_CAPTURED events
	if event.EventType != models.EventQuoteCaptured {
		c.log.Debug().Str("event_type", event.EventType).Msg("ignoring event")
		return nil
	}

	if err := validateQuote(event); err != nil {
		return err
	}

	if err := c.repo.UpsertQuote(ctx, event.Project, event.Data); err != nil {
		return fmt.Errorf("failed to save quote: %w", err)
	}

	c.log.Info().Str("project", event.Project).Str("option", event.Data.Key().String()).
		Float64("market_price", event.Data.MarketPrice).Time("quoted_at", event.Data.Timestamp).
		Msg("saved quote")
	return nil
}

// validateQuote rejects events missing what the quote store is keyed on
func validateQuote(event models.QuoteEvent) error {
	q := event.Data
	switch {
	case event.Project == "":
		return fmt.Errorf("%w: missing project", ErrInvalidQuote)
	case q.Timestamp.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidQuote)
	case q.StrikePrice <= 0:
		return fmt.Errorf("%w: strike price %v", ErrInvalidQuote, q.StrikePrice)
	case q.TimeToExpiration < 0:
		return fmt.Errorf("%w: time to expiration %v", ErrInvalidQuote, q.TimeToExpiration)
	}
	if _, err := time.Parse("2006-01-02", q.ExpirationDate); err != nil {
		return fmt.Errorf("%w: expiration date %q", ErrInvalidQuote, q.ExpirationDate)
	}
	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
