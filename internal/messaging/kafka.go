package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/bookshelf/internal/config"
	"github.com/temcen/bookshelf/internal/services"
	"github.com/temcen/bookshelf/internal/validation"
	"github.com/temcen/bookshelf/pkg/models"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
)

// CatalogHandler applies one decoded catalog event.
type CatalogHandler func(ctx context.Context, event models.CatalogEvent) error

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.ReaderStats
	Close() error
}

// EventBus publishes rating events and consumes catalog events. Catalog
// events that fail schema validation, carry invalid input or exhaust their
// retries are copied to the dead-letter topic and committed.
type EventBus struct {
	ratingWriter  messageWriter
	catalogReader messageReader
	dlqWriter     messageWriter
	validator     *validation.SchemaValidator
	topics        topics
	brokers       []string
	logger        *logrus.Logger

	maxRetries int
	baseDelay  time.Duration
}

type topics struct {
	ratings    string
	catalog    string
	catalogDLQ string
}

func NewEventBus(cfg *config.Config, validator *validation.SchemaValidator, logger *logrus.Logger) (*EventBus, error) {
	if !cfg.Kafka.Enabled() {
		return nil, errors.New("kafka brokers not configured")
	}

	t := topics{
		ratings:    cfg.Kafka.Topics.RatingEvents,
		catalog:    cfg.Kafka.Topics.CatalogEvents,
		catalogDLQ: cfg.Kafka.Topics.CatalogEventsDLQ,
	}

	ratingWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        t.ratings,
		Balancer:     &kafka.Hash{}, // same book, same partition
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	catalogReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       t.catalog,
		GroupID:     cfg.Kafka.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.LastOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        t.catalogDLQ,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	bus := newEventBus(ratingWriter, catalogReader, dlqWriter, validator, t, logger)
	bus.brokers = cfg.Kafka.Brokers
	return bus, nil
}

func newEventBus(ratingWriter messageWriter, catalogReader messageReader, dlqWriter messageWriter, validator *validation.SchemaValidator, t topics, logger *logrus.Logger) *EventBus {
	return &EventBus{
		ratingWriter:  ratingWriter,
		catalogReader: catalogReader,
		dlqWriter:     dlqWriter,
		validator:     validator,
		topics:        t,
		logger:        logger,
		maxRetries:    defaultMaxRetries,
		baseDelay:     defaultBaseDelay,
	}
}

// PublishRatingEvent validates the event against the rating-event schema and
// writes it keyed by book id.
func (b *EventBus) PublishRatingEvent(ctx context.Context, event models.RatingEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal rating event: %w", err)
	}

	if result := b.validator.ValidateRatingEvent(payload); !result.Valid {
		b.logger.WithField("event_id", event.EventID).Error("Rating event rejected by schema")
		return fmt.Errorf("invalid rating event: %w", result.Err())
	}

	msg := kafka.Message{
		Key:   []byte(event.BookID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "timestamp", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := b.ratingWriter.WriteMessages(ctx, msg); err != nil {
		b.logger.WithError(err).WithField("event_id", event.EventID).Error("Failed to publish rating event")
		return fmt.Errorf("failed to write rating event: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"event_id": event.EventID,
		"book_id":  event.BookID,
		"topic":    b.topics.ratings,
	}).Debug("Rating event published")

	return nil
}

// ConsumeCatalogEvents blocks until ctx is done or the reader is closed,
// handing each catalog event to handler. Offsets are committed once an event
// is applied or dead-lettered. An event that can be neither stops the
// consumer, since committing any later offset would skip it.
func (b *EventBus) ConsumeCatalogEvents(ctx context.Context, handler CatalogHandler) error {
	fetchFailures := 0
	for {
		msg, err := b.catalogReader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				b.logger.Info("Catalog event reader closed")
				return nil
			}
			fetchFailures++
			b.logger.WithError(err).WithField("failures", fetchFailures).Error("Failed to read catalog event")
			if err := b.sleep(ctx, fetchFailures); err != nil {
				return err
			}
			continue
		}
		fetchFailures = 0

		if err := b.handleMessage(ctx, msg, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.WithError(err).WithField("offset", msg.Offset).Error("Catalog event not settled, stopping consumer")
			return fmt.Errorf("catalog event at offset %d not settled: %w", msg.Offset, err)
		}

		if err := b.catalogReader.CommitMessages(ctx, msg); err != nil {
			b.logger.WithError(err).WithField("offset", msg.Offset).Error("Failed to commit catalog event")
		}
	}
}

// sleep waits baseDelay doubled per prior failure, capped at 2^maxRetries.
func (b *EventBus) sleep(ctx context.Context, failures int) error {
	shift := failures - 1
	if shift > b.maxRetries {
		shift = b.maxRetries
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.baseDelay * time.Duration(1<<uint(shift))):
		return nil
	}
}

// handleMessage returns an error only when the message could neither be
// applied nor dead-lettered.
func (b *EventBus) handleMessage(ctx context.Context, msg kafka.Message, handler CatalogHandler) error {
	if result := b.validator.ValidateCatalogEvent(msg.Value); !result.Valid {
		return b.sendToDLQ(ctx, msg, 0, fmt.Errorf("schema validation failed: %w", result.Err()))
	}

	var event models.CatalogEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return b.sendToDLQ(ctx, msg, 0, fmt.Errorf("failed to unmarshal catalog event: %w", err))
	}

	attempts, err := b.processWithRetry(ctx, event, handler)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return b.sendToDLQ(ctx, msg, attempts, err)
	}
	return nil
}

// processWithRetry gives up at once on invalid input, which no retry can fix.
func (b *EventBus) processWithRetry(ctx context.Context, event models.CatalogEvent, handler CatalogHandler) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			b.logger.WithFields(logrus.Fields{
				"event_id": event.EventID,
				"attempt":  attempt,
			}).Info("Retrying catalog event")

			if err := b.sleep(ctx, attempt); err != nil {
				return attempt, err
			}
		}

		if lastErr = handler(ctx, event); lastErr == nil {
			return attempt + 1, nil
		}

		b.logger.WithError(lastErr).WithFields(logrus.Fields{
			"event_id": event.EventID,
			"type":     event.Type,
			"attempt":  attempt,
		}).Warn("Catalog event handling failed")

		if errors.Is(lastErr, services.ErrInvalidInput) {
			return attempt + 1, lastErr
		}
	}

	return b.maxRetries + 1, fmt.Errorf("max retries exceeded: %w", lastErr)
}

type deadLetter struct {
	OriginalTopic string          `json:"original_topic"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	RawPayload    string          `json:"raw_payload,omitempty"`
	Error         string          `json:"error"`
	Attempts      int             `json:"attempts"`
	DeadAt        time.Time       `json:"dead_at"`
}

func (b *EventBus) sendToDLQ(ctx context.Context, msg kafka.Message, attempts int, cause error) error {
	letter := deadLetter{
		OriginalTopic: b.topics.catalog,
		Error:         cause.Error(),
		Attempts:      attempts,
		DeadAt:        time.Now().UTC(),
	}
	if json.Valid(msg.Value) {
		letter.Payload = msg.Value
	} else {
		letter.RawPayload = string(msg.Value)
	}

	payload, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: payload,
		Headers: []kafka.Header{
			{Key: "original_topic", Value: []byte(b.topics.catalog)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	}
	for attempt := 0; ; attempt++ {
		err = b.dlqWriter.WriteMessages(ctx, dlqMsg)
		if err == nil {
			break
		}
		if attempt >= b.maxRetries {
			return fmt.Errorf("failed to write message to DLQ: %w", err)
		}
		b.logger.WithError(err).WithField("attempt", attempt).Warn("DLQ write failed, retrying")
		if err := b.sleep(ctx, attempt+1); err != nil {
			return err
		}
	}

	b.logger.WithFields(logrus.Fields{
		"offset":   msg.Offset,
		"attempts": attempts,
		"error":    cause.Error(),
	}).Warn("Catalog event sent to DLQ")

	return nil
}

// Ping checks that at least one broker answers.
func (b *EventBus) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range b.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	if lastErr != nil {
		return fmt.Errorf("kafka unreachable: %w", lastErr)
	}
	return nil
}

func (b *EventBus) Close() error {
	var errs []error

	if err := b.ratingWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close rating writer: %w", err))
	}
	if err := b.catalogReader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close catalog reader: %w", err))
	}
	if err := b.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close DLQ writer: %w", err))
	}

	return errors.Join(errs...)
}

// GetMetrics reports consumer-side counters.
func (b *EventBus) GetMetrics() map[string]interface{} {
	stats := b.catalogReader.Stats()
	return map[string]interface{}{
		"consumer_lag":    stats.Lag,
		"consumer_offset": stats.Offset,
		"messages_read":   stats.Messages,
		"bytes_read":      stats.Bytes,
		"rebalances":      stats.Rebalances,
		"timeouts":        stats.Timeouts,
		"errors":          stats.Errors,
	}
}
