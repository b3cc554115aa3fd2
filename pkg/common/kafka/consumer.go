package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/synaptica-ai/patho-fhir/pkg/common/logger"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader    messageReader
	topic     string
	retryBase time.Duration
	retryMax  time.Duration
}

// MessageHandler processes one fetched message. Returning nil commits the
// offset; returning an error redelivers the same message after a backoff.
// The consumer never moves past a message its handler has not accepted.
type MessageHandler func(ctx context.Context, message kafka.Message) error

func NewConsumer(brokers []string, topic string, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{
		reader:    reader,
		topic:     topic,
		retryBase: 500 * time.Millisecond,
		retryMax:  30 * time.Second,
	}
}

func (c *Consumer) Topic() string {
	return c.topic
}

func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			message, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return ctx.Err()
				}
				logger.Log.WithError(err).WithField("topic", c.topic).Error("Failed to fetch message")
				continue
			}

			if err := c.handle(ctx, handler, message); err != nil {
				return err
			}

			if err := c.reader.CommitMessages(ctx, message); err != nil {
				logger.Log.WithError(err).WithField("topic", c.topic).Error("Failed to commit message")
			}
		}
	}
}

// handle runs the handler until it accepts the message or ctx is done.
func (c *Consumer) handle(ctx context.Context, handler MessageHandler, message kafka.Message) error {
	delay := c.retryBase
	for attempt := 1; ; attempt++ {
		err := handler(ctx, message)
		if err == nil {
			return nil
		}
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"topic":     c.topic,
			"partition": message.Partition,
			"offset":    message.Offset,
			"attempt":   attempt,
			"retry_in":  delay.String(),
		}).Error("Failed to process message")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.retryMax {
			delay = c.retryMax
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
