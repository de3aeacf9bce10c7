package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Domenick1991/studiobooking/internal/domain"
)

type Consumer struct {
	reader *kafka.Reader
	log    *zap.Logger
}

func NewConsumer(brokers []string, groupID, topic string, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		log: log,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume reads until ctx is cancelled. Messages that are not booking events
// are logged and skipped. A handler error stops consumption.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, domain.BookingEvent) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		event, err := DecodeEvent(msg)
		if err != nil {
			c.log.Warn("skipping malformed event",
				zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}

		if err := handler(ctx, event); err != nil {
			return err
		}
	}
}

func DecodeEvent(msg kafka.Message) (domain.BookingEvent, error) {
	var event domain.BookingEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return domain.BookingEvent{}, err
	}
	if event.BookingID == "" {
		return domain.BookingEvent{}, errors.New("event without booking id")
	}
	return event, nil
}
