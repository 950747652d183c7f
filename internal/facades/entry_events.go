package facades

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/sbilibin2017/romako-counter/internal/logger"
	"github.com/sbilibin2017/romako-counter/internal/models"
	"github.com/segmentio/kafka-go"
)

//go:generate mockgen -source=entry_events.go -destination=mock_entry_events.go -package=facades

// KafkaWriter is the subset of *kafka.Writer used to export entries.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error // Writes messages to Kafka
}

// EntryEventsKafkaFacade exports saved entries to a Kafka topic, keyed by entry id.
type EntryEventsKafkaFacade struct {
	writer KafkaWriter
}

// NewEntryEventsKafkaFacade creates a new facade over a Kafka writer.
func NewEntryEventsKafkaFacade(writer KafkaWriter) *EntryEventsKafkaFacade {
	return &EntryEventsKafkaFacade{writer: writer}
}

// NewKafkaWriter returns an async writer for topic. Delivery failures are logged.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Log.Errorw("failed to deliver entry events", "topic", topic, "messages", len(messages), "error", err)
			}
		},
	}
}

// PublishEntry writes entry as a models.EventEntryCreated message.
func (f *EntryEventsKafkaFacade) PublishEntry(ctx context.Context, entry models.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(entry.ID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(models.EventEntryCreated)},
		},
	}

	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("failed to publish entry to Kafka", "entryID", entry.ID, "error", err)
		return err
	}

	logger.Log.Debugw("entry published to Kafka", "entryID", entry.ID, "count", entry.Count)
	return nil
}
