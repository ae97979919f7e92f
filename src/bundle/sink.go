package bundle

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Sink receives bundles.
type Sink interface {
	Publish(ctx context.Context, bundles []Bundle) error
}

// LogSink writes a summary line per bundle.
type LogSink struct {
	logger *logrus.Entry
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *logrus.Entry) *LogSink {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}
	return &LogSink{logger: logger}
}

// Publish implements Sink.
func (s *LogSink) Publish(ctx context.Context, bundles []Bundle) error {
	for _, b := range bundles {
		if err := ctx.Err(); err != nil {
			return err
		}

		fields := logrus.Fields{
			"index": b.Index,
			"size":  len(b.Transactions),
		}
		if len(b.Transactions) > 0 {
			fields["first"] = b.Transactions[0].ID
			fields["from"] = b.Transactions[0].Timestamp
			fields["to"] = b.Transactions[len(b.Transactions)-1].Timestamp
		}
		s.logger.WithFields(fields).Info("Bundle")
	}
	return nil
}

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes one JSON message per bundle, keyed by bundle index.
type KafkaSink struct {
	writer MessageWriter
	logger *logrus.Entry
}

// NewKafkaWriter returns a synchronous writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// NewKafkaSink creates a KafkaSink writing through w.
func NewKafkaSink(w MessageWriter, logger *logrus.Entry) *KafkaSink {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}
	return &KafkaSink{
		writer: w,
		logger: logger,
	}
}

// Publish implements Sink. All bundles go out in a single batch.
func (s *KafkaSink) Publish(ctx context.Context, bundles []Bundle) error {
	if len(bundles) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(bundles))
	for _, b := range bundles {
		value, err := json.Marshal(b)
		if err != nil {
			return errors.Wrapf(err, "encoding bundle %d", b.Index)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.Itoa(b.Index)),
			Value: value,
		})
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, "publishing bundles")
	}

	s.logger.WithField("bundles", len(bundles)).Debug("Published bundles")

	return nil
}

// Close closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
