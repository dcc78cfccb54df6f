package journal

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"github.com/yanun0323/logs"

	"marketmaker/internal/errors"
	"marketmaker/pkg/exception"
)

// LogSink writes each record as one JSON log line.
type LogSink struct{}

func (LogSink) Write(_ context.Context, rec Record) error {
	payload, err := sonic.Marshal(rec)
	if err != nil {
		return err
	}
	logs.Infof("journal %s", payload)
	return nil
}

func (LogSink) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes records keyed by symbol so a topic partition keeps tick order.
type KafkaSink struct {
	writer messageWriter
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.Wrap(exception.ErrInvalidConfig, "kafka brokers and topic are required")
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}, nil
}

func (s *KafkaSink) Write(ctx context.Context, rec Record) error {
	payload, err := sonic.Marshal(rec)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.Symbol),
		Value: payload,
		Time:  rec.Time,
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
