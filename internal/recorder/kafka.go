package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"CycleLedger/internal/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRecorder publishes events as JSON, keyed by project so a project's
// events stay ordered within one partition.
type KafkaRecorder struct {
	w       messageWriter
	timeout time.Duration
	log     *logrus.Entry
}

// NewKafkaRecorder writes to topic on the given brokers.
func NewKafkaRecorder(brokers []string, topic string, log *logrus.Entry) *KafkaRecorder {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	log.WithFields(logrus.Fields{"brokers": brokers, "topic": topic}).Info("kafka recorder configured")
	return &KafkaRecorder{w: w, timeout: 10 * time.Second, log: log}
}

func (k *KafkaRecorder) Record(evt *model.Event) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(evt.ProjectID, 10)),
		Value: b,
		Time:  evt.Timestamp,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(evt.Kind)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", evt.ID, err)
	}
	return nil
}

func (k *KafkaRecorder) Close() error {
	k.log.Info("closing kafka recorder")
	return k.w.Close()
}
