package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"auctionhouse/internal/logger"
)

// KafkaNotifier publishes notification events to a Kafka topic. The push
// delivery service consumes the topic and fans out to device tokens; from
// this service's point of view delivery ends at the broker.
type KafkaNotifier struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

type notificationEvent struct {
	UserID       string       `json:"user_id"`
	Notification Notification `json:"notification"`
}

func NewKafkaNotifier(brokers []string, topic string, log *logger.Logger) *KafkaNotifier {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &KafkaNotifier{Writer: writer, Logger: log}
}

func (k *KafkaNotifier) Notify(ctx context.Context, userID string, n Notification) bool {
	event := notificationEvent{UserID: userID, Notification: n}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		k.Logger.Error("NOTIFY", fmt.Sprintf("Failed to marshal notification for user %s: %v", userID, err))
		return false
	}

	err = k.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(userID),
		Value: msgBytes,
	})
	if err != nil {
		k.Logger.Error("NOTIFY", fmt.Sprintf("Failed to publish notification for user %s: %v", userID, err))
		return false
	}

	k.Logger.Info("NOTIFY", fmt.Sprintf("Queued %s notification for user %s", n.Data["type"], userID))
	return true
}

func (k *KafkaNotifier) Close() error {
	return k.Writer.Close()
}
