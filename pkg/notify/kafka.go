package notify

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/decred/slog"
)

// KafkaNotifier publishes table-updated pokes to a Kafka topic. Messages
// are keyed by table id so all pokes for one table land on one partition
// in order.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	log      slog.Logger
}

// kafkaPoke is the published message body.
type kafkaPoke struct {
	TableID   string    `json:"tableId"`
	Timestamp time.Time `json:"timestamp"`
}

// NewKafkaNotifier connects a synchronous producer to the brokers.
func NewKafkaNotifier(brokers []string, topic string, log slog.Logger) (*KafkaNotifier, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &KafkaNotifier{producer: producer, topic: topic, log: log}, nil
}

func (n *KafkaNotifier) TableUpdated(tableID string) {
	raw, err := json.Marshal(kafkaPoke{TableID: tableID, Timestamp: time.Now().UTC()})
	if err != nil {
		n.log.Errorf("Failed to marshal poke for table %s: %v", tableID, err)
		return
	}
	_, _, err = n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(tableID),
		Value: sarama.ByteEncoder(raw),
	})
	if err != nil {
		n.log.Errorf("Failed to publish poke for table %s: %v", tableID, err)
	}
}

// Close shuts the producer down.
func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
