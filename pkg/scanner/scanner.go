// Package scanner consumes card-scan messages from Kafka and feeds them
// into the table coordinator. Messages are keyed by table, so per-partition
// order is table order; processing is synchronous inside the claim loop to
// preserve it.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/decred/slog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/feltcraft/dealerd/pkg/cards"
	"github.com/feltcraft/dealerd/pkg/poker"
)

// Message is the wire format a table scanner publishes per card read.
type Message struct {
	Serial    string    `json:"serial"`
	Barcode   string    `json:"barcode"`
	ScannedAt time.Time `json:"scannedAt"`
}

// Sink receives decoded cards. The coordinator implements it.
type Sink interface {
	DealScannedCard(ctx context.Context, serial string, card cards.Card) error
}

// Config wires an Ingester.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
	Sink    Sink
	Log     slog.Logger

	// Results counts processed messages by outcome; nil disables counting.
	Results *prometheus.CounterVec

	// MaxRetries bounds redelivery to the sink on retryable store
	// failures before the message is dropped with an error log.
	MaxRetries int
}

// Ingester is the consumer-group loop.
type Ingester struct {
	group      sarama.ConsumerGroup
	topic      string
	sink       Sink
	log        slog.Logger
	results    *prometheus.CounterVec
	maxRetries int
}

// New connects the consumer group.
func New(cfg Config) (*Ingester, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &Ingester{
		group:      group,
		topic:      cfg.Topic,
		sink:       cfg.Sink,
		log:        cfg.Log,
		results:    cfg.Results,
		maxRetries: retries,
	}, nil
}

// Run consumes until ctx is cancelled. Consume returns on every rebalance;
// the loop just re-enters it.
func (i *Ingester) Run(ctx context.Context) error {
	go func() {
		for err := range i.group.Errors() {
			i.log.Errorf("Consumer group error: %v", err)
		}
	}()
	for {
		if err := i.group.Consume(ctx, []string{i.topic}, i); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			i.log.Errorf("Consume failed: %v", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close shuts the group down.
func (i *Ingester) Close() error {
	return i.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (i *Ingester) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (i *Ingester) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim processes one partition's messages in order. Every message
// is marked consumed whatever its outcome: a scan that failed for a domain
// reason (duplicate card, wrong state, unknown device) will fail the same
// way on redelivery, so parking it would only wedge the partition.
func (i *Ingester) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		i.count(i.process(session.Context(), msg))
		session.MarkMessage(msg, "")
	}
	return nil
}

func (i *Ingester) count(result string) {
	if i.results != nil {
		i.results.WithLabelValues(result).Inc()
	}
}

func (i *Ingester) process(ctx context.Context, msg *sarama.ConsumerMessage) string {
	var m Message
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		i.log.Warnf("Dropping malformed scan message at %s/%d/%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
		return "malformed"
	}
	card, err := cards.DecodeBarcode(m.Barcode)
	if err != nil {
		i.log.Warnf("Dropping scan with bad barcode %q from device %s: %v", m.Barcode, m.Serial, err)
		return "invalid_barcode"
	}

	for attempt := 0; ; attempt++ {
		err = i.sink.DealScannedCard(ctx, m.Serial, card)
		if err == nil {
			return "applied"
		}
		if poker.Retryable(err) && attempt < i.maxRetries {
			continue
		}
		break
	}

	switch poker.KindOf(err) {
	case poker.KindDuplicateCard:
		i.log.Warnf("Duplicate card %s scanned by device %s", card, m.Serial)
		return "duplicate"
	case poker.KindInvalidState, poker.KindDeviceMisconfigured, poker.KindNotFound:
		i.log.Warnf("Rejected scan of %s from device %s: %v", card, m.Serial, err)
		return "rejected"
	default:
		i.log.Errorf("Failed to apply scan of %s from device %s: %v", card, m.Serial, err)
		return "error"
	}
}
