// Package kafka implements the message broker interface for Kafka clusters.
package kafka

import (
	"strings"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"github.com/byzantinelab/gateway/lib/log"
	"github.com/byzantinelab/gateway/lib/msg"
)

// Kafka publishes events to the "gateway-events" topic with a synchronous producer.
type Kafka struct {
	brokers []string
	config  *sarama.Config

	mu       sync.Mutex
	producer sarama.SyncProducer
}

// New returns a Kafka broker for the comma separated list of broker addresses in conn. The producer is created by
// Setup.
func New(conn string) (*Kafka, error) {
	var brokers []string

	for _, b := range strings.Split(conn, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers given")
	}

	return &Kafka{brokers: brokers, config: Config()}, nil
}

// NewWithProducer returns a Kafka broker publishing through an existing producer.
func NewWithProducer(p sarama.SyncProducer) *Kafka {
	return &Kafka{producer: p}
}

// Config returns the producer configuration used by the broker.
func Config() *sarama.Config {
	c := sarama.NewConfig()
	c.ClientID = "gateway"
	c.Producer.Return.Successes = true
	c.Producer.RequiredAcks = sarama.WaitForLocal
	c.Producer.Retry.Max = 3

	return c
}

// Setup connects the producer to the cluster.
func (k *Kafka) Setup() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.producer != nil {
		return nil
	}

	p, err := sarama.NewSyncProducer(k.brokers, k.config)
	if err != nil {
		return errors.WithMessagef(err, "cannot connect to kafka brokers %v", k.brokers)
	}

	k.producer = p

	log.Logger.Infof("Connected to kafka brokers %v", k.brokers)

	return nil
}

// SendEvent publishes the event to the "gateway-events" topic using key as the message key.
func (k *Kafka) SendEvent(key string, body []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.producer == nil {
		return msg.ErrNotSetup
	}

	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: msg.Topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return errors.WithMessagef(err, "cannot publish event %s", key)
	}

	log.Logger.Debugf("Event %s published to partition %d offset %d", key, partition, offset)

	return nil
}

// Close shuts down the producer.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.producer == nil {
		return nil
	}

	err := k.producer.Close()
	k.producer = nil

	return err
}
