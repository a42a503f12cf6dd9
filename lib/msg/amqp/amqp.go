// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ)
package amqp

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"

	"github.com/byzantinelab/gateway/lib/log"
	"github.com/byzantinelab/gateway/lib/msg"
)

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection

	mu sync.Mutex // guards ch
	ch *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (*Amqp, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, errors.WithMessage(err, "cannot connect to AMQP broker")
	}

	log.Logger.Infof("Connected to AMQP broker")

	return &Amqp{conn: conn}, nil
}

// Setup obtains an amqp channel and declares the durable topic exchange "ge" ("gateway events") the events are
// published to.
func (r *Amqp) Setup() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch == nil {
		ch, err := r.conn.Channel()
		if err != nil {
			return errors.WithMessage(err, "cannot open AMQP channel")
		}

		r.ch = ch
	}

	return r.ch.ExchangeDeclare(msg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil)
}

// Close terminates gracefully the connection to the AMQP message broker
func (r *Amqp) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Logger.Warnf("Error closing amqp.Channel: %v", err)
		}

		r.ch = nil
	}

	return r.conn.Close()
}

// SendEvent publishes an event to the "ge" exchange with the given routing key.
func (r *Amqp) SendEvent(key string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch == nil {
		return msg.ErrNotSetup
	}

	p := amqp.Publishing{
		Headers:     amqp.Table{"x-event-name": key},
		Body:        body,
		ContentType: "application/json",
	}

	if err := r.ch.Publish(msg.Exchange, key, false, false, p); err != nil {
		return errors.WithMessagef(err, "cannot publish event %s", key)
	}

	return nil
}
