// Package msg defines the interface for the message brokers that gateway events are bridged to.
//
package msg

import "errors"

// Exchange (AMQP) or topic (Kafka) the gateway events are published to.
const (
	Exchange = "ge"
	Topic    = "gateway-events"
)

// ErrNotSetup is returned when publishing on a broker whose Setup has not been called.
var ErrNotSetup = errors.New("message broker not set up")

// MsgBroker publishes gateway events to a message broker. The key routes the event (ie. "block.mychannel") and body
// holds its JSON encoding.
type MsgBroker interface {
	Setup() error
	SendEvent(key string, body []byte) error
	Close() error
}
