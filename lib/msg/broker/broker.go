// Package broker selects the message broker implementation by type.
package broker

import (
	"github.com/pkg/errors"

	"github.com/byzantinelab/gateway/lib/msg"
	"github.com/byzantinelab/gateway/lib/msg/amqp"
	"github.com/byzantinelab/gateway/lib/msg/kafka"
)

// ErrUnknownType is returned for unsupported broker types.
var ErrUnknownType = errors.New("unknown message broker type")

// New returns a connected and set up message broker of type mbType ("amqp" or "kafka"). An empty type disables the
// broker bridge and returns a nil broker.
func New(mbType, conn string) (msg.MsgBroker, error) {
	var (
		mb  msg.MsgBroker
		err error
	)

	switch mbType {
	case "":
		return nil, nil
	case "amqp":
		mb, err = amqp.New(conn)
	case "kafka":
		mb, err = kafka.New(conn)
	default:
		return nil, errors.Wrap(ErrUnknownType, mbType)
	}

	if err != nil {
		return nil, err
	}

	if err = mb.Setup(); err != nil {
		mb.Close()

		return nil, errors.WithMessagef(err, "cannot set up %s broker", mbType)
	}

	return mb, nil
}
