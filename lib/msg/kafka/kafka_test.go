package kafka

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byzantinelab/gateway/lib/msg"
)

func TestNew(t *testing.T) {
	var tests = []struct {
		conn    string
		brokers []string
		err     bool
	}{
		{"localhost:9092", []string{"localhost:9092"}, false},
		{"k1:9092, k2:9092,", []string{"k1:9092", "k2:9092"}, false},
		{"", nil, true},
		{" , ", nil, true},
	}

	for _, tt := range tests {
		k, err := New(tt.conn)
		if tt.err {
			assert.Error(t, err, tt.conn)

			continue
		}

		require.NoError(t, err, tt.conn)
		assert.Equal(t, tt.brokers, k.brokers)
		assert.True(t, k.config.Producer.Return.Successes)
	}
}

func TestSendEvent(t *testing.T) {
	p := mocks.NewSyncProducer(t, Config())
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"type":"block"}` {
			return errors.Errorf("unexpected body %s", val)
		}

		return nil
	})
	p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := NewWithProducer(p)
	require.NoError(t, k.Setup())

	assert.NoError(t, k.SendEvent("block.mychannel", []byte(`{"type":"block"}`)))

	err := k.SendEvent("block.mychannel", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, sarama.ErrOutOfBrokers, errors.Cause(err))

	assert.NoError(t, k.Close())
	assert.Equal(t, msg.ErrNotSetup, k.SendEvent("block.mychannel", nil))
	assert.NoError(t, k.Close())
}
