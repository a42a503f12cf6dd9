package broker

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestNewDisabled(t *testing.T) {
	mb, err := New("", "whatever")
	assert.NoError(t, err)
	assert.Nil(t, mb)
}

func TestNewUnknown(t *testing.T) {
	mb, err := New("nats", "nats://localhost:4222")
	assert.Nil(t, mb)
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestNewKafkaNoBrokers(t *testing.T) {
	mb, err := New("kafka", "")
	assert.Nil(t, mb)
	assert.Error(t, err)
}
