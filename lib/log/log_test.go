package log

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in  string
		exp zapcore.Level
		err bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"TRACE", zapcore.DebugLevel, false},
		{"", zapcore.InfoLevel, false},
		{" Info ", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, c := range cases {
		l, err := ParseLevel(c.in)
		if c.err {
			assert.True(t, errors.Is(err, ErrBadLevel), "level %q", c.in)
			continue
		}

		assert.NoError(t, err, "level %q", c.in)
		assert.Equal(t, c.exp, l, "level %q", c.in)
	}
}

func TestSetLevel(t *testing.T) {
	defer func() { _ = SetLevel("info") }()

	require.NoError(t, InitLogger("debug"))
	assert.Equal(t, zapcore.DebugLevel, Level())

	require.NoError(t, SetLevel("error"))
	assert.Equal(t, zapcore.ErrorLevel, Level())
	assert.False(t, Logger.Desugar().Core().Enabled(zapcore.InfoLevel))

	assert.Error(t, SetLevel("nope"))
	assert.Equal(t, zapcore.ErrorLevel, Level())
}
