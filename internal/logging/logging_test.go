package logging

import (
	"bytes"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]logiface.Level{
		"":        logiface.LevelInformational,
		"INFO":    logiface.LevelInformational,
		"warn":    logiface.LevelWarning,
		"error":   logiface.LevelError,
		"debug":   logiface.LevelDebug,
		"off":     logiface.LevelDisabled,
		" trace ": logiface.LevelTrace,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNew_WritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(&buf, logiface.LevelInformational), "executor")

	logger.Debug().Log("hidden")
	logger.Info().Int("n", 3).Log("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"visible"`)
	assert.Contains(t, out, `"component":"executor"`)
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *logiface.Logger[logiface.Event]
	assert.NotPanics(t, func() {
		logger.Info().Str("k", "v").Log("dropped")
		Component(logger, "x").Err().Log("dropped")
	})
}
