package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	require.NoError(t, DebugConfig().Validate())

	assert.Error(t, (&Config{Level: "loud", Format: TextFormat}).Validate())
	assert.Error(t, (&Config{Level: InfoLevel, Format: "xml"}).Validate())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(&Config{Level: "loud", Format: TextFormat})
	require.Error(t, err)
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&Config{Level: DebugLevel, Format: JSONFormat, Output: &buf})
	require.NoError(t, err)

	log.WithFields(Fields{"session_id": "abc", "records": 4}).
		WithComponent("session").
		Info("session created")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "session created", entry["msg"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.Equal(t, "session", entry["component"])
	assert.Equal(t, float64(4), entry["records"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&Config{Level: ErrorLevel, Format: TextFormat, Output: &buf})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.WithError(errors.New("boom")).Error("visible")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "boom")
}

func TestGlobalReplacement(t *testing.T) {
	original := Global()
	defer SetGlobal(original)

	var buf bytes.Buffer
	log, err := New(&Config{Level: InfoLevel, Format: TextFormat, Output: &buf})
	require.NoError(t, err)

	SetGlobal(log)
	Global().Info("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&Config{Level: InfoLevel, Format: TextFormat, Output: &buf})
	require.NoError(t, err)

	tracker := NewProgressTracker(log, "matching", 3)
	tracker.Increment()
	tracker.Increment()
	tracker.Increment() // final unit always logs
	tracker.Finish()

	out := buf.String()
	assert.Contains(t, out, "matching")
	assert.Contains(t, out, "completed")
}
