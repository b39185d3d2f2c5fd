package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Service: "referral-bot", Env: "test"})

	logger.Info("bonus claimed", "user_id", int64(42))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "bonus claimed", line["message"])
	assert.Equal(t, "INFO", line["severity"])
	assert.Equal(t, "referral-bot", line["service"])
	assert.Equal(t, "test", line["env"])
	assert.EqualValues(t, 42, line["user_id"])
	assert.Contains(t, line, "timestamp")
}

func TestStdLogIsBridged(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{Service: "referral-bot"})

	log.Printf("legacy %d", 7)

	out := buf.String()
	assert.True(t, strings.Contains(out, `"message":"legacy 7"`), out)
	assert.NotContains(t, out, `"env"`)
}
