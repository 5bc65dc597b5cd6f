package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muandane/special-stack/jobcache/internal/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "key", "jobs:1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "jobs:1", line["key"])
}

func TestNewErrors(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New(config.LogConfig{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
