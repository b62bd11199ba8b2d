package log_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadstack/crm-mcp-server/internal/log"
)

func TestNewWithWriterLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("visible", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestNewWithWriterDefaultsToInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := log.NewWithWriter(&buf, "nonsense")

	logger.Debug("hidden")
	assert.Empty(t, buf.Bytes())

	logger.Info("shown")
	assert.NotEmpty(t, buf.Bytes())
}
