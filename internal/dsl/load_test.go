package dsl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadstack/crm-mcp-server/internal/dsl"
)

const minimalConfig = `
server:
  name: crm-mcp-server
  version: "1.0.0"
executor:
  url: http://localhost:9090/execute
`

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := dsl.Load([]byte(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Server.Transport)
	assert.Equal(t, ":8080", cfg.Server.HTTP.Listen)
	assert.Equal(t, "/mcp", cfg.Server.HTTP.Path)
	assert.Equal(t, 100, cfg.Quota.MaxTokens)
	assert.Equal(t, 10.0, cfg.Quota.RefillTokens)
	assert.Equal(t, "1s", cfg.Quota.RefillInterval)
	assert.Equal(t, "POST", cfg.Executor.Method)
	assert.Equal(t, "30s", cfg.Executor.Timeout)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := dsl.Load([]byte(minimalConfig + "\nsurprise: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse yaml")
}

func TestLoadRequiredFields(t *testing.T) {
	t.Parallel()

	_, err := dsl.Load([]byte("server:\n  version: \"1.0.0\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.name is required")

	_, err = dsl.Load([]byte("server:\n  name: x\n  version: \"1\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executor.url is required")
}

func TestLoadValidatesRanges(t *testing.T) {
	t.Parallel()

	_, err := dsl.Load([]byte(minimalConfig + "quota:\n  max_tokens: -5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota.max_tokens must be >= 1")

	_, err = dsl.Load([]byte(minimalConfig + "quota:\n  refill_interval: soon\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota.refill_interval is invalid")
}

func TestLoadValidatesExecutor(t *testing.T) {
	t.Parallel()

	_, err := dsl.Load([]byte(`
server:
  name: crm-mcp-server
  version: "1.0.0"
executor:
  type: grpc
  url: http://localhost:9090/execute
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executor.type must be http")

	_, err = dsl.Load([]byte(`
server:
  name: crm-mcp-server
  version: "1.0.0"
executor:
  url: not-a-url
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executor.url must be absolute")
}

func TestLoadIdempotencyDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := dsl.Load([]byte(`
server:
  name: crm-mcp-server
  version: "1.0.0"
  idempotency_cache:
    enabled: true
executor:
  url: http://localhost:9090/execute
`))
	require.NoError(t, err)
	assert.Equal(t, "1h", cfg.Server.Idempotency.TTL)
	assert.Equal(t, 1000, cfg.Server.Idempotency.MaxEntries)
}
