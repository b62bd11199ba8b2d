package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadstack/crm-mcp-server/internal/dsl"
	"github.com/leadstack/crm-mcp-server/internal/executor"
	"github.com/leadstack/crm-mcp-server/internal/runtime"
)

func TestNewExecutor(t *testing.T) {
	t.Parallel()

	exec, err := runtime.NewExecutor(dsl.ExecutorConfig{
		Type:    "http",
		URL:     "http://localhost:9090/execute",
		Method:  "POST",
		Timeout: "30s",
	})
	require.NoError(t, err)
	assert.IsType(t, executor.HTTP{}, exec)

	_, err = runtime.NewExecutor(dsl.ExecutorConfig{Type: "grpc", Timeout: "30s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown executor type")
}

func TestNewLimiter(t *testing.T) {
	t.Parallel()

	limiter, err := runtime.NewLimiter(dsl.QuotaConfig{
		MaxTokens:      100,
		RefillTokens:   10,
		RefillInterval: "1s",
	})
	require.NoError(t, err)
	assert.Equal(t, 100, limiter.MaxTokens())

	_, err = runtime.NewLimiter(dsl.QuotaConfig{RefillInterval: "often"})
	assert.Error(t, err)
}

func TestBuildRegistersTools(t *testing.T) {
	t.Parallel()

	exec, err := runtime.NewExecutor(dsl.ExecutorConfig{
		Type:    "http",
		URL:     "http://localhost:9090/execute",
		Timeout: "30s",
	})
	require.NoError(t, err)

	server, err := runtime.Builder{Exec: exec}.Build(&dsl.Config{
		Server: dsl.ServerConfig{Name: "crm-mcp-server", Version: "1.0.0"},
	})
	require.NoError(t, err)
	assert.NotNil(t, server)

	_, err = runtime.Builder{}.Build(&dsl.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executor is nil")
}
