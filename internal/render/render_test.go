package render_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadstack/crm-mcp-server/internal/render"
)

func TestBytesExpandsEnv(t *testing.T) {
	t.Setenv("BRIDGE_URL", "http://crm:9090/execute")

	out, err := render.Bytes("config", []byte(`url: {{ env "BRIDGE_URL" }}`))
	require.NoError(t, err)
	assert.Equal(t, "url: http://crm:9090/execute", string(out))
}

func TestBytesReportsMissingEnv(t *testing.T) {
	t.Parallel()

	_, err := render.Bytes("config", []byte(`url: {{ env "RENDER_TEST_UNSET_VAR" }}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing env vars: RENDER_TEST_UNSET_VAR")
}

func TestBytesEnvOrFallsBack(t *testing.T) {
	t.Parallel()

	out, err := render.Bytes("config", []byte(`listen: {{ envOr "RENDER_TEST_UNSET_VAR" ":8080" }}`))
	require.NoError(t, err)
	assert.Equal(t, "listen: :8080", string(out))
}
