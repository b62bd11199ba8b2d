package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leadstack/crm-mcp-server/internal/security"
)

func TestRedactArguments(t *testing.T) {
	t.Parallel()

	redacted := security.RedactArguments(map[string]any{
		"api_key":     "sk-123",
		"contactId":   "c1",
		"secret_name": "prod-creds",
	})

	assert.Equal(t, "***", redacted["api_key"])
	assert.Equal(t, "c1", redacted["contactId"])
	assert.Equal(t, "prod-creds", redacted["secret_name"], "secret names stay readable")
}

func TestRedactValueWalksContainers(t *testing.T) {
	t.Parallel()

	redacted := security.RedactValue(map[string]any{
		"steps": []any{
			map[string]any{"args": map[string]any{"password": "hunter2", "q": "vip"}},
		},
	})

	steps := redacted.(map[string]any)["steps"].([]any)
	args := steps[0].(map[string]any)["args"].(map[string]any)
	assert.Equal(t, "***", args["password"])
	assert.Equal(t, "vip", args["q"])
}
