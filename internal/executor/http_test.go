package executor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadstack/crm-mcp-server/internal/executor"
	"github.com/leadstack/crm-mcp-server/internal/protocol"
)

func TestHTTPExecuteSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req protocol.BridgeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "search_contacts", req.Tool)
		assert.Equal(t, "vip", req.Arguments["q"])

		json.NewEncoder(w).Encode(protocol.BridgeResponse{
			Status: protocol.StatusSuccess,
			Result: map[string]any{"id": "c1"},
		})
	}))
	defer server.Close()

	bridge := executor.HTTP{URL: server.URL}
	out := bridge.Execute(context.Background(), "search_contacts", map[string]any{"q": "vip"})

	require.True(t, out.Success)
	assert.Equal(t, map[string]any{"id": "c1"}, out.Result)
}

func TestHTTPExecuteError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(protocol.BridgeResponse{
			Status:           protocol.StatusError,
			Error:            "contact not found",
			ValidationErrors: []string{"contactId: unknown id"},
		})
	}))
	defer server.Close()

	bridge := executor.HTTP{URL: server.URL}
	out := bridge.Execute(context.Background(), "send_sms", nil)

	require.False(t, out.Success)
	assert.Equal(t, "contact not found", out.Error)
	assert.Equal(t, []string{"contactId: unknown id"}, out.ValidationErrors)
}

func TestHTTPExecuteBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	bridge := executor.HTTP{URL: server.URL}
	out := bridge.Execute(context.Background(), "x", nil)

	require.False(t, out.Success)
	assert.Contains(t, out.Error, "executor status 502")
}

func TestHTTPExecuteEmptyURL(t *testing.T) {
	t.Parallel()

	out := executor.HTTP{}.Execute(context.Background(), "x", nil)
	require.False(t, out.Success)
	assert.Contains(t, out.Error, "url is empty")
}
