package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leadstack/crm-mcp-server/internal/protocol"
)

// HTTP forwards tool invocations to the CRM operation service as JSON
// and maps its reply onto an Outcome. Transport failures and non-2xx
// statuses become execution failures, never panics or Go errors, so a
// flaky upstream degrades to per-step/per-item errors.
type HTTP struct {
	// URL is the operation service endpoint.
	URL string
	// Method overrides the HTTP method (default POST).
	Method string
	// Headers adds HTTP headers to every request.
	Headers map[string]string
	// Timeout is the HTTP client timeout.
	Timeout time.Duration
	// CorrelationID is attached to every forwarded invocation.
	CorrelationID string
}

// Execute sends the invocation and parses the bridge response.
func (h HTTP) Execute(ctx context.Context, tool string, args map[string]any) Outcome {
	if strings.TrimSpace(h.URL) == "" {
		return failure("executor url is empty")
	}

	timeoutSec := 0
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining > 0 {
			timeoutSec = int(remaining.Seconds())
			if timeoutSec < 1 {
				timeoutSec = 1
			}
		}
	}

	payload := protocol.BridgeRequest{
		Tool:          tool,
		Arguments:     args,
		CorrelationID: h.CorrelationID,
		TimeoutSec:    timeoutSec,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return failure(fmt.Sprintf("failed to encode request: %v", err))
	}

	method := strings.ToUpper(strings.TrimSpace(h.Method))
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, h.URL, bytes.NewReader(body))
	if err != nil {
		return failure(fmt.Sprintf("failed to build request: %v", err))
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range h.Headers {
		request.Header.Set(key, value)
	}

	clientTimeout := h.Timeout
	if clientTimeout <= 0 {
		clientTimeout = 30 * time.Second
	}
	client := &http.Client{Timeout: clientTimeout}

	resp, err := client.Do(request)
	if err != nil {
		return failure(fmt.Sprintf("executor request failed: %v", err))
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failure(fmt.Sprintf("executor status %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var parsed protocol.BridgeResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return failure(fmt.Sprintf("invalid executor response: %v", err))
	}

	switch strings.ToLower(strings.TrimSpace(parsed.Status)) {
	case protocol.StatusSuccess:
		return Outcome{Success: true, Result: parsed.Result}
	case protocol.StatusError:
		message := parsed.Error
		if strings.TrimSpace(message) == "" {
			message = "executor error"
		}
		return Outcome{Success: false, Error: message, ValidationErrors: parsed.ValidationErrors}
	default:
		return failure(fmt.Sprintf("unknown executor status: %s", parsed.Status))
	}
}

func failure(message string) Outcome {
	return Outcome{Success: false, Error: message}
}
