package protocol

// Bridge execution statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BridgeRequest is the fixed JSON request sent to the CRM operation
// service for a single tool invocation.
type BridgeRequest struct {
	// Tool is the operation name.
	Tool string `json:"tool"`
	// Arguments are the resolved operation arguments.
	Arguments map[string]any `json:"arguments"`
	// CorrelationID links the invocation to its pipeline or batch run.
	CorrelationID string `json:"correlation_id,omitempty"`
	// TimeoutSec tells the service how much of the caller's budget remains.
	TimeoutSec int `json:"timeout_sec,omitempty"`
}

// BridgeResponse is the fixed JSON response expected from the CRM
// operation service.
type BridgeResponse struct {
	// Status is "success" or "error".
	Status string `json:"status"`
	// Result carries the operation payload on success.
	Result any `json:"result,omitempty"`
	// Error is a human-readable message on failure.
	Error string `json:"error,omitempty"`
	// ValidationErrors lists argument problems the agent can self-correct.
	ValidationErrors []string `json:"validation_errors,omitempty"`
}
