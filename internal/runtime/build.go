// Package runtime assembles the MCP server: it wires the engine, the
// shared rate limiter, the bridge executor, auditing, and the optional
// idempotency cache, and registers the orchestration tools.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/leadstack/crm-mcp-server/internal/audit"
	"github.com/leadstack/crm-mcp-server/internal/dsl"
	"github.com/leadstack/crm-mcp-server/internal/engine/batch"
	"github.com/leadstack/crm-mcp-server/internal/engine/pipeline"
	"github.com/leadstack/crm-mcp-server/internal/engine/ratelimit"
	"github.com/leadstack/crm-mcp-server/internal/executor"
	"github.com/leadstack/crm-mcp-server/internal/idempotency"
	"github.com/leadstack/crm-mcp-server/internal/security"
)

const pipelineToolDescription = "Execute a multi-step CRM pipeline. Steps run in order and can " +
	"reference earlier results with {{step_id.path}} tokens; a step with " +
	"loop fans out over an array with {{item}}/{{index}} bound. Returns " +
	"per-step results even on failure."

const batchToolDescription = "Apply one CRM operation to many argument objects under bounded " +
	"concurrency, with optional retries and stop-on-error. Returns a " +
	"summary or a full per-item report in input order."

// Builder constructs an MCP server from the DSL config.
type Builder struct {
	// Logger is used for structured logging.
	Logger *slog.Logger
	// Audit records run, step, and item events.
	Audit audit.Logger
	// Exec performs the concrete CRM operations.
	Exec executor.ToolExecutor
	// Limiter is the shared external-API token bucket.
	Limiter *ratelimit.Limiter
	// Cache stores pipeline responses for idempotent retries.
	Cache *idempotency.Cache
}

// NewExecutor builds the concrete tool executor from config.
func NewExecutor(cfg dsl.ExecutorConfig) (executor.ToolExecutor, error) {
	if !strings.EqualFold(cfg.Type, "http") {
		return nil, fmt.Errorf("unknown executor type: %s", cfg.Type)
	}
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("executor timeout: %w", err)
	}
	return executor.HTTP{
		URL:     cfg.URL,
		Method:  cfg.Method,
		Headers: cfg.Headers,
		Timeout: timeout,
	}, nil
}

// NewLimiter builds the shared token bucket from the quota config.
func NewLimiter(cfg dsl.QuotaConfig) (*ratelimit.Limiter, error) {
	interval, err := time.ParseDuration(cfg.RefillInterval)
	if err != nil {
		return nil, fmt.Errorf("quota refill interval: %w", err)
	}
	return ratelimit.New(cfg.MaxTokens, cfg.RefillTokens, interval), nil
}

// Build creates an MCP server exposing the orchestration tools.
func (b Builder) Build(cfg *dsl.Config) (*mcp.Server, error) {
	if b.Exec == nil {
		return nil, fmt.Errorf("executor is nil")
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
	}, nil)

	b.addPipelineTool(server)
	b.addBatchTool(server)

	return server, nil
}

func (b Builder) addPipelineTool(server *mcp.Server) {
	runner := pipeline.Executor{
		Exec:    b.Exec,
		Limiter: b.Limiter,
		Logger:  b.Logger,
		Audit:   b.Audit,
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "execute_pipeline",
		Description: pipelineToolDescription,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input pipeline.Request) (*mcp.CallToolResult, pipeline.Result, error) {
		if b.Logger != nil {
			b.Logger.Info("tool call",
				"tool", "execute_pipeline",
				"steps", len(input.Steps),
				"request", security.RedactValue(requestSummary(input)),
			)
		}
		return nil, b.runPipeline(ctx, runner, input), nil
	})
}

// runPipeline serves one execute_pipeline call: cached response when the
// request was seen before, engine run otherwise, cache fill on success.
// A request whose cache key cannot be built always runs.
func (b Builder) runPipeline(ctx context.Context, runner pipeline.Executor, input pipeline.Request) pipeline.Result {
	cacheKey := ""
	if b.Cache != nil {
		key, err := idempotency.Key("execute_pipeline", input)
		if err != nil {
			if b.Logger != nil {
				b.Logger.Warn("cache key build failed", "error", err)
			}
		} else {
			cacheKey = key
		}
	}

	if cacheKey != "" {
		if cached, ok := b.Cache.Get(cacheKey); ok {
			if b.Logger != nil {
				b.Logger.Info("pipeline cache hit")
			}
			return cached
		}
	}

	result := runner.Execute(ctx, input)

	if cacheKey != "" && result.Success {
		b.Cache.Set(cacheKey, result)
	}
	return result
}

func (b Builder) addBatchTool(server *mcp.Server) {
	runner := batch.Executor{
		Exec:    b.Exec,
		Limiter: b.Limiter,
		Logger:  b.Logger,
		Audit:   b.Audit,
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "execute_batch",
		Description: batchToolDescription,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input batch.Request) (*mcp.CallToolResult, batch.Result, error) {
		if b.Logger != nil {
			b.Logger.Info("tool call",
				"tool", "execute_batch",
				"tool_name", input.ToolName,
				"items", len(input.Items),
			)
		}
		return nil, runner.Execute(ctx, input), nil
	})
}

// requestSummary flattens the pipeline request into loggable form
// without the full argument payloads.
func requestSummary(req pipeline.Request) map[string]any {
	steps := make([]any, 0, len(req.Steps))
	for _, step := range req.Steps {
		entry := map[string]any{"id": step.ID, "tool_name": step.ToolName}
		if step.Loop != "" {
			entry["loop"] = step.Loop
		}
		if len(step.Args) > 0 {
			entry["args"] = step.Args
		}
		steps = append(steps, entry)
	}
	return map[string]any{"steps": steps, "timeout_ms": req.TimeoutMs}
}
