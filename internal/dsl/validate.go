package dsl

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate applies defaults and verifies required fields.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Server.Name == "" {
		return fmt.Errorf("server.name is required")
	}
	if cfg.Server.Version == "" {
		return fmt.Errorf("server.version is required")
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = "http"
	}
	switch strings.ToLower(cfg.Server.Transport) {
	case "http", "stdio":
	default:
		return fmt.Errorf("server.transport must be http or stdio")
	}
	if cfg.Server.HTTP.Listen == "" {
		cfg.Server.HTTP.Listen = ":8080"
	}
	if cfg.Server.HTTP.Path == "" {
		cfg.Server.HTTP.Path = "/mcp"
	}
	if cfg.Server.Idempotency.Enabled {
		if cfg.Server.Idempotency.TTL == "" {
			cfg.Server.Idempotency.TTL = "1h"
		}
		if cfg.Server.Idempotency.MaxEntries == 0 {
			cfg.Server.Idempotency.MaxEntries = 1000
		}
		if cfg.Server.Idempotency.MaxEntries < 0 {
			return fmt.Errorf("server.idempotency_cache.max_entries must be >= 0")
		}
		if _, err := time.ParseDuration(cfg.Server.Idempotency.TTL); err != nil {
			return fmt.Errorf("server.idempotency_cache.ttl is invalid: %w", err)
		}
	}

	if cfg.Quota.MaxTokens == 0 {
		cfg.Quota.MaxTokens = 100
	}
	if cfg.Quota.MaxTokens < 1 {
		return fmt.Errorf("quota.max_tokens must be >= 1")
	}
	if cfg.Quota.RefillTokens == 0 {
		cfg.Quota.RefillTokens = 10
	}
	if cfg.Quota.RefillTokens < 0 {
		return fmt.Errorf("quota.refill_tokens must be > 0")
	}
	if cfg.Quota.RefillInterval == "" {
		cfg.Quota.RefillInterval = "1s"
	}
	if interval, err := time.ParseDuration(cfg.Quota.RefillInterval); err != nil {
		return fmt.Errorf("quota.refill_interval is invalid: %w", err)
	} else if interval <= 0 {
		return fmt.Errorf("quota.refill_interval must be positive")
	}

	if cfg.Executor.Type == "" {
		cfg.Executor.Type = "http"
	}
	if !strings.EqualFold(cfg.Executor.Type, "http") {
		return fmt.Errorf("executor.type must be http")
	}
	if strings.TrimSpace(cfg.Executor.URL) == "" {
		return fmt.Errorf("executor.url is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(cfg.Executor.URL))
	if err != nil {
		return fmt.Errorf("executor.url is invalid: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("executor.url must be absolute")
	}
	if cfg.Executor.Method == "" {
		cfg.Executor.Method = "POST"
	}
	if cfg.Executor.Timeout == "" {
		cfg.Executor.Timeout = "30s"
	}
	if _, err := time.ParseDuration(cfg.Executor.Timeout); err != nil {
		return fmt.Errorf("executor.timeout is invalid: %w", err)
	}

	return nil
}
