// Package dsl defines and loads the YAML server configuration.
package dsl

// Config is the top-level YAML configuration.
type Config struct {
	// Server describes the MCP server settings.
	Server ServerConfig `yaml:"server"`
	// Quota sizes the shared external-API token bucket.
	Quota QuotaConfig `yaml:"quota"`
	// Executor configures the bridge to the CRM operation service.
	Executor ExecutorConfig `yaml:"executor"`
}

// ServerConfig defines MCP server settings.
type ServerConfig struct {
	// Name is the MCP server name.
	Name string `yaml:"name"`
	// Version is the MCP server version.
	Version string `yaml:"version"`
	// Transport selects the server transport ("http" or "stdio").
	Transport string `yaml:"transport"`
	// ShutdownTimeout overrides graceful shutdown duration.
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	// Idempotency configures optional pipeline response caching.
	Idempotency IdempotencyConfig `yaml:"idempotency_cache"`
	// HTTP configures the HTTP transport.
	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// Path is the MCP HTTP endpoint path.
	Path string `yaml:"path"`
	// ReadTimeout limits request read time.
	ReadTimeout string `yaml:"read_timeout"`
	// WriteTimeout limits response write time.
	WriteTimeout string `yaml:"write_timeout"`
	// IdleTimeout controls idle connections.
	IdleTimeout string `yaml:"idle_timeout"`
	// Stateless disables session tracking.
	Stateless bool `yaml:"stateless"`
}

// QuotaConfig sizes the token bucket shared by all executor calls.
type QuotaConfig struct {
	// MaxTokens is the bucket capacity.
	MaxTokens int `yaml:"max_tokens"`
	// RefillTokens is the number of tokens added per interval.
	RefillTokens float64 `yaml:"refill_tokens"`
	// RefillInterval is the refill period.
	RefillInterval string `yaml:"refill_interval"`
}

// ExecutorConfig defines the concrete tool executor.
type ExecutorConfig struct {
	// Type selects the executor implementation ("http").
	Type string `yaml:"type"`
	// URL is the CRM operation service endpoint.
	URL string `yaml:"url"`
	// Method overrides the HTTP method.
	Method string `yaml:"method"`
	// Headers adds HTTP headers to every bridge request.
	Headers map[string]string `yaml:"headers"`
	// Timeout is the per-invocation timeout.
	Timeout string `yaml:"timeout"`
}

// IdempotencyConfig configures response caching for repeated pipeline calls.
type IdempotencyConfig struct {
	// Enabled toggles idempotency caching.
	Enabled bool `yaml:"enabled"`
	// TTL controls how long cached responses are kept.
	TTL string `yaml:"ttl"`
	// MaxEntries limits the cache size.
	MaxEntries int `yaml:"max_entries"`
}
