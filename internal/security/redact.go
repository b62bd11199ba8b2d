package security

import "strings"

var sensitiveSubstrings = []string{
	"token",
	"password",
	"authorization",
	"apikey",
	"api_key",
	"access_key",
	"private_key",
	"credentials",
	"auth",
	"passwd",
	"key",
	"sig",
	"signature",
	"cookie",
	"session",
	"jwt",
	"bearer",
	"credential",
	"pwd",
	"passphrase",
	"secret_value",
}

var allowList = map[string]struct{}{
	"secret_name": {},
}

// RedactArguments returns a copy of arguments with sensitive values
// replaced. Nested containers are walked so tokens buried inside
// pipeline step arguments never reach the logs.
func RedactArguments(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	redacted := make(map[string]any, len(values))
	for key, value := range values {
		if isSensitiveKey(key) {
			redacted[key] = "***"
			continue
		}
		redacted[key] = RedactValue(value)
	}
	return redacted
}

// RedactValue redacts sensitive keys in any decoded JSON value.
func RedactValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return RedactArguments(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = RedactValue(item)
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	if _, ok := allowList[lower]; ok {
		return false
	}
	if strings.Contains(lower, "secret") && strings.Contains(lower, "name") {
		return false
	}
	for _, part := range sensitiveSubstrings {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
