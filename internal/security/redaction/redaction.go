// Package redaction screens structured log fields and tool payloads for
// values that look like credentials before they reach a sink.
package redaction

import (
	"regexp"
	"strings"
)

// Placeholder replaces any value classified as sensitive.
const Placeholder = "[REDACTED]"

// usageFieldExceptions are key names that contain "token" but refer to
// LLM usage accounting rather than an authentication token.
var usageFieldExceptions = map[string]bool{
	"tokens":             true,
	"token_count":        true,
	"tokens_used":        true,
	"total_tokens":       true,
	"input_tokens":       true,
	"output_tokens":      true,
	"prompt_tokens":      true,
	"completion_tokens":  true,
	"max_tokens":         true,
	"remaining_tokens":   true,
	"cached_tokens":      true,
	"reasoning_tokens":   true,
}

var sensitiveKeySuffixes = []string{
	"token",
	"api_key",
	"apikey",
	"secret",
	"password",
	"passwd",
	"private_key",
	"ssh_key",
	"auth",
	"credential",
}

// secretLikePattern matches values that look like API keys or bearer
// tokens regardless of the field name carrying them.
var secretLikePattern = regexp.MustCompile(`(?i)^(sk|pk|ghp|gho|ghu|ghs|xox[abp]|AKIA)[-_][A-Za-z0-9_\-]{6,}$|^(sk|pk)-[A-Za-z0-9_\-]{6,}$|^Bearer\s+\S+$`)

// IsSensitiveKey reports whether a field name is expected to carry a
// credential or other secret value.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	if lower == "" {
		return false
	}
	if usageFieldExceptions[lower] {
		return false
	}
	for _, suffix := range sensitiveKeySuffixes {
		if strings.Contains(lower, suffix) {
			return true
		}
	}
	return false
}

// looksLikeSecret reports whether a value, independent of its field
// name, has the shape of an API key, bearer token, or similar credential.
func looksLikeSecret(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	if secretLikePattern.MatchString(v) {
		return true
	}
	return false
}

// RedactStringValue returns Placeholder when key is a sensitive field or
// value looks like a secret on its own merit; otherwise it returns value
// unchanged.
func RedactStringValue(key, value string) string {
	if IsSensitiveKey(key) {
		return Placeholder
	}
	if looksLikeSecret(value) {
		return Placeholder
	}
	return value
}
