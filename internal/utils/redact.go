package utils

import (
	"encoding/json"
	"regexp"
	"strings"
)

const redacted = "******"

// sensitivePair matches a secret key and its value in text that is not
// valid JSON, including a string cut off before its closing quote.
var sensitivePair = regexp.MustCompile(`(?i)("(?:senha|token)"\s*:\s*)(?:"(?:[^"\\]|\\.)*"?|[^,}\s]+)`)

var sensitiveKeys = map[string]struct{}{
	"senha": {},
	"token": {},
}

// Redact masks secret values in a raw protocol line before it is logged.
// Lines that are not JSON objects are masked by pattern and truncated.
func Redact(line string) string {
	var doc map[string]any
	if err := json.Unmarshal([]byte(line), &doc); err != nil {
		line = sensitivePair.ReplaceAllString(line, `$1"`+redacted+`"`)
		if len(line) > 64 {
			return line[:64] + "..."
		}
		return line
	}

	out, err := json.Marshal(redactValue(doc))
	if err != nil {
		return "<unavailable>"
	}
	return string(out)
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, inner := range typed {
			if isSensitiveKey(key) {
				out[key] = redacted
				continue
			}
			out[key] = redactValue(inner)
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, redactValue(item))
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}
