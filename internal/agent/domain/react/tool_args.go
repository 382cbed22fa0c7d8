package react

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	argInlineLimit  = 256
	argPreviewRunes = 64
)

// argsForLog renders raw tool arguments for debug logs. Long strings, data
// URIs and binary-looking blobs are replaced by a short summary.
func argsForLog(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "{}"
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return summarizeArg(raw)
	}
	encoded, err := json.Marshal(sanitizeArgs(args))
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(encoded)
}

func sanitizeArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for key, value := range args {
		out[key] = sanitizeArg(value)
	}
	return out
}

func sanitizeArg(value any) any {
	switch v := value.(type) {
	case string:
		return summarizeArg(v)
	case map[string]any:
		return sanitizeArgs(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeArg(item)
		}
		return out
	default:
		return value
	}
}

func summarizeArg(value string) string {
	value = strings.TrimSpace(value)
	switch {
	case strings.HasPrefix(value, "data:"):
		header, _, _ := strings.Cut(value, ",")
		return fmt.Sprintf("data_uri(header=%q,len=%d)", header, len(value))
	case len(value) <= argInlineLimit:
		return value
	case looksBinary(value):
		return fmt.Sprintf("binary(len=%d,prefix=%q)", len(value), previewRunes(value))
	default:
		return fmt.Sprintf("%s... (len=%d)", previewRunes(value), len(value))
	}
}

func looksBinary(value string) bool {
	sample := value[:min(len(value), 128)]
	for i := 0; i < len(sample); i++ {
		if c := sample[i]; c < 0x20 || c > 0x7E {
			return true
		}
	}
	return false
}

func previewRunes(value string) string {
	count := 0
	for idx := range value {
		if count == argPreviewRunes {
			return value[:idx]
		}
		count++
	}
	return value
}
