// Package credits reads account balance snapshots that providers attach to
// response metadata under the "credits" key.
package credits

import (
	"encoding/json"
	"math"
	"strconv"

	"agentcore/internal/agent/ports"
)

// MetadataKey is the response metadata entry carrying the balance object.
const MetadataKey = "credits"

// Extract returns the newest credits snapshot among responses. The object
// must carry "remaining"; "monthly_remaining" defaults to it and "total" to 0.
func Extract(responses []ports.Response) (ports.Credits, bool) {
	for i := len(responses) - 1; i >= 0; i-- {
		if responses[i] == nil {
			continue
		}
		if snapshot, ok := FromMetadata(responses[i].Meta().Metadata); ok {
			return snapshot, true
		}
	}
	return ports.Credits{}, false
}

// FromMetadata decodes a snapshot from one metadata map.
func FromMetadata(metadata map[string]any) (ports.Credits, bool) {
	raw, ok := metadata[MetadataKey]
	if !ok {
		return ports.Credits{}, false
	}
	object, ok := asObject(raw)
	if !ok {
		return ports.Credits{}, false
	}
	remaining, ok := asInt64(object["remaining"])
	if !ok {
		return ports.Credits{}, false
	}
	monthly, ok := asInt64(object["monthly_remaining"])
	if !ok {
		monthly = remaining
	}
	total, _ := asInt64(object["total"])
	return ports.Credits{Remaining: remaining, MonthlyRemaining: monthly, Total: total}, true
}

func asObject(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case json.RawMessage:
		var out map[string]any
		if err := json.Unmarshal(v, &out); err != nil {
			return nil, false
		}
		return out, true
	case string:
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}

func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
