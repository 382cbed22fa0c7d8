package credits

import (
	"encoding/json"
	"testing"

	"agentcore/internal/agent/ports"

	"github.com/stretchr/testify/require"
)

func withCredits(value any) ports.Assistant {
	return ports.Assistant{Text: "ok", ResponseMeta: ports.ResponseMeta{Metadata: map[string]any{MetadataKey: value}}}
}

func TestExtractDefaults(t *testing.T) {
	snapshot, ok := Extract([]ports.Response{withCredits(map[string]any{"remaining": float64(120)})})
	require.True(t, ok)
	require.Equal(t, ports.Credits{Remaining: 120, MonthlyRemaining: 120, Total: 0}, snapshot)
}

func TestExtractPrefersNewestResponse(t *testing.T) {
	older := withCredits(map[string]any{"remaining": 10, "monthly_remaining": 5, "total": 100})
	newer := withCredits(json.RawMessage(`{"remaining": 9, "monthly_remaining": 4, "total": 100}`))
	snapshot, ok := Extract([]ports.Response{older, ports.Reasoning{Text: "thinking"}, newer})
	require.True(t, ok)
	require.Equal(t, ports.Credits{Remaining: 9, MonthlyRemaining: 4, Total: 100}, snapshot)
}

func TestExtractRequiresRemaining(t *testing.T) {
	_, ok := Extract([]ports.Response{withCredits(map[string]any{"total": 100})})
	require.False(t, ok)

	_, ok = Extract([]ports.Response{withCredits("not json")})
	require.False(t, ok)

	_, ok = Extract([]ports.Response{ports.Assistant{Text: "no metadata"}})
	require.False(t, ok)

	_, ok = FromMetadata(map[string]any{MetadataKey: map[string]any{"remaining": 1.5}})
	require.False(t, ok)
}
