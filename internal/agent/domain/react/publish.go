package react

import (
	"context"

	"agentcore/internal/agent/ports"
	"agentcore/internal/credits"
)

// publishUsage reports prompt size and, when the provider attached one, the
// credits balance. Provider usage wins over local token counting.
func (t *turn) publishUsage(ctx context.Context, responses []ports.Response) {
	tokens := t.prompt.LatestTokenUsage()
	if tokens == 0 {
		tokens = t.r.tokenizer.CountTokens(t.prompt)
	}
	t.r.listener.OnTokenUsageAvailable(tokens)
	t.r.metrics.RecordTokens(ctx, int64(tokens))

	if snapshot, ok := credits.Extract(responses); ok {
		t.r.listener.OnCreditsAvailable(snapshot)
	}
}
