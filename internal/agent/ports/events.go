package ports

// Credits is a snapshot of the account balance reported by a provider.
type Credits struct {
	Remaining        int64 `json:"remaining"`
	MonthlyRemaining int64 `json:"monthly_remaining"`
	Total            int64 `json:"total"`
}

// EventListener receives fire-and-forget notifications from the runtime.
// Calls are synchronous; implementations must return quickly and must not
// rely on their errors or panics affecting the run.
type EventListener interface {
	OnRetry(attempt, maxAttempts int, kind string)
	OnTextReceived(text string)
	OnReasoning(text string)
	OnToolStarting(call ToolCall)
	OnToolOutput(callID, chunk string)
	OnToolCompleted(result ToolResult)
	OnQueuedMessagesResolved(count int)
	OnTokenUsageAvailable(tokens int)
	OnCreditsAvailable(credits Credits)
}

// NoopListener ignores every event. Embed it to implement a subset.
type NoopListener struct{}

func (NoopListener) OnRetry(int, int, string)     {}
func (NoopListener) OnTextReceived(string)        {}
func (NoopListener) OnReasoning(string)           {}
func (NoopListener) OnToolStarting(ToolCall)      {}
func (NoopListener) OnToolOutput(string, string)  {}
func (NoopListener) OnToolCompleted(ToolResult)   {}
func (NoopListener) OnQueuedMessagesResolved(int) {}
func (NoopListener) OnTokenUsageAvailable(int)    {}
func (NoopListener) OnCreditsAvailable(Credits)   {}

// OrNoop returns listener or a NoopListener when it is nil.
func OrNoop(listener EventListener) EventListener {
	if listener == nil {
		return NoopListener{}
	}
	return listener
}
