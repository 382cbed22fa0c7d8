package ports

import (
	"runtime/debug"

	"agentcore/internal/logging"
)

type guardedListener struct {
	inner  EventListener
	logger logging.Logger
}

// GuardListener wraps listener so a panicking callback is logged and swallowed.
// A nil listener becomes a NoopListener.
func GuardListener(listener EventListener, logger logging.Logger) EventListener {
	if listener == nil {
		return NoopListener{}
	}
	if _, ok := listener.(NoopListener); ok {
		return listener
	}
	if guarded, ok := listener.(*guardedListener); ok {
		return guarded
	}
	return &guardedListener{inner: listener, logger: logging.OrNop(logger)}
}

func (g *guardedListener) recover(event string) {
	if r := recover(); r != nil {
		g.logger.Warn("listener %s panicked: %v\n%s", event, r, debug.Stack())
	}
}

func (g *guardedListener) OnRetry(attempt, maxAttempts int, kind string) {
	defer g.recover("OnRetry")
	g.inner.OnRetry(attempt, maxAttempts, kind)
}

func (g *guardedListener) OnTextReceived(text string) {
	defer g.recover("OnTextReceived")
	g.inner.OnTextReceived(text)
}

func (g *guardedListener) OnReasoning(text string) {
	defer g.recover("OnReasoning")
	g.inner.OnReasoning(text)
}

func (g *guardedListener) OnToolStarting(call ToolCall) {
	defer g.recover("OnToolStarting")
	g.inner.OnToolStarting(call)
}

func (g *guardedListener) OnToolOutput(callID, chunk string) {
	defer g.recover("OnToolOutput")
	g.inner.OnToolOutput(callID, chunk)
}

func (g *guardedListener) OnToolCompleted(result ToolResult) {
	defer g.recover("OnToolCompleted")
	g.inner.OnToolCompleted(result)
}

func (g *guardedListener) OnQueuedMessagesResolved(count int) {
	defer g.recover("OnQueuedMessagesResolved")
	g.inner.OnQueuedMessagesResolved(count)
}

func (g *guardedListener) OnTokenUsageAvailable(tokens int) {
	defer g.recover("OnTokenUsageAvailable")
	g.inner.OnTokenUsageAvailable(tokens)
}

func (g *guardedListener) OnCreditsAvailable(credits Credits) {
	defer g.recover("OnCreditsAvailable")
	g.inner.OnCreditsAvailable(credits)
}
