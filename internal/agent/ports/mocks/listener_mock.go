package mocks

import (
	"sync"

	"agentcore/internal/agent/ports"
)

// RetryEvent captures one OnRetry notification.
type RetryEvent struct {
	Attempt     int
	MaxAttempts int
	Kind        string
}

// RecordingListener stores every event it receives. Safe for concurrent use.
type RecordingListener struct {
	mu sync.Mutex

	Retries         []RetryEvent
	Texts           []string
	Reasoning       []string
	ToolsStarted    []ports.ToolCall
	ToolOutput      map[string][]string
	ToolsCompleted  []ports.ToolResult
	QueuedResolved  []int
	TokenUsage      []int
	CreditSnapshots []ports.Credits
}

func (r *RecordingListener) OnRetry(attempt, maxAttempts int, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Retries = append(r.Retries, RetryEvent{Attempt: attempt, MaxAttempts: maxAttempts, Kind: kind})
}

func (r *RecordingListener) OnTextReceived(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Texts = append(r.Texts, text)
}

func (r *RecordingListener) OnReasoning(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reasoning = append(r.Reasoning, text)
}

func (r *RecordingListener) OnToolStarting(call ports.ToolCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ToolsStarted = append(r.ToolsStarted, call)
}

func (r *RecordingListener) OnToolOutput(callID, chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ToolOutput == nil {
		r.ToolOutput = make(map[string][]string)
	}
	r.ToolOutput[callID] = append(r.ToolOutput[callID], chunk)
}

func (r *RecordingListener) OnToolCompleted(result ports.ToolResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ToolsCompleted = append(r.ToolsCompleted, result)
}

func (r *RecordingListener) OnQueuedMessagesResolved(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.QueuedResolved = append(r.QueuedResolved, count)
}

func (r *RecordingListener) OnTokenUsageAvailable(tokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TokenUsage = append(r.TokenUsage, tokens)
}

func (r *RecordingListener) OnCreditsAvailable(credits ports.Credits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CreditSnapshots = append(r.CreditSnapshots, credits)
}

// RetryCount returns the number of retry notifications received.
func (r *RecordingListener) RetryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Retries)
}
