package permission

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"agentcore/internal/agent/ports"
	"agentcore/internal/logging"

	"github.com/kaptinlin/jsonrepair"
)

// ListsProvider loads the current permission lists. It is consulted on every
// evaluation so edits to the settings take effect without a restart.
type ListsProvider interface {
	PermissionLists(ctx context.Context) (Lists, error)
}

// ListsFunc adapts a function to ListsProvider.
type ListsFunc func(ctx context.Context) (Lists, error)

func (f ListsFunc) PermissionLists(ctx context.Context) (Lists, error) {
	return f(ctx)
}

// StaticLists returns a provider that always yields lists.
func StaticLists(lists Lists) ListsProvider {
	return ListsFunc(func(context.Context) (Lists, error) { return lists, nil })
}

// Approver asks a human whether a call may proceed. It is consulted for Ask
// decisions and, when present, for None decisions.
type Approver interface {
	Approve(ctx context.Context, call ports.ToolCall, decision Decision) (approved bool, reason string, err error)
}

// TargetsFunc extracts the strings rules are matched against from a call.
type TargetsFunc func(call ports.ToolCall) []string

// GuardedDispatcher evaluates permission lists before delegating a tool call.
// Refusals are returned as error tool results so the model sees them.
type GuardedDispatcher struct {
	next      ports.ToolDispatcher
	lists     ListsProvider
	approver  Approver
	targets   TargetsFunc
	exclusive []string
	logger    logging.Logger
}

var _ ports.ToolDispatcher = (*GuardedDispatcher)(nil)

// GuardOption customises a GuardedDispatcher.
type GuardOption func(*GuardedDispatcher)

// WithApprover routes Ask and None decisions to approver.
func WithApprover(approver Approver) GuardOption {
	return func(g *GuardedDispatcher) { g.approver = approver }
}

// WithTargets replaces the default target extraction.
func WithTargets(targets TargetsFunc) GuardOption {
	return func(g *GuardedDispatcher) {
		if targets != nil {
			g.targets = targets
		}
	}
}

// WithExclusiveAllow makes allow entries for the named tools exhaustive: when
// such a tool has allow entries and none matches, the call is refused.
func WithExclusiveAllow(tools ...string) GuardOption {
	return func(g *GuardedDispatcher) { g.exclusive = append(g.exclusive, tools...) }
}

// WithGuardLogger sets the logger.
func WithGuardLogger(logger logging.Logger) GuardOption {
	return func(g *GuardedDispatcher) { g.logger = logging.OrNop(logger) }
}

// NewGuardedDispatcher wraps next with permission checks.
func NewGuardedDispatcher(next ports.ToolDispatcher, lists ListsProvider, opts ...GuardOption) *GuardedDispatcher {
	g := &GuardedDispatcher{
		next:    next,
		lists:   lists,
		targets: ArgumentTargets(""),
		logger:  logging.NewComponentLogger("permission"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dispatch evaluates the call and either refuses it or delegates to the wrapped dispatcher.
func (g *GuardedDispatcher) Dispatch(ctx context.Context, call ports.ToolCall) (ports.ToolResult, error) {
	var lists Lists
	if g.lists != nil {
		loaded, err := g.lists.PermissionLists(ctx)
		if err != nil {
			g.logger.Warn("Failed to load permission lists for %s: %v", call.Tool, err)
			return refusal(call, fmt.Sprintf("Access denied for %s: permission settings could not be loaded", call.Tool)), nil
		}
		lists = loaded
	}

	targets := g.targets(call)
	decision, rule := Explain(lists, call.Tool, targets)
	if rule != nil {
		g.logger.Debug("Permission %s for %s via %s", decision, call.Tool, rule)
	}

	switch decision {
	case Deny:
		return refusal(call, fmt.Sprintf("Access denied by permissions.deny for %s", call.Tool)), nil
	case Allow:
		return g.next.Dispatch(ctx, call)
	case Ask:
		if g.approver == nil {
			return refusal(call, fmt.Sprintf("Access for %s requires confirmation (permissions.ask) but no approver is available", call.Tool)), nil
		}
		return g.askApprover(ctx, call, decision)
	default:
		if slices.Contains(g.exclusive, call.Tool) && HasRulesFor(lists.Allow, call.Tool) {
			return refusal(call, fmt.Sprintf("Access denied by permissions.allow for %s", call.Tool)), nil
		}
		if g.approver == nil {
			return g.next.Dispatch(ctx, call)
		}
		return g.askApprover(ctx, call, decision)
	}
}

func (g *GuardedDispatcher) askApprover(ctx context.Context, call ports.ToolCall, decision Decision) (ports.ToolResult, error) {
	approved, reason, err := g.approver.Approve(ctx, call, decision)
	if err != nil {
		return ports.ToolResult{}, fmt.Errorf("approval for %s: %w", call.Tool, err)
	}
	if !approved {
		msg := fmt.Sprintf("User denied %s", call.Tool)
		if reason != "" {
			msg += ": " + reason
		}
		return refusal(call, msg), nil
	}
	return g.next.Dispatch(ctx, call)
}

func refusal(call ports.ToolCall, content string) ports.ToolResult {
	return ports.ToolResult{ID: call.ID, Tool: call.Tool, Content: content, IsError: true}
}

// Argument keys that carry rule targets, in priority order.
var targetKeys = []string{"command", "file_path", "path", "notebook_path", "pattern", "url"}

// ArgumentTargets extracts targets from the call's JSON arguments. Path-like
// values are also offered relative to root, with and without a "./" prefix,
// so rules such as Read(./src/**) match absolute paths under root.
// Slightly malformed arguments are repaired before decoding.
func ArgumentTargets(root string) TargetsFunc {
	return func(call ports.ToolCall) []string {
		args := decodeArgs(call.Args)
		var targets []string
		for _, key := range targetKeys {
			value, ok := args[key].(string)
			if !ok || strings.TrimSpace(value) == "" {
				continue
			}
			targets = append(targets, value)
			if key == "command" || key == "url" || key == "pattern" {
				continue
			}
			targets = append(targets, pathVariants(root, value)...)
		}
		if len(targets) == 0 {
			targets = []string{call.Args}
		}
		return dedupe(targets)
	}
}

func decodeArgs(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil
	}
	return args
}

func pathVariants(root, value string) []string {
	if root == "" {
		return nil
	}
	abs := value
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return []string{filepath.Clean(abs)}
	}
	rel = filepath.ToSlash(rel)
	return []string{filepath.Clean(abs), rel, "./" + rel}
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
