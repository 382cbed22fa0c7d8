package permission

import "strings"

// MatchAll is the specifier that matches every target.
const MatchAll = "*"

// Rule is a parsed permission entry of the form Tool(specifier) or Tool.
type Rule struct {
	Tool      string
	Specifier string
}

// ParseRule parses raw. A bare tool name or empty parentheses yield the
// match-all specifier. Entries with an empty tool name or a misplaced
// parenthesis are rejected.
func ParseRule(raw string) (Rule, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Rule{}, false
	}

	open := strings.IndexByte(trimmed, '(')
	if open < 0 {
		return Rule{Tool: trimmed, Specifier: MatchAll}, true
	}
	close := strings.LastIndexByte(trimmed, ')')
	if open < 1 || close < open {
		return Rule{}, false
	}

	tool := strings.TrimSpace(trimmed[:open])
	if tool == "" {
		return Rule{}, false
	}
	specifier := strings.TrimSpace(trimmed[open+1 : close])
	if specifier == "" {
		specifier = MatchAll
	}
	return Rule{Tool: tool, Specifier: specifier}, true
}

// String renders the rule in its canonical form.
func (r Rule) String() string {
	if r.Specifier == "" || r.Specifier == MatchAll {
		return r.Tool
	}
	return r.Tool + "(" + r.Specifier + ")"
}

// Matches reports whether the rule covers tool and at least one target.
func (r Rule) Matches(tool string, targets []string) bool {
	if r.Tool != tool {
		return false
	}
	for _, target := range targets {
		if r.matchesTarget(target) {
			return true
		}
	}
	return false
}

func (r Rule) matchesTarget(target string) bool {
	switch {
	case r.Specifier == "" || r.Specifier == MatchAll:
		return true
	case strings.Contains(r.Specifier, "*"):
		return wildcardMatch(r.Specifier, target)
	default:
		return target == r.Specifier
	}
}

// wildcardMatch matches the whole target against pattern, where each '*'
// stands for any run of characters, possibly empty. Matching is case sensitive.
func wildcardMatch(pattern, target string) bool {
	parts := strings.Split(pattern, "*")

	first := parts[0]
	if !strings.HasPrefix(target, first) {
		return false
	}
	rest := target[len(first):]

	last := parts[len(parts)-1]
	middle := parts[1 : len(parts)-1]
	for _, part := range middle {
		if part == "" {
			continue
		}
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return len(rest) >= len(last) && strings.HasSuffix(rest, last)
}
