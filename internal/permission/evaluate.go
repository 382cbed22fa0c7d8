package permission

// Decision is the outcome of evaluating permission lists for a tool request.
type Decision int

const (
	// None means the lists have no opinion; callers fall back to interactive confirmation.
	None Decision = iota
	Deny
	Ask
	Allow
)

func (d Decision) String() string {
	switch d {
	case Deny:
		return "deny"
	case Ask:
		return "ask"
	case Allow:
		return "allow"
	default:
		return "none"
	}
}

// Lists holds the raw deny, ask and allow entries as configured.
type Lists struct {
	Allow []string `json:"allow" yaml:"allow" mapstructure:"allow"`
	Ask   []string `json:"ask" yaml:"ask" mapstructure:"ask"`
	Deny  []string `json:"deny" yaml:"deny" mapstructure:"deny"`
}

// Evaluate applies lists to a tool request with fixed priority
// deny > ask > allow > none, stopping at the first list that matches.
func Evaluate(lists Lists, tool string, targets []string) Decision {
	decision, _ := Explain(lists, tool, targets)
	return decision
}

// Explain is Evaluate that also returns the rule that decided the outcome.
func Explain(lists Lists, tool string, targets []string) (Decision, *Rule) {
	for _, tier := range []struct {
		entries  []string
		decision Decision
	}{
		{lists.Deny, Deny},
		{lists.Ask, Ask},
		{lists.Allow, Allow},
	} {
		if rule := firstMatch(tier.entries, tool, targets); rule != nil {
			return tier.decision, rule
		}
	}
	return None, nil
}

// HasRulesFor reports whether any valid entry in entries names tool.
func HasRulesFor(entries []string, tool string) bool {
	for _, raw := range entries {
		if rule, ok := ParseRule(raw); ok && rule.Tool == tool {
			return true
		}
	}
	return false
}

func firstMatch(entries []string, tool string, targets []string) *Rule {
	for _, raw := range entries {
		rule, ok := ParseRule(raw)
		if !ok {
			continue
		}
		if rule.Matches(tool, targets) {
			return &rule
		}
	}
	return nil
}
