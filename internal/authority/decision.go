package authority

import "fmt"

// ReasonNoMatch is the reason given for a default-deny decision.
const ReasonNoMatch = "no matching rule"

// Decision is the outcome of one query. It is created fresh per call and
// must be treated as read-only, including the rule it points at.
type Decision struct {
	Allowed bool `json:"allowed"`
	// Rule is the rule that drove the decision, nil on default-deny.
	Rule *Rule `json:"-"`
	// RuleIndex is the insertion index of Rule, -1 on default-deny.
	RuleIndex    int    `json:"rule_index"`
	RuleName     string `json:"rule,omitempty"`
	Reason       string `json:"reason"`
	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`
}

func defaultDeny(action, typ string) Decision {
	return Decision{
		Allowed:      false,
		RuleIndex:    -1,
		Reason:       ReasonNoMatch,
		Action:       action,
		ResourceType: typ,
	}
}

func ruleDecision(c *compiledRule, action, typ string) Decision {
	r := c.rule.clone()
	reason := r.Description
	if reason == "" {
		if r.Name != "" {
			reason = fmt.Sprintf("%s rule %q matched %s on %s", r.Privilege, r.Name, action, typ)
		} else {
			reason = fmt.Sprintf("%s rule #%d matched %s on %s", r.Privilege, c.index, action, typ)
		}
	}
	return Decision{
		Allowed:      r.Privilege == Allow,
		Rule:         &r,
		RuleIndex:    c.index,
		RuleName:     r.Name,
		Reason:       reason,
		Action:       action,
		ResourceType: typ,
	}
}
