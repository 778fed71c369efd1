package authority

import "fmt"

// EventDecision is the name of the event emitted after every query.
const EventDecision = "authority.decision"

// Payload keys carried by decision events.
const (
	PayloadAllowed      = "allowed"
	PayloadAction       = "action"
	PayloadResourceType = "resource_type"
	PayloadRule         = "rule"
	PayloadRuleIndex    = "rule_index"
	PayloadReason       = "reason"
	PayloadSubject      = "subject"
)

// Event is a named notification with a key/value payload.
type Event struct {
	Name    string
	Payload map[string]any
}

// Get returns the payload value for key.
func (e Event) Get(key string) (any, bool) {
	v, ok := e.Payload[key]
	return v, ok
}

// String returns the payload value for key formatted as a string, or "" when
// absent.
func (e Event) String(key string) string {
	v, ok := e.Payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Listener receives events synchronously and must not block.
type Listener func(Event)

func decisionEvent(subject Subject, d Decision) Event {
	payload := map[string]any{
		PayloadAllowed:      d.Allowed,
		PayloadAction:       d.Action,
		PayloadResourceType: d.ResourceType,
		PayloadRuleIndex:    d.RuleIndex,
		PayloadReason:       d.Reason,
		PayloadSubject:      subject,
	}
	if d.Rule != nil {
		payload[PayloadRule] = d.Rule.Name
	}
	return Event{Name: EventDecision, Payload: payload}
}
