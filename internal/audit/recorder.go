package audit

import (
	"context"
	"fmt"

	"github.com/valinor-ai/authority/internal/authority"
)

// NewRecorder returns an engine listener that forwards every decision to
// logger. The subject ID is read from the subject's "id" attribute.
func NewRecorder(logger Logger, source string) authority.Listener {
	return func(evt authority.Event) {
		if evt.Name != authority.EventDecision {
			return
		}
		allowed, _ := evt.Get(authority.PayloadAllowed)
		e := Event{
			SubjectID:    subjectID(evt),
			Action:       evt.String(authority.PayloadAction),
			ResourceType: evt.String(authority.PayloadResourceType),
			Allowed:      allowed == true,
			Rule:         evt.String(authority.PayloadRule),
			Reason:       evt.String(authority.PayloadReason),
			Source:       source,
		}
		if idx, ok := evt.Get(authority.PayloadRuleIndex); ok {
			e.Metadata = map[string]any{MetadataRuleIndex: idx}
		}
		logger.Log(context.Background(), e)
	}
}

func subjectID(evt authority.Event) string {
	v, ok := evt.Get(authority.PayloadSubject)
	if !ok {
		return ""
	}
	s, ok := v.(authority.Subject)
	if !ok || s == nil {
		return ""
	}
	id, ok := s.Attribute("id")
	if !ok || id == nil {
		return ""
	}
	return fmt.Sprint(id)
}
