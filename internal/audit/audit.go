package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one recorded authorization decision.
type Event struct {
	SubjectID    string
	Action       string // the action that was queried, e.g. "read"
	ResourceType string
	Allowed      bool
	Rule         string // name of the rule that drove the decision, "" on default-deny
	Reason       string
	Metadata     map[string]any
	Source       string // "api", "engine", "cli"
}

// Record is a persisted Event.
type Record struct {
	ID           uuid.UUID      `json:"id"`
	SubjectID    string         `json:"subject_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	Allowed      bool           `json:"allowed"`
	Rule         string         `json:"rule,omitempty"`
	Reason       string         `json:"reason"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Source       string         `json:"source"`
	CreatedAt    time.Time      `json:"created_at"`
}

const (
	SourceAPI    = "api"
	SourceEngine = "engine"
	SourceCLI    = "cli"
)

const (
	MetadataRequestID = "request_id"
	MetadataRuleIndex = "rule_index"
	MetadataPath      = "path"
)

// Logger is the audit logging interface. Log is fire-and-forget.
type Logger interface {
	Log(ctx context.Context, event Event)
	Close() error
}

// NopLogger is a no-op audit logger for testing and when audit is disabled.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
func (NopLogger) Close() error               { return nil }
