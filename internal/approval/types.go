// Package approval adjudicates privileged actions requested by tools before
// their side effects run, caching session-scoped decisions and keeping an
// audit trail of every adjudication.
package approval

import (
	"time"

	"github.com/google/uuid"
)

// ActionType classifies the kind of privileged operation an Action records.
type ActionType string

const (
	FileRead       ActionType = "file_read"
	FileWrite      ActionType = "file_write"
	FileDelete     ActionType = "file_delete"
	CommandExecute ActionType = "command_execute"
	NetworkRequest ActionType = "network_request"
	CustomAction   ActionType = "custom"
)

// Risk is the ordered risk scale used across the sandbox and approval layers.
type Risk int

const (
	RiskLow Risk = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r Risk) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Action is an approval record created once per tool-call attempt. Actions
// are never reused across attempts, even for retries of the same call.
type Action struct {
	ID          uuid.UUID
	Type        ActionType
	CustomTag   string
	Risk        Risk
	Description string
	Target      string
	Details     map[string]string
	RequestedAt time.Time
}

// NewAction stamps an Action with a fresh ID and timestamp.
func NewAction(actionType ActionType, risk Risk, description, target string) Action {
	return Action{
		ID:          uuid.New(),
		Type:        actionType,
		Risk:        risk,
		Description: description,
		Target:      target,
		Details:     map[string]string{},
		RequestedAt: time.Now(),
	}
}

// Decision is the outcome of adjudicating an Action.
type Decision int

const (
	Denied Decision = iota
	Approved
	ApprovedForSession
)

func (d Decision) String() string {
	switch d {
	case Approved:
		return "approved"
	case ApprovedForSession:
		return "approved_for_session"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Diff is the unified before/after pair request_with_diff must present to
// the user before asking, for any file-mutation action with a prior state.
type Diff struct {
	Before string
	After  string
}

// sessionKey is the (ActionType, target) pair an ApprovedForSession decision
// binds, per §4.2.
type sessionKey struct {
	actionType ActionType
	target     string
}

// AuditSource records how a decision was reached.
type AuditSource string

const (
	SourceAuto    AuditSource = "auto"
	SourceSession AuditSource = "session"
	SourcePrompt  AuditSource = "prompt"
)

// AuditEntry is one row of the in-memory approval audit log.
type AuditEntry struct {
	Action   Action
	Decision Decision
	Source   AuditSource
	At       time.Time
}
