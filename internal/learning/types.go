// Package learning is the Learning Store & Promotion Engine (C11): it
// captures, deduplicates, validates, promotes, and demotes structured
// learnings, persisting them as a JSON sidecar (authoritative) plus a
// human-facing markdown rendering per type, and appends/removes
// delimited blocks in bootstrap documents on promotion/demotion.
package learning

import "time"

// EntryType is one of the three capture sources' record kinds.
type EntryType string

const (
	TypeLearning       EntryType = "LEARNING"
	TypeError          EntryType = "ERROR"
	TypeFeatureRequest EntryType = "FEATURE"
)

// filename is the markdown/JSON stem an EntryType's entries are stored
// under (§6's "learning/LEARNINGS.md, learning/ERRORS.md,
// learning/FEATURE_REQUESTS.md").
func (t EntryType) filename() string {
	switch t {
	case TypeError:
		return "ERRORS"
	case TypeFeatureRequest:
		return "FEATURE_REQUESTS"
	default:
		return "LEARNINGS"
	}
}

// Priority is ordered Low < Medium < High < Critical so promotion's
// "priority >= Medium" gate can compare numerically.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	case PriorityCritical:
		return "Critical"
	default:
		return "Low"
	}
}

// Status is the entry lifecycle state. Transitions are New -> Validated
// -> Promoted -> (Resolved|Dismissed), with demotion allowed from
// Promoted back to Validated (§3).
type Status string

const (
	StatusNew       Status = "New"
	StatusValidated Status = "Validated"
	StatusPromoted  Status = "Promoted"
	StatusResolved  Status = "Resolved"
	StatusDismissed Status = "Dismissed"
)

// Entry is one captured learning, error, or feature request.
type Entry struct {
	ID              string
	Type            EntryType
	Priority        Priority
	Status          Status
	Area            string
	Title           string
	Description     string
	Context         string
	SuggestedAction string
	RelatedTools    []string
	Occurrences     uint32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// validationOccurrenceThreshold and promotionOccurrenceThreshold are the
// occurrence counts §3's invariants name: "status transitions to
// Validated" at 2, "promotion requires occurrences >= 3".
const (
	validationOccurrenceThreshold = 2
	promotionOccurrenceThreshold  = 3
)
