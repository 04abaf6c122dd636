package learning

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// nextID builds the "<TYPE>-YYYYMMDD-NNN" identifier for entryType on
// day now, monotonic within that type-day (§3's ID invariant). Callers
// must hold s.mu.
func (s *Store) nextID(entryType EntryType, now time.Time) string {
	day := now.Format("20060102")
	prefix := fmt.Sprintf("%s-%s-", entryType, day)
	max := 0
	for _, e := range s.byType[entryType] {
		if !strings.HasPrefix(e.ID, prefix) {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(e.ID[len(prefix):], "%d", &n); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, max+1)
}

// CaptureInput is what every entry source (the automatic detector, or an
// explicit record_learning/record_error/record_feature_request tool
// call) supplies.
type CaptureInput struct {
	Type            EntryType
	Priority        Priority
	Area            string
	Title           string
	Description     string
	Context         string
	SuggestedAction string
	RelatedTools    []string
}

// Capture records input, deduplicating against existing entries of the
// same type and area per FindSimilar: a similar existing entry has its
// Occurrences incremented (and is auto-validated at the threshold)
// rather than producing a new entry (§4.11 source (iii)).
func (s *Store) Capture(input CaptureInput) (Entry, error) {
	if strings.TrimSpace(input.Title) == "" {
		return Entry{}, fmt.Errorf("learning: capture: title is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := FindSimilar(s.byType[input.Type], input.Type, input.Title, input.Area); ok {
		existing.Occurrences++
		existing.UpdatedAt = now
		if existing.Status == StatusNew && existing.Occurrences >= validationOccurrenceThreshold {
			existing.Status = StatusValidated
		}
		if err := s.put(existing); err != nil {
			return Entry{}, err
		}
		return existing, nil
	}

	entry := Entry{
		ID:              s.nextID(input.Type, now),
		Type:            input.Type,
		Priority:        input.Priority,
		Status:          StatusNew,
		Area:            input.Area,
		Title:           input.Title,
		Description:     input.Description,
		Context:         input.Context,
		SuggestedAction: input.SuggestedAction,
		RelatedTools:    input.RelatedTools,
		Occurrences:     1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.put(entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// RecordLearning, RecordError, and RecordFeatureRequest are the explicit
// capture entry points tools call directly (§4.11 source (ii)).
func (s *Store) RecordLearning(area, title, description string, priority Priority, relatedTools []string) (Entry, error) {
	return s.Capture(CaptureInput{Type: TypeLearning, Priority: priority, Area: area, Title: title, Description: description, RelatedTools: relatedTools})
}

func (s *Store) RecordError(area, title, description string, priority Priority, relatedTools []string) (Entry, error) {
	return s.Capture(CaptureInput{Type: TypeError, Priority: priority, Area: area, Title: title, Description: description, RelatedTools: relatedTools})
}

func (s *Store) RecordFeatureRequest(area, title, description string, priority Priority) (Entry, error) {
	return s.Capture(CaptureInput{Type: TypeFeatureRequest, Priority: priority, Area: area, Title: title, Description: description})
}

// SetStatus transitions entry id to status, persisting the change. It
// does not itself enforce the full state machine (promotion and
// demotion have their own dedicated, invariant-checked methods); this is
// for direct Resolved/Dismissed transitions an operator or tool makes.
func (s *Store) SetStatus(id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, entries := range s.byType {
		for _, e := range entries {
			if e.ID != id {
				continue
			}
			e.Status = status
			e.UpdatedAt = time.Now()
			_ = t
			return s.put(e)
		}
	}
	return fmt.Errorf("learning: entry %q not found", id)
}

// Detector patterns (§4.11 source (i)): user-correction phrasing and
// missing-capability phrasing over a chat turn's free text.
var (
	correctionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bno,?\s+(that'?s|that is)\s+(not|wrong|incorrect)\b`),
		regexp.MustCompile(`(?i)\bthat'?s\s+not\s+(right|correct|what I (meant|asked))\b`),
		regexp.MustCompile(`(?i)\bstop\s+doing\s+that\b`),
		regexp.MustCompile(`(?i)\bi\s+(said|meant|asked for)\b.{0,40}\bnot\b`),
		regexp.MustCompile(`(?i)\bdon'?t\s+do\s+that\s+(again|anymore)\b`),
	}
	missingCapabilityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\byou\s+(can'?t|cannot|don'?t)\s+(do|support|handle)\b`),
		regexp.MustCompile(`(?i)\bis\s+there\s+a\s+way\s+to\b`),
		regexp.MustCompile(`(?i)\bi\s+wish\s+(you|it)\s+could\b`),
		regexp.MustCompile(`(?i)\bwhy\s+(can'?t|doesn'?t)\s+(this|it|you)\b`),
	}
)

// DetectionResult is what DetectFromTurn returns when a turn matches.
type DetectionResult struct {
	Type  EntryType
	Title string
}

// DetectFromTurn scans one chat turn's free text for correction or
// missing-capability phrasing (§4.11 source (i)'s automatic detector).
// It returns at most one detection per turn, correction taking priority
// over missing-capability since a correction is the stronger signal.
func DetectFromTurn(turnText string) (DetectionResult, bool) {
	for _, re := range correctionPatterns {
		if loc := re.FindString(turnText); loc != "" {
			return DetectionResult{Type: TypeLearning, Title: summarize(turnText)}, true
		}
	}
	for _, re := range missingCapabilityPatterns {
		if loc := re.FindString(turnText); loc != "" {
			return DetectionResult{Type: TypeFeatureRequest, Title: summarize(turnText)}, true
		}
	}
	return DetectionResult{}, false
}

func summarize(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	const maxLen = 120
	if len(text) > maxLen {
		return text[:maxLen] + "..."
	}
	return text
}

// ObserveTurn runs the automatic detector over turnText and, on a match,
// captures it against area. It is safe to call on every chat turn; most
// calls are no-ops.
func (s *Store) ObserveTurn(_ context.Context, area, turnText string) (Entry, bool, error) {
	det, ok := DetectFromTurn(turnText)
	if !ok {
		return Entry{}, false, nil
	}
	entry, err := s.Capture(CaptureInput{
		Type:        det.Type,
		Priority:    PriorityMedium,
		Area:        area,
		Title:       det.Title,
		Description: turnText,
	})
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}
