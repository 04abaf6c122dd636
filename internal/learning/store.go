package learning

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"toolrt/internal/logging"
)

// Store is a file-backed, in-memory-per-type learning store. All
// mutations read-modify-write the full per-type slice (§5: "acceptable
// for expected sizes, hundreds"), guarded by one mutex since the three
// types' entries are loaded and saved together.
type Store struct {
	mu     sync.Mutex
	root   string
	byType map[EntryType][]Entry
	logger zerolog.Logger
}

// Open loads (or initializes) a Store rooted at dataRoot, preferring each
// type's JSON sidecar when present and falling back to parsing its
// markdown rendering otherwise (§9 Open Question (i): "prefer the JSON
// sidecar for correctness").
func Open(dataRoot string) (*Store, error) {
	s := &Store{
		root:   dataRoot,
		byType: map[EntryType][]Entry{},
		logger: logging.Component("learning"),
	}
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return nil, fmt.Errorf("learning: create data root: %w", err)
	}
	for _, t := range []EntryType{TypeLearning, TypeError, TypeFeatureRequest} {
		entries, err := s.load(t)
		if err != nil {
			return nil, err
		}
		s.byType[t] = entries
	}
	return s, nil
}

func (s *Store) sidecarPath(t EntryType) string {
	return filepath.Join(s.root, t.filename()+".json")
}

func (s *Store) markdownPath(t EntryType) string {
	return filepath.Join(s.root, t.filename()+".md")
}

func (s *Store) load(t EntryType) ([]Entry, error) {
	sidecar := s.sidecarPath(t)
	if raw, err := os.ReadFile(sidecar); err == nil {
		var entries []Entry
		if jsonErr := json.Unmarshal(raw, &entries); jsonErr != nil {
			return nil, fmt.Errorf("learning: parse sidecar %s: %w", sidecar, jsonErr)
		}
		return entries, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("learning: read sidecar %s: %w", sidecar, err)
	}

	// No sidecar yet: parse the markdown rendering if one exists
	// (first run against a hand-edited environment). The markdown
	// parser tolerates schema drift and can silently lose fields, so
	// this path only runs when the sidecar is absent (§9 Open Question i).
	md := s.markdownPath(t)
	raw, err := os.ReadFile(md)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("learning: read markdown %s: %w", md, err)
	}
	return parseMarkdown(t, string(raw)), nil
}

// All returns a snapshot of every entry of the given type.
func (s *Store) All(t EntryType) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.byType[t]))
	copy(out, s.byType[t])
	return out
}

// AllTypes returns a snapshot of every entry across all types.
func (s *Store) AllTypes() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, t := range []EntryType{TypeLearning, TypeError, TypeFeatureRequest} {
		out = append(out, s.byType[t]...)
	}
	return out
}

// Get looks an entry up by ID across all types.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entries := range s.byType {
		for _, e := range entries {
			if e.ID == id {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// put upserts entry (matched by ID) into its type's slice and persists
// both the sidecar and the regenerated markdown. Callers must hold mu.
func (s *Store) put(entry Entry) error {
	entries := s.byType[entry.Type]
	replaced := false
	for i, e := range entries {
		if e.ID == entry.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	s.byType[entry.Type] = entries
	return s.persist(entry.Type)
}

// persistEntry upserts entry and persists its type's sidecar/markdown.
// Unlike put, this acquires s.mu itself; it is the entry point external
// packages (the Promotion Engine) use to write a status transition back.
func (s *Store) persistEntry(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(entry)
}

// persist writes both the JSON sidecar (authoritative) and the
// regenerated markdown rendering. Callers must hold mu.
func (s *Store) persist(t EntryType) error {
	entries := s.byType[t]
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	s.byType[t] = entries

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("learning: marshal %s sidecar: %w", t, err)
	}
	if err := os.WriteFile(s.sidecarPath(t), raw, 0o644); err != nil {
		return fmt.Errorf("learning: write %s sidecar: %w", t, err)
	}
	if err := os.WriteFile(s.markdownPath(t), []byte(renderMarkdown(t, entries)), 0o644); err != nil {
		return fmt.Errorf("learning: write %s markdown: %w", t, err)
	}
	return nil
}

// renderMarkdown regenerates a type's human-facing document from its
// entries: one heading per entry, a field list underneath (§3's "the
// markdown is regenerated from entries on every write").
func renderMarkdown(t EntryType, entries []Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.filename())
	for _, e := range entries {
		fmt.Fprintf(&b, "## %s: %s (%s)\n\n", e.ID, e.Title, e.Priority)
		fmt.Fprintf(&b, "- Status: %s\n", e.Status)
		fmt.Fprintf(&b, "- Area: %s\n", e.Area)
		fmt.Fprintf(&b, "- Occurrences: %d\n", e.Occurrences)
		fmt.Fprintf(&b, "- Created: %s\n", e.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "- Updated: %s\n", e.UpdatedAt.Format(time.RFC3339))
		if len(e.RelatedTools) > 0 {
			fmt.Fprintf(&b, "- Related tools: %s\n", strings.Join(e.RelatedTools, ", "))
		}
		b.WriteString("\n")
		b.WriteString(e.Description)
		b.WriteString("\n\n")
		if e.SuggestedAction != "" {
			fmt.Fprintf(&b, "_Suggested action: %s_\n\n", e.SuggestedAction)
		}
		if e.Context != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n\n", e.Context)
		}
	}
	return b.String()
}

var markdownHeadingPattern = regexp.MustCompile(`^## (\S+): (.+) \((\w+)\)$`)
var markdownFieldPattern = regexp.MustCompile(`^- (\w[\w ]*): (.*)$`)

// parseMarkdown is the tolerant, human-facing-only fallback reader: it
// recovers what it can from a regenerated document and silently skips
// fields it doesn't recognize, per §9 Open Question (i).
func parseMarkdown(t EntryType, raw string) []Entry {
	var entries []Entry
	var cur *Entry

	flush := func() {
		if cur != nil {
			entries = append(entries, *cur)
			cur = nil
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		if m := markdownHeadingPattern.FindStringSubmatch(line); m != nil {
			flush()
			cur = &Entry{ID: m[1], Title: m[2], Type: t, Priority: parsePriority(m[3])}
			continue
		}
		if cur == nil {
			continue
		}
		if m := markdownFieldPattern.FindStringSubmatch(line); m != nil {
			switch strings.ToLower(m[1]) {
			case "status":
				cur.Status = Status(m[2])
			case "area":
				cur.Area = m[2]
			case "occurrences":
				if n, err := strconv.Atoi(m[2]); err == nil {
					cur.Occurrences = uint32(n)
				}
			case "related tools":
				cur.RelatedTools = strings.Split(m[2], ", ")
			}
		}
	}
	flush()
	return entries
}

func parsePriority(s string) Priority {
	switch s {
	case "Medium":
		return PriorityMedium
	case "High":
		return PriorityHigh
	case "Critical":
		return PriorityCritical
	default:
		return PriorityLow
	}
}
