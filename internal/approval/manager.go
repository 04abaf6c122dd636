package approval

import (
	"context"
	"sync"
	"time"

	"toolrt/internal/logging"

	"github.com/rs/zerolog"
)

// Asker is the UI-facing collaborator the Manager consults when neither the
// auto-approve threshold nor the session cache resolves an Action. Treating
// this as an interface (rather than a concrete terminal prompter) is what
// lets the runtime swap in InteractiveApprover for a human operator and a
// headless AutoAsker for tests and the Soul Engine's own unsafe path, per
// §9's "Approval UI coupling" note.
type Asker interface {
	// Ask adjudicates action, optionally given a unified diff to display
	// first. diff is nil when no prior state exists for the target.
	Ask(ctx context.Context, action Action, diff *Diff) (Decision, error)
}

// Config tunes the Manager's policy knobs.
type Config struct {
	// AutoApproveThreshold: actions at or below this risk are approved
	// without consulting the Asker, iff AutoApproveLowRisk is true.
	AutoApproveThreshold Risk
	AutoApproveLowRisk   bool
	// SessionTTL is how long an ApprovedForSession decision is honoured.
	SessionTTL time.Duration
	// AuditSize bounds the in-memory audit ring buffer.
	AuditSize int
}

// DefaultConfig matches §4.2's stated defaults: auto-approve threshold Low,
// disabled unless explicitly turned on, 15 minute session TTL, 500 entry
// audit ring.
func DefaultConfig() Config {
	return Config{
		AutoApproveThreshold: RiskLow,
		AutoApproveLowRisk:   false,
		SessionTTL:           15 * time.Minute,
		AuditSize:            500,
	}
}

type sessionEntry struct {
	decision Decision
	expires  time.Time
}

// Manager is the default Approval Manager: auto-approve threshold, session
// cache, audit ring buffer, delegating to an Asker for anything it can't
// resolve on its own.
type Manager struct {
	cfg    Config
	asker  Asker
	logger zerolog.Logger

	mu      sync.Mutex
	session map[sessionKey]sessionEntry

	auditMu  sync.Mutex
	audit    []AuditEntry
	auditPos int
	auditLen int
}

// NewManager builds a Manager around the given Asker and policy config.
func NewManager(asker Asker, cfg Config) *Manager {
	if cfg.AuditSize <= 0 {
		cfg.AuditSize = 500
	}
	return &Manager{
		cfg:     cfg,
		asker:   asker,
		logger:  logging.Component("approval"),
		session: map[sessionKey]sessionEntry{},
		audit:   make([]AuditEntry, cfg.AuditSize),
	}
}

// Request adjudicates action without a diff. It is a pure synchronous
// decision from the Manager's perspective: it never blocks on network, but
// it may block on user input via the Asker.
func (m *Manager) Request(ctx context.Context, action Action) (Decision, error) {
	return m.resolve(ctx, action, nil)
}

// RequestWithDiff adjudicates action, ensuring the Asker is given the
// unified diff to present before asking. This is mandatory for any
// file-mutation action where a prior version exists.
func (m *Manager) RequestWithDiff(ctx context.Context, action Action, before, after string) (Decision, error) {
	diff := &Diff{Before: before, After: after}
	return m.resolve(ctx, action, diff)
}

func (m *Manager) resolve(ctx context.Context, action Action, diff *Diff) (Decision, error) {
	if m.cfg.AutoApproveLowRisk && action.Risk <= m.cfg.AutoApproveThreshold {
		m.logger.Debug().Str("action", action.ID.String()).Str("risk", action.Risk.String()).Msg("auto-approved")
		m.record(action, Approved, SourceAuto)
		return Approved, nil
	}

	key := sessionKey{actionType: action.Type, target: action.Target}
	m.mu.Lock()
	entry, ok := m.session[key]
	if ok && time.Now().After(entry.expires) {
		delete(m.session, key)
		ok = false
	}
	m.mu.Unlock()

	if ok {
		m.record(action, entry.decision, SourceSession)
		return entry.decision, nil
	}

	decision, err := m.asker.Ask(ctx, action, diff)
	if err != nil {
		m.logger.Debug().Err(err).Str("action", action.ID.String()).Msg("asker returned error")
		return Denied, err
	}

	if decision == ApprovedForSession {
		m.mu.Lock()
		m.session[key] = sessionEntry{
			decision: Approved,
			expires:  time.Now().Add(m.cfg.SessionTTL),
		}
		m.mu.Unlock()
	}

	m.record(action, decision, SourcePrompt)
	return decision, nil
}

// ClearSession drops every cached session decision, per §4.2's explicit
// clear_session contract.
func (m *Manager) ClearSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = map[sessionKey]sessionEntry{}
}

func (m *Manager) record(action Action, decision Decision, source AuditSource) {
	m.auditMu.Lock()
	defer m.auditMu.Unlock()

	entry := AuditEntry{Action: action, Decision: decision, Source: source, At: time.Now()}
	m.audit[m.auditPos] = entry
	m.auditPos = (m.auditPos + 1) % len(m.audit)
	if m.auditLen < len(m.audit) {
		m.auditLen++
	}
}

// Audit returns the audit log in chronological order, oldest first.
func (m *Manager) Audit() []AuditEntry {
	m.auditMu.Lock()
	defer m.auditMu.Unlock()

	out := make([]AuditEntry, 0, m.auditLen)
	start := (m.auditPos - m.auditLen + len(m.audit)) % len(m.audit)
	for i := 0; i < m.auditLen; i++ {
		out = append(out, m.audit[(start+i)%len(m.audit)])
	}
	return out
}
