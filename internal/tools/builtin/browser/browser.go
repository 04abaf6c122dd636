package browser

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	formInputMaxBytes = 10 * 1024
	defaultIdleLimit  = 10 * time.Minute
)

// blockedScriptPatterns rejects script injection vectors: eval, dynamic
// Function construction, location rewrites, explicit <script> tags.
var blockedScriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\beval\s*\(`),
	regexp.MustCompile(`new\s+Function\s*\(`),
	regexp.MustCompile(`(?i)location\s*(\.(href|replace|assign)|=)`),
	regexp.MustCompile(`(?i)<\s*script\b`),
}

var forbiddenSelectorChars = regexp.MustCompile(`[<>{}` + "`" + `]`)

// Session is one CDP session tracked by the manager.
type Session struct {
	ID           string
	Transport    Transport
	LastActivity time.Time
}

// Transport abstracts the underlying CDP wire so tests can substitute a
// fake; a real implementation dials resolveCDPURL's endpoint.
type Transport interface {
	Navigate(ctx context.Context, url string) error
	Eval(ctx context.Context, script string) (string, error)
	Close() error
}

// Manager owns the set of open browser sessions, keyed by session_id,
// and enforces the same URL policy as the web tool plus browser-specific
// script and selector validation.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	idleLimit  time.Duration
	allowHosts map[string]bool
}

// NewManager builds an empty session manager.
func NewManager(idleLimit time.Duration) *Manager {
	if idleLimit <= 0 {
		idleLimit = defaultIdleLimit
	}
	return &Manager{sessions: map[string]*Session{}, idleLimit: idleLimit}
}

// ValidateURL applies the same scheme/host policy the web tool does.
func ValidateURL(rawURL string) error {
	if len(rawURL) > 2048 {
		return fmt.Errorf("url exceeds 2048 characters")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid absolute url: %q", rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	host := strings.ToLower(parsed.Hostname())
	if isBlockedBrowserHost(host) {
		return fmt.Errorf("host %q is not reachable", host)
	}
	return nil
}

var blockedHostSuffixes = []string{".local", ".internal", ".corp", ".home", ".lan"}

func isBlockedBrowserHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "0.0.0.0", "::1", "169.254.169.254":
		return true
	}
	if strings.HasPrefix(host, "10.") || strings.HasPrefix(host, "192.168.") {
		return true
	}
	for _, suffix := range blockedHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// ValidateScript rejects known injection vectors in a CDP eval payload.
func ValidateScript(script string) error {
	for _, pattern := range blockedScriptPatterns {
		if pattern.MatchString(script) {
			return fmt.Errorf("script matches a blocked pattern: %s", pattern.String())
		}
	}
	return nil
}

// ValidateSelector rejects selectors carrying characters that have no
// business in a CSS/XPath selector and are likely injection attempts.
func ValidateSelector(selector string) error {
	if forbiddenSelectorChars.MatchString(selector) {
		return fmt.Errorf("selector contains forbidden characters")
	}
	return nil
}

// ValidateFormInput caps form field values at 10KB.
func ValidateFormInput(value string) error {
	if len(value) > formInputMaxBytes {
		return fmt.Errorf("form input exceeds %d byte limit", formInputMaxBytes)
	}
	return nil
}

// Open registers a new session, or returns the existing one for id.
func (m *Manager) Open(id string, transport Transport) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastActivity = time.Now()
		return s
	}
	s := &Session{ID: id, Transport: transport, LastActivity: time.Now()}
	m.sessions[id] = s
	return s
}

// Touch refreshes a session's last-activity timestamp.
func (m *Manager) Touch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastActivity = time.Now()
	}
}

// Close closes and removes a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if s.Transport != nil {
		return s.Transport.Close()
	}
	return nil
}

// SweepIdle closes every session whose LastActivity is older than the
// configured idle threshold, returning the closed session IDs.
func (m *Manager) SweepIdle() []string {
	m.mu.Lock()
	var stale []string
	now := time.Now()
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity) > m.idleLimit {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		_ = m.Close(id)
	}
	return stale
}
