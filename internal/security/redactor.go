package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder replaces every redacted secret.
const RedactPlaceholder = "***REDACTED***"

// Redactor masks provider keys and bearer tokens, by pattern and by
// literal value. It is safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor returns a Redactor loaded with DefaultPatterns and the given
// literal secrets. Empty literals are skipped.
func NewRedactor(literals ...string) *Redactor {
	r := &Redactor{patterns: DefaultPatterns()}
	for _, lit := range literals {
		r.AddLiteral(lit)
	}
	return r
}

// AddPattern registers an extra pattern.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral registers a secret value loaded at runtime, such as a
// configured API key.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact returns s with every known secret replaced.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// DefaultPatterns matches the key formats quill is configured with.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Google AI Studio keys.
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
		// OpenAI-style keys, also used by most compatible servers.
		regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{20,}`),
		regexp.MustCompile(`(?i)bearer\s+[a-z0-9._~+/\-]{16,}=*`),
	}
}
