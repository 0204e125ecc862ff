// Package security keeps secrets out of log output and records an audit
// trail of access and relay control changes.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// Placeholder replaces every redacted secret.
const Placeholder = "[redacted]"

var defaultPatterns = []*regexp.Regexp{
	// Bot API token, bare or inside a request URL (".../bot<token>/method").
	regexp.MustCompile(`\d{6,}:[A-Za-z0-9_-]{30,}`),
	// Authorization header values.
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]{8,}`),
	// Webhook secret header as it appears in dumped requests.
	regexp.MustCompile(`(?i)x-telegram-bot-api-secret-token:\s*\S+`),
}

// Redactor replaces secret values in strings. It matches known token shapes
// and any literal registered at runtime. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor returns a Redactor preloaded with the bot token, bearer, and
// webhook secret patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: append([]*regexp.Regexp(nil), defaultPatterns...)}
}

// AddPattern registers an extra pattern.
func (r *Redactor) AddPattern(p *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, p)
}

// AddLiteral registers an exact secret value. Empty strings are ignored.
func (r *Redactor) AddLiteral(secrets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range secrets {
		if s != "" {
			r.literals = append(r.literals, s)
		}
	}
}

// Redact returns s with every known secret replaced by Placeholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	// Literals first so a registered token is removed whole even when it
	// would only partially match a pattern.
	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, Placeholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllString(s, Placeholder)
	}
	return s
}
