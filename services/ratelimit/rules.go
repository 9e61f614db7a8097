package ratelimit

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/upb/auth-service/config"
)

// Rule is a compiled (limit, window) pair and the paths it governs
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Limit   int
	Window  time.Duration
}

// Rules picks the rule for a request path. Patterns are tried in order and
// the first match wins; unmatched paths get the default rule.
type Rules struct {
	ordered   []Rule
	fallback  Rule
	whitelist map[string]struct{}
}

const defaultRuleName = "default"

// NewRules compiles the configured patterns
func NewRules(cfg config.RateLimitConfig) (*Rules, error) {
	r := &Rules{
		fallback:  Rule{Name: defaultRuleName, Limit: cfg.DefaultLimit, Window: cfg.DefaultWindow},
		whitelist: make(map[string]struct{}, len(cfg.Whitelist)),
	}
	for _, raw := range cfg.Rules {
		re, err := regexp.Compile(raw.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit pattern %q: %w", raw.Pattern, err)
		}
		r.ordered = append(r.ordered, Rule{Name: raw.Pattern, Pattern: re, Limit: raw.Limit, Window: raw.Window})
	}
	for _, p := range cfg.Whitelist {
		r.whitelist[strings.TrimRight(p, "/")] = struct{}{}
	}
	return r, nil
}

// Exempt reports whether path bypasses rate limiting
func (r *Rules) Exempt(path string) bool {
	_, ok := r.whitelist[strings.TrimRight(path, "/")]
	return ok
}

// Match returns the rule governing path
func (r *Rules) Match(path string) Rule {
	for _, rule := range r.ordered {
		if rule.Pattern.MatchString(path) {
			return rule
		}
	}
	return r.fallback
}

// key scopes a window to one rule, subject and route class. The window is
// in milliseconds so sub-second windows of equal limit stay apart.
func (rule Rule) key(subject, route string) string {
	return fmt.Sprintf("rl:%d:%d:%s:%s", rule.Limit, rule.Window.Milliseconds(), subject, route)
}
