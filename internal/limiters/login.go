package limiters

import "sync"

// GovernorConfig holds login governor tuning parameters.
type GovernorConfig struct {
	MaxAttempts int
}

// LoginGovernor counts failed login attempts and blocks further submissions
// once the threshold is reached. Safe for concurrent use.
type LoginGovernor struct {
	mu       sync.Mutex
	failures int
	config   GovernorConfig
}

// NewLoginGovernor creates a governor with the given config.
func NewLoginGovernor(cfg GovernorConfig) *LoginGovernor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &LoginGovernor{config: cfg}
}

// CanAttempt reports whether another login submission is allowed.
func (g *LoginGovernor) CanAttempt() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures < g.config.MaxAttempts
}

// RecordFailure increments the failure counter.
func (g *LoginGovernor) RecordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures++
}

// RecordSuccess resets the failure counter to zero. This is the only reset
// path besides process restart.
func (g *LoginGovernor) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = 0
}

// Failures returns the current failure count.
func (g *LoginGovernor) Failures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures
}

// Remaining returns how many attempts are left before lockout, never negative.
func (g *LoginGovernor) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	left := g.config.MaxAttempts - g.failures
	if left < 0 {
		return 0
	}
	return left
}
