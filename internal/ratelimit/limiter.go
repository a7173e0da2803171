// Package ratelimit throttles per-operation call rates (retain, recall,
// consolidate) with a global bucket plus per-operation overrides, adapted
// from the teacher's rate limiter but backed by golang.org/x/time/rate
// instead of a hand-rolled token bucket.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// OpLimit configures one operation's rate limit.
type OpLimit struct {
	Name              string
	RequestsPerSecond float64
	BurstSize         int
}

// Config configures a Limiter.
type Config struct {
	Enabled bool
	Global  OpLimit
	Ops     []OpLimit
}

// DefaultConfig mirrors the teacher's generous defaults: global allows
// bursts of 50 at 20/s, with no per-operation overrides unless configured.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Global:  OpLimit{Name: "global", RequestsPerSecond: 20, BurstSize: 50},
	}
}

// Result reports one Allow decision.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
	LimitType  string
}

// Limiter manages a global limiter plus optional per-operation limiters.
type Limiter struct {
	mu      sync.RWMutex
	enabled bool
	global  *rate.Limiter
	perOp   map[string]*rate.Limiter
}

// NewLimiter constructs a Limiter from cfg, defaulting to DefaultConfig
// when cfg is nil.
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Limiter{
		enabled: cfg.Enabled,
		global:  rate.NewLimiter(rate.Limit(cfg.Global.RequestsPerSecond), cfg.Global.BurstSize),
		perOp:   map[string]*rate.Limiter{},
	}
	for _, op := range cfg.Ops {
		l.perOp[op.Name] = rate.NewLimiter(rate.Limit(op.RequestsPerSecond), op.BurstSize)
	}
	return l
}

// Allow checks whether a call for opName may proceed, consuming one token
// from the global limiter and, if configured, the operation's own
// limiter. Rejection reports the narrower of the two's retry delay.
func (l *Limiter) Allow(opName string) Result {
	if !l.IsEnabled() {
		return Result{Allowed: true, LimitType: "disabled"}
	}

	l.mu.RLock()
	opLimiter := l.perOp[opName]
	l.mu.RUnlock()

	now := time.Now()
	globalRes := l.global.ReserveN(now, 1)
	if !globalRes.OK() {
		return Result{Allowed: false, LimitType: "global"}
	}
	if delay := globalRes.DelayFrom(now); delay > 0 {
		globalRes.CancelAt(now)
		return Result{Allowed: false, RetryAfter: delay, LimitType: "global"}
	}

	if opLimiter != nil {
		opRes := opLimiter.ReserveN(now, 1)
		if !opRes.OK() {
			globalRes.CancelAt(now)
			return Result{Allowed: false, LimitType: opName}
		}
		if delay := opRes.DelayFrom(now); delay > 0 {
			globalRes.CancelAt(now)
			opRes.CancelAt(now)
			return Result{Allowed: false, RetryAfter: delay, LimitType: opName}
		}
	}

	return Result{Allowed: true, LimitType: opName}
}

// IsEnabled reports whether limiting is active.
func (l *Limiter) IsEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

// SetEnabled toggles limiting.
func (l *Limiter) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}
