// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is returned by CheckLimit when a tool's bucket is empty.
var ErrRateLimited = errors.New("rate limit exceeded")

// Tool names of the rumorsim MCP server.
const (
	ToolSimulate = "rumor_simulate"
	ToolRuns     = "rumor_runs"
	ToolRun      = "rumor_run"
	ToolExport   = "rumor_export"
)

// InteractionsPerToken is the simulation work one token pays for. A run costs
// one token plus one per InteractionsPerToken agent-interactions.
const InteractionsPerToken = 5_000_000

// MaxSimulationCost is the burst of the simulate bucket. A run costing more
// could never be admitted.
const MaxSimulationCost = 5

// Limiter implements a per-key token bucket rate limiter.
// Each key gets its own bucket with the configured rate and burst.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   int              // max burst size (also initial token count)
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether one request for key may proceed.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN reports whether a request costing n tokens may proceed, and takes
// the tokens if so. Costs above the burst are charged as the full burst so
// that expensive requests remain possible on a full bucket.
func (l *Limiter) AllowN(key string, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cost := float64(min(max(n, 1), l.burst))
	b := l.refill(key)
	if b.tokens < cost {
		return false
	}
	b.tokens -= cost
	return true
}

// Tokens returns the tokens currently available for key.
func (l *Limiter) Tokens(key string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refill(key).tokens
}

// refill returns key's bucket topped up for elapsed time (caller must hold lock).
func (l *Limiter) refill(key string) *bucket {
	now := l.nowFunc()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
		return b
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.lastCheck = now
	}
	return b
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters.
// Simulations are the expensive call; reads are cheap.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		ToolSimulate: NewLimiter(20.0/60.0, MaxSimulationCost), // 20/minute, burst 5
		ToolRuns:     NewLimiter(1.0, 10),                      // 60/minute, burst 10
		ToolRun:      NewLimiter(1.0, 10),                      // 60/minute, burst 10
		ToolExport:   NewLimiter(5.0/60.0, 2),                  // 5/minute, burst 2
	}
}

// SimulationCost returns the token cost of a run over populationSize agents,
// each with the given per-step capacity, for the given number of steps.
// Work is priced by agent-interactions, populationSize*capacity*steps.
func SimulationCost(populationSize, capacity, steps int) int {
	if populationSize <= 0 || steps <= 0 {
		return 1
	}
	return 1 + populationSize*max(capacity, 1)*steps/InteractionsPerToken
}

// CheckLimit checks the rate limit for a single call of toolName.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	return CheckLimitN(limiters, toolName, 1)
}

// CheckLimitN is CheckLimit for a call costing n tokens.
func CheckLimitN(limiters ToolLimiters, toolName string, n int) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil // No limiter configured = no limit
	}

	if !limiter.AllowN(toolName, n) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrRateLimited, toolName)
	}

	return nil
}
