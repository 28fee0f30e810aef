// Package ratelimit throttles MCP tool calls. Every tool owns a token
// bucket; a call spends tokens in proportion to the simulation work it
// asks for, so one oversized comparison costs as much as many small runs.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrLimited is wrapped by every rejection.
var ErrLimited = errors.New("rate limit exceeded")

// WorkUnit is the number of person-days one token pays for.
const WorkUnit = 100_000

// centi scales costs to the whole tokens rate.Limiter spends, so a
// request can cost 7.2 tokens.
const centi = 100

// Limiter keeps one token bucket per key. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
	nowFunc func() time.Time
}

// NewLimiter creates a limiter refilling r tokens per second up to burst.
// Buckets start full.
func NewLimiter(r float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(r * centi),
		burst:   burst * centi,
		nowFunc: time.Now,
	}
}

// Allow spends one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN spends n tokens from key's bucket if they are available. Nothing
// is spent on rejection.
func (l *Limiter) AllowN(key string, n float64) bool {
	return l.bucket(key).AllowN(l.nowFunc(), int(math.Ceil(n*centi-1e-9)))
}

// Tokens reports key's current balance.
func (l *Limiter) Tokens(key string) float64 {
	return l.bucket(key).TokensAt(l.nowFunc()) / centi
}

// Burst returns the bucket size in tokens.
func (l *Limiter) Burst() float64 {
	return float64(l.burst) / centi
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	return b
}

// Cost converts a request for runs simulations of population persons over
// days days into tokens. Every call costs at least one token.
func Cost(population, days, runs int) float64 {
	work := float64(max(population, 0)) * float64(max(days, 1)) * float64(max(runs, 1))
	return math.Max(1, work/WorkUnit)
}

// ToolLimiters maps tool names to their limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default per-tool limits.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"epigraph_simulate": NewLimiter(10.0/60.0, 10), // ~10 default runs a minute
		"epigraph_compare":  NewLimiter(30.0/60.0, 30), // ~2 default comparisons a minute
		"epigraph_graph":    NewLimiter(30.0/60.0, 5),
		"epigraph_history":  NewLimiter(1.0, 10),
		"epigraph_backup":   NewLimiter(1.0/60.0, 3),
		"epigraph_restore":  NewLimiter(1.0/60.0, 2),
	}
}

// Check spends cost tokens for tool. Tools without a limiter are never
// limited. A cost above the bucket size can never succeed and is reported
// as too large rather than as a temporary limit.
func (tl ToolLimiters) Check(tool string, cost float64) error {
	l, ok := tl[tool]
	if !ok {
		return nil
	}
	if cost > l.Burst() {
		return fmt.Errorf("%w: %s request costs %.1f tokens, limit is %.0f; reduce population or days", ErrLimited, tool, cost, l.Burst())
	}
	if !l.AllowN(tool, cost) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrLimited, tool)
	}
	return nil
}
