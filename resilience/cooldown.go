package resilience

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum spacing between two runs when none is configured.
const DefaultCooldown = 2 * time.Second

// Cooldown gates a background routine: at most one run at a time, and a new
// run only once the cooldown has elapsed since the previous run started.
type Cooldown struct {
	period time.Duration
	now    func() time.Time

	mu        sync.Mutex
	running   bool
	lastRunAt time.Time
	dropped   int64
}

// NewCooldown creates a gate with the given period. A zero period only
// keeps runs from overlapping; a negative one uses DefaultCooldown.
func NewCooldown(period time.Duration) *Cooldown {
	if period < 0 {
		period = DefaultCooldown
	}
	return &Cooldown{period: period, now: time.Now}
}

// Acquire claims the gate. It reports false without side effects when a run
// is in progress or the last run started less than one period ago. On
// success the gate is marked running and lastRunAt is set before returning.
func (c *Cooldown) Acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.running || (!c.lastRunAt.IsZero() && now.Sub(c.lastRunAt) < c.period) {
		c.dropped++
		return false
	}
	c.running = true
	c.lastRunAt = now
	return true
}

// Release marks the current run finished. lastRunAt is kept so the cooldown
// still applies.
func (c *Cooldown) Release() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// Reset clears both the running flag and the cooldown.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	c.running = false
	c.lastRunAt = time.Time{}
	c.mu.Unlock()
}

// State returns a snapshot of the gate.
func (c *Cooldown) State() CooldownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CooldownState{
		Running:   c.running,
		LastRunAt: c.lastRunAt,
		Period:    c.period,
		Dropped:   c.dropped,
	}
}

// CooldownState contains gate statistics.
type CooldownState struct {
	Running   bool
	LastRunAt time.Time
	Period    time.Duration
	Dropped   int64
}
