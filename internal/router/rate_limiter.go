package router

import (
	"sync"
	"time"
)

const idleWindowTTL = 5 * time.Minute

// RateLimiter applies a per-actor sliding one-minute window. Idle actors
// are swept opportunistically from Allow so the map stays bounded by the
// set of recently active actors.
type RateLimiter struct {
	mu          sync.Mutex
	limit       int
	actors      map[string]*actorWindow
	lastCleanup time.Time
	now         func() time.Time
}

type actorWindow struct {
	eventCount  int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing limit events per actor per
// minute. A non-positive limit falls back to 120.
func NewRateLimiter(limit int) *RateLimiter {
	if limit <= 0 {
		limit = 120
	}
	return &RateLimiter{
		limit:       limit,
		actors:      make(map[string]*actorWindow),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow reports whether the actor may send another event.
func (rl *RateLimiter) Allow(actorID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastCleanup) >= time.Minute {
		rl.cleanupLocked(now)
	}

	window, exists := rl.actors[actorID]
	if !exists {
		rl.actors[actorID] = &actorWindow{eventCount: 1, windowStart: now}
		return true
	}

	if now.Sub(window.windowStart) >= time.Minute {
		window.eventCount = 1
		window.windowStart = now
		return true
	}

	if window.eventCount >= rl.limit {
		return false
	}

	window.eventCount++
	return true
}

// Cleanup removes actors idle for over five minutes.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cleanupLocked(rl.now())
}

func (rl *RateLimiter) cleanupLocked(now time.Time) {
	for actorID, window := range rl.actors {
		if now.Sub(window.windowStart) > idleWindowTTL {
			delete(rl.actors, actorID)
		}
	}
	rl.lastCleanup = now
}
