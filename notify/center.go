package notify

import (
	"sync"
	"time"

	"corkboard/schemas"
)

// DisplayWindow is how long a notification stays up before auto-dismissing.
const DisplayWindow = 3 * time.Second

// Sink is where components report user-facing outcomes.
type Sink interface {
	Notify(message string, severity schemas.Severity)
}

// Center holds at most one visible notification. A new one replaces the old
// and restarts the dismiss timer; there is no queue.
type Center struct {
	ttl time.Duration

	mu         sync.Mutex
	current    *schemas.Notification
	timer      *time.Timer
	generation int
	onChange   func(n *schemas.Notification)
}

func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DisplayWindow
	}
	return &Center{ttl: ttl}
}

func (c *Center) Notify(message string, severity schemas.Severity) {
	notification := &schemas.Notification{Message: message, Severity: severity}

	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.generation++
	generation := c.generation
	c.current = notification
	c.timer = time.AfterFunc(c.ttl, func() { c.expire(generation) })
	cb := c.onChange
	c.mu.Unlock()

	if cb != nil {
		cb(notification)
	}
}

// Dismiss clears the slot immediately, cancelling the pending expiry.
func (c *Center) Dismiss() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	c.current = nil
	cb := c.onChange
	c.mu.Unlock()

	if cb != nil {
		cb(nil)
	}
}

func (c *Center) Current() *schemas.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OnChange registers the render hook. One hook; the presentation layer owns it.
func (c *Center) OnChange(cb func(n *schemas.Notification)) {
	c.mu.Lock()
	c.onChange = cb
	c.mu.Unlock()
}

func (c *Center) expire(generation int) {
	c.mu.Lock()
	if generation != c.generation {
		// the slot was replaced or dismissed after this timer was armed
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.timer = nil
	cb := c.onChange
	c.mu.Unlock()

	if cb != nil {
		cb(nil)
	}
}
