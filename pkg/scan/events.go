package scan

import "github.com/nao1215/ringscan/pkg/geometry"

// Callback is a single-slot, one-shot notification handler.
// The zero value is disarmed. A Callback is not safe for concurrent use on
// its own; Session guards its callbacks with the session lock.
type Callback struct {
	fn func()
}

// Arm registers fn, replacing any armed handler. A nil fn disarms.
func (c *Callback) Arm(fn func()) {
	c.fn = fn
}

// Disarm drops the armed handler without calling it.
func (c *Callback) Disarm() {
	c.fn = nil
}

// Armed reports whether a handler is registered.
func (c *Callback) Armed() bool {
	return c.fn != nil
}

// Fire calls and clears the armed handler. It reports whether one was armed.
func (c *Callback) Fire() bool {
	fn := c.take()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// take clears the slot and returns the handler so it can run outside a lock.
func (c *Callback) take() func() {
	fn := c.fn
	c.fn = nil
	return fn
}

// Events groups the host notifications of a session.
type Events struct {
	TutorialOpened     Callback
	TutorialCompleted  Callback
	AnchorSet          Callback
	LowerRingCompleted Callback
	UpperRingCompleted Callback
}

func (e *Events) ringCompleted(ring geometry.Ring) *Callback {
	if ring == geometry.RingUpper {
		return &e.UpperRingCompleted
	}
	return &e.LowerRingCompleted
}

// runAll calls each non-nil handler in order.
func runAll(fns []func()) {
	for _, fn := range fns {
		if fn != nil {
			fn()
		}
	}
}
