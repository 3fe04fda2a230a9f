// Package typing implements the typing/keep-alive controller (C8): it
// bridges a running CLI backend's liveness to an outbound "typing"
// indicator, coordinating with the cooperative dispatcher's runComplete/
// dispatchIdle signals so the indicator seals exactly once the reply has
// actually gone out.
//
// Grounded on internal/ai/run.go's typing-indicator timers
// (periodic AfterFunc-based reschedule instead of a ticker goroutine, to
// keep every state transition a plain mutex-guarded method call) and its
// sidecar heartbeat pattern for the TTL/reminder cadence.
package typing

import (
	"strings"
	"sync"
	"time"
)

const (
	DefaultTypingIntervalSeconds = 6
	DefaultTypingTTL = 2 * time.Minute
	DefaultTimeoutReminderInterval = 5 * time.Minute
	DefaultSilentReplyToken = "NO_REPLY"
)

// Config configures a Controller. All fields are optional; zero values
// fall back to the defaults above.
type Config struct {
	// OnReplyStart is invoked to (re)signal the outbound channel that a
	// reply is being composed — e.g. a chat "typing…" indicator.
	OnReplyStart func()

	// OnTypingTimeout is invoked with the elapsed time (ms) since typing
	// started, once the TTL lapses and again on every reminder tick.
	OnTypingTimeout func(elapsedMs int64)

	SilentReplyToken string
	TypingIntervalSeconds int
	TypingTTL time.Duration
	TimeoutReminderInterval time.Duration

	nowFn func() time.Time
}

// Controller implements the typing-indicator state machine described
// above. Safe for concurrent use; every operation is a short critical
// section under mu.
type Controller struct {
	cfg Config

	mu sync.Mutex
	started bool
	active bool
	runComplete bool
	dispatchIdle bool
	sealed bool
	typingStartedAt time.Time

	typingTimer *time.Timer
	typingTTLTimer *time.Timer
	reminderTimer *time.Timer
}

// New builds a Controller from cfg.
func New(cfg Config) *Controller {
	if cfg.SilentReplyToken == "" {
		cfg.SilentReplyToken = DefaultSilentReplyToken
	}
	if cfg.TypingIntervalSeconds <= 0 {
		cfg.TypingIntervalSeconds = DefaultTypingIntervalSeconds
	}
	if cfg.TypingTTL <= 0 {
		cfg.TypingTTL = DefaultTypingTTL
	}
	if cfg.TimeoutReminderInterval <= 0 {
		cfg.TimeoutReminderInterval = DefaultTimeoutReminderInterval
	}
	if cfg.nowFn == nil {
		cfg.nowFn = time.Now
	}
	return &Controller{cfg: cfg}
}

func (c *Controller) now() time.Time {
	return c.cfg.nowFn()
}

// EnsureStart marks the controller active and, on the first call of a
// cycle, fires onReplyStart. A no-op once sealed or after runComplete.
func (c *Controller) EnsureStart() {
	c.mu.Lock()
	if c.sealed || c.runComplete {
		c.mu.Unlock()
		return
	}
	c.active = true
	firstStart := !c.started
	if firstStart {
		c.started = true
		if c.typingStartedAt.IsZero() {
			c.typingStartedAt = c.now()
		}
	}
	cb := c.cfg.OnReplyStart
	c.mu.Unlock()

	if firstStart && cb != nil {
		cb()
	}
}

// StartTypingLoop is idempotent: it always refreshes the TTL deadline,
// and installs the periodic onReplyStart timer only if not already
// running. Like EnsureStart, the first start of a cycle also fires
// onReplyStart once right away.
func (c *Controller) StartTypingLoop() {
	c.mu.Lock()
	if c.sealed || c.runComplete {
		c.mu.Unlock()
		return
	}
	c.refreshTypingTTLLocked()
	firstStart := false
	if c.typingTimer == nil {
		if c.typingStartedAt.IsZero() {
			c.typingStartedAt = c.now()
		}
		c.active = true
		firstStart = !c.started
		c.started = true
		c.armPeriodicLocked()
	}
	cb := c.cfg.OnReplyStart
	c.mu.Unlock()

	if firstStart && cb != nil {
		cb()
	}
}

// StartTypingOnText delegates to StartTypingLoop unless text is empty or,
// once trimmed, matches the configured silent-reply token.
func (c *Controller) StartTypingOnText(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == c.cfg.SilentReplyToken {
		return
	}
	c.StartTypingLoop()
}

// RefreshTypingTTL resets the TTL deadline. On expiry the periodic timer
// stops (but the controller is not sealed); if onTypingTimeout is
// configured, a reminder loop begins.
func (c *Controller) RefreshTypingTTL() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed || c.runComplete {
		return
	}
	c.refreshTypingTTLLocked()
}

func (c *Controller) refreshTypingTTLLocked() {
	if c.typingTTLTimer != nil {
		c.typingTTLTimer.Stop()
	}
	c.typingTTLTimer = time.AfterFunc(c.cfg.TypingTTL, c.onTTLExpired)
}

func (c *Controller) armPeriodicLocked() {
	interval := time.Duration(c.cfg.TypingIntervalSeconds) * time.Second
	c.typingTimer = time.AfterFunc(interval, c.periodicFire)
}

func (c *Controller) periodicFire() {
	c.mu.Lock()
	if c.sealed || c.runComplete {
		c.mu.Unlock()
		return
	}
	cb := c.cfg.OnReplyStart
	c.armPeriodicLocked()
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (c *Controller) onTTLExpired() {
	c.mu.Lock()
	if c.sealed {
		c.mu.Unlock()
		return
	}
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	startedAt := c.typingStartedAt
	cb := c.cfg.OnTypingTimeout
	c.mu.Unlock()

	if cb == nil || startedAt.IsZero() {
		return
	}
	cb(c.now().Sub(startedAt).Milliseconds())
	c.armReminder()
}

func (c *Controller) armReminder() {
	c.mu.Lock()
	if c.sealed || c.runComplete {
		c.mu.Unlock()
		return
	}
	if c.reminderTimer != nil {
		c.reminderTimer.Stop()
	}
	c.reminderTimer = time.AfterFunc(c.cfg.TimeoutReminderInterval, c.reminderFire)
	c.mu.Unlock()
}

func (c *Controller) reminderFire() {
	c.mu.Lock()
	if c.sealed || c.runComplete {
		c.mu.Unlock()
		return
	}
	startedAt := c.typingStartedAt
	cb := c.cfg.OnTypingTimeout
	c.reminderTimer = time.AfterFunc(c.cfg.TimeoutReminderInterval, c.reminderFire)
	c.mu.Unlock()

	if cb != nil && !startedAt.IsZero() {
		cb(c.now().Sub(startedAt).Milliseconds())
	}
}

// MarkRunComplete sets the runComplete flag; if dispatchIdle is already
// set, this triggers cleanup/seal.
func (c *Controller) MarkRunComplete() {
	c.mu.Lock()
	if c.sealed {
		c.mu.Unlock()
		return
	}
	c.runComplete = true
	ready := c.runComplete && c.dispatchIdle
	c.mu.Unlock()
	if ready {
		c.cleanup()
	}
}

// MarkDispatchIdle sets the dispatchIdle flag; if runComplete is already
// set, this triggers cleanup/seal.
func (c *Controller) MarkDispatchIdle() {
	c.mu.Lock()
	if c.sealed {
		c.mu.Unlock()
		return
	}
	c.dispatchIdle = true
	ready := c.runComplete && c.dispatchIdle
	c.mu.Unlock()
	if ready {
		c.cleanup()
	}
}

// cleanup stops all timers, resets cycle flags, and permanently seals the
// controller: once sealed, no external event can cause another
// onReplyStart invocation.
func (c *Controller) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	if c.typingTTLTimer != nil {
		c.typingTTLTimer.Stop()
		c.typingTTLTimer = nil
	}
	if c.reminderTimer != nil {
		c.reminderTimer.Stop()
		c.reminderTimer = nil
	}
	c.started = false
	c.active = false
	c.runComplete = false
	c.dispatchIdle = false
	c.typingStartedAt = time.Time{}
	c.sealed = true
}

// Sealed reports whether the controller has sealed for this cycle.
func (c *Controller) Sealed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sealed
}
