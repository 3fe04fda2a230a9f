package typing

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, onReplyStart func(), onTimeout func(int64)) (*Controller, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Now()}
	c := New(Config{
		OnReplyStart: onReplyStart,
		OnTypingTimeout: onTimeout,
		TypingIntervalSeconds: 6,
		TypingTTL: 2 * time.Minute,
		TimeoutReminderInterval: 5 * time.Minute,
		nowFn: clock.now,
	})
	return c, clock
}

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func TestEnsureStartInvokesOnReplyStartOnce(t *testing.T) {
	var calls int32
	c, _ := newTestController(t, func() { atomic.AddInt32(&calls, 1) }, nil)

	c.EnsureStart()
	c.EnsureStart()
	c.EnsureStart()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEnsureStartNoOpWhenRunComplete(t *testing.T) {
	var calls int32
	c, _ := newTestController(t, func() { atomic.AddInt32(&calls, 1) }, nil)
	c.MarkRunComplete()

	c.EnsureStart()
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

// TestTypingSealPreventsFurtherOnReplyStart is scenario S6 / testable
// property 6: after markRunComplete && markDispatchIdle,
// no further onReplyStart callback is invoked, even from a late periodic
// fire that was already in flight.
func TestTypingSealPreventsFurtherOnReplyStart(t *testing.T) {
	var calls int32
	c, _ := newTestController(t, func() { atomic.AddInt32(&calls, 1) }, nil)

	c.EnsureStart()
	c.StartTypingLoop()
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))

	c.MarkRunComplete()
	c.MarkDispatchIdle()
	assert.True(t, c.Sealed())

	before := atomic.LoadInt32(&calls)
	// Simulate a stale tool-stream event arriving after the seal: none of
	// these may resurrect typing.
	c.EnsureStart()
	c.StartTypingLoop()
	c.StartTypingOnText("hello again")
	c.RefreshTypingTTL()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, atomic.LoadInt32(&calls), "no onReplyStart call may occur after seal")
}

func TestMarkCompleteAloneDoesNotSeal(t *testing.T) {
	c, _ := newTestController(t, func() {}, nil)
	c.MarkRunComplete()
	assert.False(t, c.Sealed())
}

func TestMarkDispatchIdleAloneDoesNotSeal(t *testing.T) {
	c, _ := newTestController(t, func() {}, nil)
	c.MarkDispatchIdle()
	assert.False(t, c.Sealed())
}

func TestStartTypingOnTextSkipsEmptyAndSilentToken(t *testing.T) {
	var calls int32
	c, _ := newTestController(t, func() { atomic.AddInt32(&calls, 1) }, nil)
	c.cfg.SilentReplyToken = "NO_REPLY"

	c.StartTypingOnText("")
	c.StartTypingOnText(" NO_REPLY ")
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	c.StartTypingOnText("hello")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTTLExpiryFiresTimeoutCallbackWithElapsed(t *testing.T) {
	done := make(chan int64, 1)
	c := New(Config{
		OnReplyStart: func() {},
		OnTypingTimeout: func(ms int64) { done <- ms },
		TypingIntervalSeconds: 6,
		TypingTTL: 10 * time.Millisecond,
		TimeoutReminderInterval: time.Hour,
	})

	c.StartTypingLoop()

	select {
	case ms := <-done:
		assert.GreaterOrEqual(t, ms, int64(0))
	case <-time.After(time.Second):
		t.Fatal("onTypingTimeout was never invoked")
	}
}
